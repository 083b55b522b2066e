package mcpserver

import (
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/render"
)

// node is the tool-facing rendition of a render block. Paths are the same
// JSON arrays the editing tools accept.
type node struct {
	Type  string       `json:"type"`
	Title string       `json:"title,omitempty"`
	Kind  content.Kind `json:"kind,omitempty"`
	Path  content.Path `json:"path"`
	Value string       `json:"value,omitempty"`
	Image string       `json:"image,omitempty"`
	Items []item       `json:"items,omitempty"`
	Nodes []node       `json:"fields,omitempty"`
}

type item struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Fields []node `json:"fields"`
}

func outline(blocks []render.Block) []node {
	out := make([]node, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case render.FieldBlock:
			n := node{Type: "field", Title: v.Title, Kind: v.Kind, Path: v.ValuePath, Value: v.Input.Value}
			if v.Input.Control == render.ControlImage {
				n.Image = v.Input.Image.String()
			}
			if v.Input.Control == render.ControlCheckbox {
				n.Value = "false"
				if v.Input.Checked {
					n.Value = "true"
				}
			}
			out = append(out, n)
		case render.ListBlock:
			n := node{Type: "list", Title: v.Title, Path: v.Path, Items: make([]item, 0, len(v.Items))}
			for _, it := range v.Items {
				n.Items = append(n.Items, item{Index: it.Index, Label: it.Label, Fields: outline(it.Children)})
			}
			out = append(out, n)
		case render.GroupBlock:
			out = append(out, node{Type: "group", Title: v.Title, Path: v.Path, Nodes: outline(v.Children)})
		case render.OpaqueBlock:
			out = append(out, node{Type: "readonly", Title: v.Key, Path: v.Path, Value: v.Display})
		case render.UnknownKindBlock:
			out = append(out, node{Type: "unsupported", Title: v.Title, Kind: v.Kind, Path: v.Path})
		}
	}
	return out
}

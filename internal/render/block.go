// Package render turns a content tree into a presentation model: a flat
// description of form controls, repeatable lists and groups that the HTML
// templates and the MCP tools consume. Nothing here writes HTML.
package render

import "github.com/starford/sitepanel/internal/content"

// Block is one element of the view model. BlockType lets templates switch
// on the variant.
type Block interface {
	BlockType() string
}

// Control is the form control a field renders as.
type Control string

const (
	ControlText     Control = "text"
	ControlNumber   Control = "number"
	ControlCheckbox Control = "checkbox"
	ControlURL      Control = "url"
	ControlImage    Control = "image"
	ControlTextarea Control = "textarea"
)

// Input describes the control bound to a field value.
type Input struct {
	Control     Control
	Value       string
	Checked     bool
	Rows        int
	Placeholder string
	Image       ImageStatus
}

// FieldBlock is an editable scalar field. ValuePath addresses the value
// member; edits are written there.
type FieldBlock struct {
	Path      content.Path
	ValuePath content.Path
	Kind      content.Kind
	Title     string
	Input     Input
}

func (FieldBlock) BlockType() string { return "field" }

// ListBlock is a repeatable list. Path addresses the array itself and is the
// target of the add action.
type ListBlock struct {
	Path  content.Path
	Title string
	Count int
	Items []ListItem
}

func (ListBlock) BlockType() string { return "list" }

// ListItem is one element of a list, rendered as its own collapsible group.
type ListItem struct {
	Index      int
	Label      string
	Badge      string
	Path       content.Path
	RemovePath content.Path
	Children   []Block
}

// GroupBlock is a named region of nested blocks. Collapsible groups start
// collapsed.
type GroupBlock struct {
	Title       string
	Path        content.Path
	Collapsible bool
	Icon        string
	Children    []Block
}

func (GroupBlock) BlockType() string { return "group" }

// OpaqueBlock shows a key and value the schema did not describe.
type OpaqueBlock struct {
	Key     string
	Path    content.Path
	Display string
}

func (OpaqueBlock) BlockType() string { return "opaque" }

// UnknownKindBlock is the notice shown for a field of an unrecognised kind.
type UnknownKindBlock struct {
	Path  content.Path
	Kind  content.Kind
	Title string
}

func (UnknownKindBlock) BlockType() string { return "unknown" }

package render

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
)

// labelKeys are the item members searched, in order, for a list item label.
var labelKeys = []string{"name", "title", "label", "id"}

// Walker builds view models and reports unexpected shapes to its logger.
type Walker struct {
	log *slog.Logger
}

// NewWalker returns a Walker logging to log, or to slog.Default when nil.
func NewWalker(log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{log: log}
}

// Walk renders n located at p with the default logger.
func Walk(n content.Node, p content.Path) []Block {
	return NewWalker(nil).Walk(n, p)
}

// Walk renders n located at p. Objects produce one block per member in
// document order, a field produces its control, and an array produces a
// single list.
func (w *Walker) Walk(n content.Node, p content.Path) []Block {
	switch v := n.(type) {
	case *content.Field:
		return []Block{w.field(v, p)}
	case *content.Object:
		out := make([]Block, 0, v.Len())
		for _, m := range v.Members() {
			out = append(out, w.member(m.Key, m.Value, p.Key(m.Key)))
		}
		return out
	case *content.Array:
		if b, ok := w.list("", v, p); ok {
			return []Block{b}
		}
		return []Block{w.opaque("", v, p, "array of scalars")}
	}
	return nil
}

func (w *Walker) member(key string, n content.Node, p content.Path) Block {
	switch v := n.(type) {
	case *content.Field:
		return w.field(v, p)
	case *content.Object:
		return GroupBlock{
			Title:       key,
			Path:        p,
			Collapsible: hasNestedFields(v),
			Icon:        groupIcon(hasNestedFields(v)),
			Children:    w.Walk(v, p),
		}
	case *content.Array:
		if b, ok := w.list(key, v, p); ok {
			return b
		}
		return w.opaque(key, v, p, "array of scalars")
	}
	return w.opaque(key, n, p, "scalar outside a field")
}

func (w *Walker) field(f *content.Field, p content.Path) Block {
	vp := p.Key(content.KeyValue)
	switch f.Kind() {
	case content.KindArray:
		a, ok := f.Value().(*content.Array)
		if !ok {
			return w.opaque(f.Title(), f.Value(), vp, "array field without an array value")
		}
		b, ok := w.list(f.Title(), a, vp)
		if !ok {
			return w.opaque(f.Title(), a, vp, "array field holding scalars")
		}
		return b
	case content.KindObject:
		return GroupBlock{
			Title:       f.Title(),
			Path:        vp,
			Collapsible: true,
			Icon:        "📦",
			Children:    w.Walk(f.Value(), vp),
		}
	}
	if !f.Kind().Known() {
		return UnknownKindBlock{Path: p, Kind: f.Kind(), Title: f.Title()}
	}
	return FieldBlock{
		Path:      p,
		ValuePath: vp,
		Kind:      f.Kind(),
		Title:     f.Title(),
		Input:     input(f),
	}
}

// list renders a as a repeatable list. It reports false when an element is
// neither a field nor an object.
func (w *Walker) list(title string, a *content.Array, p content.Path) (ListBlock, bool) {
	b := ListBlock{Path: p, Title: title, Count: a.Len(), Items: make([]ListItem, 0, a.Len())}
	for i, el := range a.Items() {
		ip := p.Index(i)
		item := ListItem{
			Index:      i,
			Label:      itemLabel(el, i),
			Badge:      "#" + strconv.Itoa(i+1),
			Path:       ip,
			RemovePath: p,
		}
		switch v := el.(type) {
		case *content.Field:
			item.Children = []Block{w.field(v, ip)}
		case *content.Object:
			item.Children = w.Walk(v, ip)
		default:
			return ListBlock{}, false
		}
		b.Items = append(b.Items, item)
	}
	return b, true
}

func (w *Walker) opaque(key string, n content.Node, p content.Path, reason string) Block {
	w.log.Warn("unexpected content shape",
		slog.String("error", (&apperr.SchemaAnomaly{Path: p.String(), Reason: reason}).Error()),
		slog.String("path", p.String()),
	)
	return OpaqueBlock{Key: key, Path: p, Display: opaqueText(n)}
}

func opaqueText(n content.Node) string {
	switch v := n.(type) {
	case *content.Scalar:
		return v.Display()
	case nil:
		return ""
	}
	raw, err := content.Encode(n)
	if err != nil {
		return ""
	}
	return string(raw)
}

// hasNestedFields looks two levels down for a field: a direct member that is
// a field, or a member of a child object or element of a child array that is.
func hasNestedFields(o *content.Object) bool {
	for _, m := range o.Members() {
		switch v := m.Value.(type) {
		case *content.Field:
			return true
		case *content.Object:
			for _, gm := range v.Members() {
				if _, ok := gm.Value.(*content.Field); ok {
					return true
				}
			}
		case *content.Array:
			for _, el := range v.Items() {
				if _, ok := el.(*content.Field); ok {
					return true
				}
			}
		}
	}
	return false
}

func groupIcon(collapsible bool) string {
	if collapsible {
		return "📁"
	}
	return "📌"
}

func itemLabel(el content.Node, i int) string {
	fallback := "Item " + strconv.Itoa(i+1)
	switch v := el.(type) {
	case *content.Field:
		if s := truthyText(v.Value()); s != "" {
			return s
		}
	case *content.Object:
		for _, k := range labelKeys {
			child, ok := v.Get(k)
			if !ok {
				continue
			}
			f, ok := child.(*content.Field)
			if !ok {
				continue
			}
			if s := truthyText(f.Value()); s != "" {
				return s + " (" + strconv.Itoa(i+1) + ")"
			}
		}
	}
	return fallback
}

func truthyText(n content.Node) string {
	s, ok := n.(*content.Scalar)
	if !ok || !s.Truthy() {
		return ""
	}
	return strings.TrimSpace(s.Display())
}

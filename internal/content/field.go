package content

// Kind is the field descriptor tag. The set is open: unknown kinds are kept
// in the document and surfaced to the operator as read-only notices.
type Kind string

const (
	KindText       Kind = "text"
	KindNumber     Kind = "number"
	KindBoolean    Kind = "boolean"
	KindURL        Kind = "url"
	KindImage      Kind = "image"
	KindTextEditor Kind = "texteditor"
	KindArray      Kind = "array"
	KindObject     Kind = "object"
)

// Descriptor member keys.
const (
	KeyKind  = "kind"
	KeyTitle = "title"
	KeyValue = "value"
)

// UploadingSentinel marks an image field whose upload is in flight. The
// leading NUL keeps it distinct from anything a URL could contain.
const UploadingSentinel = "\x00uploading"

// Known reports whether k is one of the built-in kinds.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindNumber, KindBoolean, KindURL, KindImage, KindTextEditor, KindArray, KindObject:
		return true
	}
	return false
}

// Zero returns the value a freshly synthesized field of kind k starts with.
func (k Kind) Zero() Node {
	if k == KindBoolean {
		return Bool(false)
	}
	return String("")
}

// Field is an object carrying a scalar "kind" member. The full member list
// is kept so extra keys and their order survive edits.
type Field struct {
	obj  *Object
	kind Kind
}

func (*Field) isNode() {}

// NewField builds a descriptor with kind, title and value in that order.
func NewField(kind Kind, title string, value Node) *Field {
	if value == nil {
		value = kind.Zero()
	}
	return &Field{
		obj: NewObject(
			Member{Key: KeyKind, Value: String(string(kind))},
			Member{Key: KeyTitle, Value: String(title)},
			Member{Key: KeyValue, Value: value},
		),
		kind: kind,
	}
}

// Kind returns the descriptor tag.
func (f *Field) Kind() Kind { return f.kind }

// Title returns the human-readable title, empty when absent or not a string.
func (f *Field) Title() string {
	if v, ok := f.obj.Get(KeyTitle); ok {
		if s, ok := v.(*Scalar); ok {
			return s.Display()
		}
	}
	return ""
}

// Value returns the current value; an absent value reads as null.
func (f *Field) Value() Node {
	if v, ok := f.obj.Get(KeyValue); ok {
		return v
	}
	return Null()
}

// Object returns the descriptor's raw members as an object.
func (f *Field) Object() *Object { return f.obj }

// With returns a copy of f with key set to v, re-classified.
func (f *Field) With(key string, v Node) Node {
	return classify(f.obj.With(key, v))
}

// WithValue is shorthand for With(KeyValue, v).
func (f *Field) WithValue(v Node) *Field {
	return &Field{obj: f.obj.With(KeyValue, v), kind: f.kind}
}

// classify turns an object into a Field when it carries a scalar kind tag.
func classify(o *Object) Node {
	v, ok := o.Get(KeyKind)
	if !ok {
		return o
	}
	s, ok := v.(*Scalar)
	if !ok {
		return o
	}
	return &Field{obj: o, kind: Kind(s.Display())}
}

// Classify is the exported form of the decode-time classification, used by
// callers that assemble objects by hand.
func Classify(o *Object) Node { return classify(o) }

// members returns the keyed members of a container node.
func members(n Node) (*Object, bool) {
	switch v := n.(type) {
	case *Object:
		return v, true
	case *Field:
		return v.obj, true
	}
	return nil, false
}

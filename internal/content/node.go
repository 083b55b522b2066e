// Package content models the editable site document: a tree of objects,
// arrays and scalars whose leaves are kind-tagged field descriptors.
//
// Nodes are immutable. Every "with" helper returns a new node and shares the
// untouched children with the receiver, so an old document is never affected
// by an edit made to a newer one.
package content

import "strconv"

// Node is one of *Field, *Object, *Array or *Scalar.
type Node interface {
	isNode()
}

// Member is a key/value pair of an object in document order.
type Member struct {
	Key   string
	Value Node
}

// Object is an ordered JSON object without a kind tag.
type Object struct {
	members []Member
}

// NewObject builds an object from members in the given order. Later
// duplicates of a key replace earlier ones in place.
func NewObject(members ...Member) *Object {
	o := &Object{members: make([]Member, 0, len(members))}
	for _, m := range members {
		if i := o.index(m.Key); i >= 0 {
			o.members[i].Value = m.Value
			continue
		}
		o.members = append(o.members, m)
	}
	return o
}

func (*Object) isNode() {}

func (o *Object) index(key string) int {
	for i, m := range o.members {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// Len returns the number of members.
func (o *Object) Len() int { return len(o.members) }

// Members returns a copy of the members in document order.
func (o *Object) Members() []Member {
	out := make([]Member, len(o.members))
	copy(out, o.members)
	return out
}

// Keys returns member keys in document order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.members))
	for i, m := range o.members {
		out[i] = m.Key
	}
	return out
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Node, bool) {
	if i := o.index(key); i >= 0 {
		return o.members[i].Value, true
	}
	return nil, false
}

// With returns a copy of o where key maps to v. A new key is appended.
func (o *Object) With(key string, v Node) *Object {
	out := &Object{members: make([]Member, len(o.members), len(o.members)+1)}
	copy(out.members, o.members)
	if i := out.index(key); i >= 0 {
		out.members[i].Value = v
		return out
	}
	out.members = append(out.members, Member{Key: key, Value: v})
	return out
}

// Without returns a copy of o with key removed.
func (o *Object) Without(key string) *Object {
	out := &Object{members: make([]Member, 0, len(o.members))}
	for _, m := range o.members {
		if m.Key != key {
			out.members = append(out.members, m)
		}
	}
	return out
}

// Array is an ordered JSON array.
type Array struct {
	items []Node
}

// NewArray builds an array holding items.
func NewArray(items ...Node) *Array {
	out := &Array{items: make([]Node, len(items))}
	copy(out.items, items)
	return out
}

func (*Array) isNode() {}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.items) }

// At returns the element at i.
func (a *Array) At(i int) (Node, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

// Items returns a copy of the elements.
func (a *Array) Items() []Node {
	out := make([]Node, len(a.items))
	copy(out, a.items)
	return out
}

// With returns a copy of a with element i replaced by v. Setting i == Len
// appends.
func (a *Array) With(i int, v Node) (*Array, bool) {
	switch {
	case i >= 0 && i < len(a.items):
		out := NewArray(a.items...)
		out.items[i] = v
		return out, true
	case i == len(a.items):
		return a.Append(v), true
	default:
		return nil, false
	}
}

// Append returns a copy of a with v added at the end.
func (a *Array) Append(v Node) *Array {
	out := &Array{items: make([]Node, len(a.items), len(a.items)+1)}
	copy(out.items, a.items)
	out.items = append(out.items, v)
	return out
}

// Remove returns a copy of a without element i.
func (a *Array) Remove(i int) (*Array, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	out := &Array{items: make([]Node, 0, len(a.items)-1)}
	out.items = append(out.items, a.items[:i]...)
	out.items = append(out.items, a.items[i+1:]...)
	return out, true
}

// ScalarType enumerates the scalar JSON types.
type ScalarType int

const (
	ScalarNull ScalarType = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a JSON string, number, boolean or null. Numbers keep their JSON
// text so values the operator never touched are written back unchanged.
type Scalar struct {
	typ  ScalarType
	text string
	b    bool
}

func (*Scalar) isNode() {}

// String returns a string scalar.
func String(s string) *Scalar { return &Scalar{typ: ScalarString, text: s} }

// Bool returns a boolean scalar.
func Bool(b bool) *Scalar { return &Scalar{typ: ScalarBool, b: b} }

// Null returns the null scalar.
func Null() *Scalar { return &Scalar{typ: ScalarNull} }

// Number returns a number scalar for f.
func Number(f float64) *Scalar {
	return &Scalar{typ: ScalarNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NumberText returns a number scalar from JSON number text. It reports false
// when text is not a valid number.
func NumberText(text string) (*Scalar, bool) {
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return nil, false
	}
	return &Scalar{typ: ScalarNumber, text: text}, true
}

// Type returns the scalar's JSON type.
func (s *Scalar) Type() ScalarType { return s.typ }

// Str returns the string value and whether s is a string.
func (s *Scalar) Str() (string, bool) { return s.text, s.typ == ScalarString }

// BoolValue returns the boolean value and whether s is a boolean.
func (s *Scalar) BoolValue() (bool, bool) { return s.b, s.typ == ScalarBool }

// Float returns the numeric value and whether s is a number.
func (s *Scalar) Float() (float64, bool) {
	if s.typ != ScalarNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(s.text, 64)
	return f, err == nil
}

// Display renders the scalar the way a form control shows it: null is empty.
func (s *Scalar) Display() string {
	switch s.typ {
	case ScalarString, ScalarNumber:
		return s.text
	case ScalarBool:
		return strconv.FormatBool(s.b)
	default:
		return ""
	}
}

// Truthy mirrors the loose truthiness the panel uses for empty checks.
func (s *Scalar) Truthy() bool {
	switch s.typ {
	case ScalarString:
		return s.text != ""
	case ScalarBool:
		return s.b
	case ScalarNumber:
		f, _ := s.Float()
		return f != 0
	default:
		return false
	}
}

// Equal compares two nodes structurally.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Scalar:
		y, ok := b.(*Scalar)
		return ok && x.typ == y.typ && x.text == y.text && x.b == y.b
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.items) != len(y.items) {
			return false
		}
		for i := range x.items {
			if !Equal(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		return ok && equalMembers(x.members, y.members)
	case *Field:
		y, ok := b.(*Field)
		return ok && equalMembers(x.obj.members, y.obj.members)
	case nil:
		return b == nil
	}
	return false
}

func equalMembers(a, b []Member) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

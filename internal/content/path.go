package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
)

// ErrPathNotFound is returned by Write when an intermediate segment does not
// resolve to a container.
var ErrPathNotFound = errors.New("content: path not found")

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	key   string
	index int
	isIdx bool
}

// Key returns an object-key segment.
func Key(k string) Segment { return Segment{key: k} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{index: i, isIdx: true} }

// IsIndex reports whether s addresses an array element.
func (s Segment) IsIndex() bool { return s.isIdx }

// Key returns the object key; empty for index segments.
func (s Segment) Key() string { return s.key }

// Index returns the array index; -1 for key segments.
func (s Segment) Index() int {
	if !s.isIdx {
		return -1
	}
	return s.index
}

func (s Segment) String() string {
	if s.isIdx {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Path locates a node from the document root by repeated key/index access.
type Path []Segment

// P builds a path from strings and ints. It panics on any other type and is
// meant for literals in code and tests.
func P(parts ...any) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Key(v))
		case int:
			p = append(p, Index(v))
		default:
			panic(fmt.Sprintf("content: path segment %T", part))
		}
	}
	return p
}

// Child returns a new path with segs appended. The receiver is never shared
// with the result.
func (p Path) Child(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Key is shorthand for Child(Key(k)).
func (p Path) Key(k string) Path { return p.Child(Key(k)) }

// Index is shorthand for Child(Index(i)).
func (p Path) Index(i int) Path { return p.Child(Index(i)) }

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the path as pages[0].sections[1].content.title for logs.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if !s.isIdx && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// MarshalJSON encodes the path as a JSON array of strings and integers.
func (p Path) MarshalJSON() ([]byte, error) {
	parts := make([]any, len(p))
	for i, s := range p {
		if s.isIdx {
			parts[i] = s.index
		} else {
			parts[i] = s.key
		}
	}
	return j.Marshal(parts)
}

// UnmarshalJSON decodes a JSON array of strings and non-negative integers.
func (p *Path) UnmarshalJSON(b []byte) error {
	var parts []any
	dec := j.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&parts); err != nil {
		return fmt.Errorf("content: path: %w", err)
	}
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			out = append(out, Key(v))
		case j.Number:
			i, err := strconv.Atoi(string(v))
			if err != nil || i < 0 {
				return fmt.Errorf("content: path index %q", string(v))
			}
			out = append(out, Index(i))
		default:
			return fmt.Errorf("content: path segment %T", part)
		}
	}
	*p = out
	return nil
}

// ParsePath decodes the JSON wire form of a path.
func ParsePath(s string) (Path, error) {
	var p Path
	if err := p.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	return p, nil
}

// Read resolves p from root. It reports false when any segment is missing,
// addresses the wrong container type or is out of range.
func Read(root Node, p Path) (Node, bool) {
	cur := root
	for _, s := range p {
		next, ok := step(cur, s)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

func step(n Node, s Segment) (Node, bool) {
	if n == nil {
		return nil, false
	}
	if s.isIdx {
		a, ok := n.(*Array)
		if !ok {
			return nil, false
		}
		return a.At(s.index)
	}
	o, ok := members(n)
	if !ok {
		return nil, false
	}
	return o.Get(s.key)
}

// Write returns a new root in which the node at p is v. Only the nodes on
// the path are rebuilt; everything else is shared with root. The final
// segment may name a new object key or the index one past the end of an
// array, in which case the value is appended.
func Write(root Node, p Path, v Node) (Node, error) {
	if len(p) == 0 {
		return v, nil
	}
	child, ok := step(root, p[0])
	if !ok {
		if len(p) > 1 {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}
		child = nil
	}
	var next Node = v
	if len(p) > 1 {
		var err error
		next, err = Write(child, p[1:], v)
		if err != nil {
			return nil, err
		}
	}
	return replace(root, p[0], next)
}

func replace(n Node, s Segment, v Node) (Node, error) {
	if s.isIdx {
		a, ok := n.(*Array)
		if !ok {
			return nil, fmt.Errorf("%w: index %d on non-array", ErrPathNotFound, s.index)
		}
		out, ok := a.With(s.index, v)
		if !ok {
			return nil, fmt.Errorf("%w: index %d out of range", ErrPathNotFound, s.index)
		}
		return out, nil
	}
	switch c := n.(type) {
	case *Object:
		return classify(c.With(s.key, v)), nil
	case *Field:
		return c.With(s.key, v), nil
	}
	return nil, fmt.Errorf("%w: key %q on non-object", ErrPathNotFound, s.key)
}

package content

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPathString(t *testing.T) {
	p := P("pages", 0, "sections", 1, "content", "title")
	if got, want := p.String(), "pages[0].sections[1].content.title"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPathJSON(t *testing.T) {
	p := P("pages", 2, "content")
	raw, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(raw) != `["pages",2,"content"]` {
		t.Errorf("wire form = %s", raw)
	}
	back, err := ParsePath(string(raw))
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("round trip = %s, want %s", back, p)
	}
}

func TestParsePathRejects(t *testing.T) {
	for _, in := range []string{`[-1]`, `[1.5]`, `[true]`, `{"a":1}`, `not json`} {
		if _, err := ParsePath(in); err == nil {
			t.Errorf("ParsePath(%s) succeeded", in)
		}
	}
}

func TestChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 8)
	base[0] = Key("pages")
	a := base.Index(0)
	b := base.Index(1)
	if a[1].Index() != 0 || b[1].Index() != 1 {
		t.Fatalf("children share storage: %s %s", a, b)
	}
	parent := a.Parent()
	_ = parent.Key("x")
	if a[1].Index() != 0 {
		t.Fatalf("Parent result aliases receiver: %s", a)
	}
}

func TestReadMisses(t *testing.T) {
	root := mustDecode(t, `{"a":[1,{"b":"x"}]}`)
	for _, p := range []Path{P("z"), P("a", 5), P("a", "b"), P("a", 0, "b"), P("a", 1, 0)} {
		if _, ok := Read(root, p); ok {
			t.Errorf("Read(%s) found a node", p)
		}
	}
	if n, ok := Read(root, nil); !ok || n != root {
		t.Error("empty path should resolve to root")
	}
}

func TestWriteCreatesAndReplaces(t *testing.T) {
	root := mustDecode(t, `{"a":{"b":1},"c":[1,2]}`)

	cases := []struct {
		name string
		path Path
		val  Node
		want string
	}{
		{"replace key", P("a", "b"), Number(2), `{"a":{"b":2},"c":[1,2]}`},
		{"new key appended", P("a", "z"), String("n"), `{"a":{"b":1,"z":"n"},"c":[1,2]}`},
		{"replace index", P("c", 0), Bool(true), `{"a":{"b":1},"c":[true,2]}`},
		{"append index", P("c", 2), Null(), `{"a":{"b":1},"c":[1,2,null]}`},
		{"root", nil, String("r"), `"r"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Write(root, tc.path, tc.val)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if diff := cmp.Diff(tc.want, mustEncode(t, out)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
	if got := mustEncode(t, root); got != `{"a":{"b":1},"c":[1,2]}` {
		t.Errorf("input mutated: %s", got)
	}
}

func TestWriteErrors(t *testing.T) {
	root := mustDecode(t, `{"a":"s","c":[1]}`)
	for _, p := range []Path{P("x", "y"), P("a", "b"), P("c", 3), P("c", "k"), P("a", 0)} {
		if _, err := Write(root, p, Null()); !errors.Is(err, ErrPathNotFound) {
			t.Errorf("Write(%s) err = %v, want ErrPathNotFound", p, err)
		}
	}
}

func TestWriteReclassifies(t *testing.T) {
	root := mustDecode(t, `{"o":{"title":"T"}}`)
	out, err := Write(root, P("o", "kind"), String("text"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, _ := Read(out, P("o"))
	if _, ok := n.(*Field); !ok {
		t.Fatalf("adding kind should classify as field, got %T", n)
	}
}

func TestWriteSharesUntouchedSubtrees(t *testing.T) {
	root := mustDecode(t, `{"a":{"x":1},"b":{"y":2}}`)
	out, err := Write(root, P("a", "x"), Number(5))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	before, _ := Read(root, P("b"))
	after, _ := Read(out, P("b"))
	if before != after {
		t.Error("sibling subtree was copied instead of shared")
	}
}

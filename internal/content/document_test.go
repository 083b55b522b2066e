package content

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	j "github.com/goccy/go-json"
)

func TestDocumentNavigation(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`{"pages":[
		{"id":"home","title":"Home","sections":[{"id":"hero","title":"Hero","content":{}},{"id":"about","title":"About","content":{"x":1}}]},
		"junk",
		{"id":"blog","title":"Blog","sections":[]}
	]}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	want := []PageRef{
		{Index: 0, ID: "home", Title: "Home", SectionCount: 2},
		{Index: 2, ID: "blog", Title: "Blog", SectionCount: 0},
	}
	if diff := cmp.Diff(want, doc.Pages()); diff != "" {
		t.Errorf("Pages (-want +got):\n%s", diff)
	}
	if doc.PageCount() != 3 {
		t.Errorf("PageCount = %d", doc.PageCount())
	}

	sec, ok := doc.Section(0, 1)
	if !ok {
		t.Fatal("section 0/1 missing")
	}
	if sec.ID != "about" || !sec.ContentPath.Equal(P("pages", 0, "sections", 1, "content")) {
		t.Errorf("section = %+v", sec)
	}
	if _, ok := doc.Section(0, 9); ok {
		t.Error("out of range section resolved")
	}
	if got := len(doc.Sections(0)); got != 2 {
		t.Errorf("Sections(0) = %d", got)
	}
}

func TestNilDocument(t *testing.T) {
	var doc *Document
	if doc.Pages() != nil || doc.PageCount() != 0 || doc.Fingerprint() != "" {
		t.Error("nil document should be empty")
	}
	raw, err := doc.MarshalJSON()
	if err != nil || string(raw) != "null" {
		t.Errorf("MarshalJSON = %s, %v", raw, err)
	}
}

func TestDocumentJSONEmbedding(t *testing.T) {
	type envelope struct {
		Doc *Document `json:"doc"`
	}
	in := `{"doc":{"b":1,"a":2}}`
	var env envelope
	if err := j.Unmarshal([]byte(in), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := j.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("embedded round trip = %s", out)
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	a := scenarioDoc(t)
	b := scenarioDoc(t)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal documents differ in fingerprint")
	}
	c, _ := SetValue(a, P("pages", 0, "title"), String("Start"))
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("edit did not change fingerprint")
	}
}

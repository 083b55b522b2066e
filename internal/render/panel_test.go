package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sitepanel/internal/content"
)

const siteJSON = `{"pages":[
	{"id":"home","title":"Home","sections":[
		{"id":"hero","title":"Hero","content":{"headline":{"kind":"text","title":"Headline","value":"Hi"}}},
		{"id":"team","title":"Team","content":{"lead":{"kind":"text","title":"Lead","value":"Ada"}}}
	]},
	{"id":"blog","title":"Blog","sections":[]}
]}`

func TestPanel(t *testing.T) {
	doc := content.NewDocument(decode(t, siteJSON))
	v := Panel(doc, content.Cursor{Page: 0, Section: 1})

	wantPages := []PageTab{
		{Index: 0, ID: "home", Title: "Home", Icon: "🏠", SectionCount: 2, Active: true},
		{Index: 1, ID: "blog", Title: "Blog", Icon: "📄", SectionCount: 0},
	}
	if diff := cmp.Diff(wantPages, v.Pages); diff != "" {
		t.Errorf("pages (-want +got):\n%s", diff)
	}
	if v.Section == nil || v.Section.ID != "team" || v.Section.Icon != "👥" {
		t.Fatalf("section = %+v", v.Section)
	}
	if !v.ContentPath.Equal(content.P("pages", 0, "sections", 1, "content")) {
		t.Errorf("content path = %s", v.ContentPath)
	}
	f := v.Blocks[0].(FieldBlock)
	if f.Input.Value != "Ada" {
		t.Errorf("block = %+v", f)
	}
}

func TestPanelClampsCursor(t *testing.T) {
	doc := content.NewDocument(decode(t, siteJSON))

	v := Panel(doc, content.Cursor{Page: 7, Section: 3})
	if v.Cursor != (content.Cursor{Page: 1, Section: 0}) {
		t.Errorf("cursor = %+v", v.Cursor)
	}
	if v.Page == nil || v.Page.ID != "blog" {
		t.Errorf("page = %+v", v.Page)
	}
	if v.Section != nil || v.Blocks != nil {
		t.Errorf("page without sections should have no content: %+v", v)
	}

	v = Panel(doc, content.Cursor{Page: -1, Section: 9})
	if v.Cursor != (content.Cursor{Page: 0, Section: 1}) {
		t.Errorf("cursor = %+v", v.Cursor)
	}
}

func TestPanelEmpty(t *testing.T) {
	if v := Panel(nil, content.Cursor{}); !v.Empty() {
		t.Error("nil document should render the empty state")
	}
	doc := content.NewDocument(decode(t, `{"pages":[]}`))
	if v := Panel(doc, content.Cursor{}); !v.Empty() || v.Page != nil {
		t.Error("document without pages should render the empty state")
	}
}

func TestIcons(t *testing.T) {
	if PageIcon("contact") != "📞" || PageIcon("nope") != "📄" {
		t.Error("page icon table")
	}
	if SectionIcon("cta") != "🚀" || SectionIcon("nope") != "📌" {
		t.Error("section icon table")
	}
}

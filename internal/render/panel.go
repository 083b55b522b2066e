package render

import "github.com/starford/sitepanel/internal/content"

var pageIcons = map[string]string{
	"global":        "⚙️",
	"home":          "🏠",
	"about":         "👤",
	"services":      "🛠️",
	"portfolio":     "🎨",
	"events":        "📅",
	"collaboration": "🤝",
	"contact":       "📞",
}

var sectionIcons = map[string]string{
	"meta":          "🔖",
	"navigation":    "🧭",
	"accessibility": "♿",
	"footer":        "📋",
	"hero":          "🎯",
	"introduction":  "📝",
	"approach":      "🎓",
	"services":      "💼",
	"team":          "👥",
	"workshops":     "🎪",
	"social":        "📱",
	"whyUs":         "❓",
	"cta":           "🚀",
	"trust":         "🤝",
	"header":        "📰",
	"mission":       "🎯",
	"vision":        "👁️",
	"values":        "💎",
	"form":          "📝",
	"directContact": "☎️",
}

// PageIcon returns the navigation icon for a page id.
func PageIcon(id string) string {
	if icon, ok := pageIcons[id]; ok {
		return icon
	}
	return "📄"
}

// SectionIcon returns the tab icon for a section id.
func SectionIcon(id string) string {
	if icon, ok := sectionIcons[id]; ok {
		return icon
	}
	return "📌"
}

// PageTab is one entry of the page navigation.
type PageTab struct {
	Index        int
	ID           string
	Title        string
	Icon         string
	SectionCount int
	Active       bool
}

// SectionTab is one section tab of the selected page.
type SectionTab struct {
	Index  int
	ID     string
	Title  string
	Icon   string
	Active bool
}

// PanelView is the whole editor screen.
type PanelView struct {
	Cursor      content.Cursor
	Pages       []PageTab
	Sections    []SectionTab
	Page        *PageTab
	Section     *SectionTab
	ContentPath content.Path
	Blocks      []Block
}

// Empty reports whether there is nothing to edit.
func (v PanelView) Empty() bool { return len(v.Pages) == 0 }

// Panel builds the screen for doc with the default logger.
func Panel(doc *content.Document, cur content.Cursor) PanelView {
	return NewWalker(nil).Panel(doc, cur)
}

// Panel builds the screen for doc with cur clamped to the document. A nil
// document yields an empty view.
func (w *Walker) Panel(doc *content.Document, cur content.Cursor) PanelView {
	cur = cur.Clamp(doc)
	v := PanelView{Cursor: cur}
	for _, p := range doc.Pages() {
		tab := PageTab{
			Index:        p.Index,
			ID:           p.ID,
			Title:        p.Title,
			Icon:         PageIcon(p.ID),
			SectionCount: p.SectionCount,
			Active:       p.Index == cur.Page,
		}
		v.Pages = append(v.Pages, tab)
	}
	for i := range v.Pages {
		if v.Pages[i].Active {
			v.Page = &v.Pages[i]
		}
	}
	if v.Page == nil {
		return v
	}
	for _, s := range doc.Sections(cur.Page) {
		tab := SectionTab{
			Index:  s.Index,
			ID:     s.ID,
			Title:  s.Title,
			Icon:   SectionIcon(s.ID),
			Active: s.Index == cur.Section,
		}
		v.Sections = append(v.Sections, tab)
		if tab.Active {
			v.ContentPath = s.ContentPath
			v.Blocks = w.Walk(s.Content, s.ContentPath)
		}
	}
	for i := range v.Sections {
		if v.Sections[i].Active {
			v.Section = &v.Sections[i]
		}
	}
	return v
}

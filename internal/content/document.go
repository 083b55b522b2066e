package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Document is the page/section/content tree edited in one session. A nil
// *Document is the unset document that exists before the first load.
type Document struct {
	root Node
}

// NewDocument wraps root.
func NewDocument(root Node) *Document {
	if root == nil {
		root = NewObject()
	}
	return &Document{root: root}
}

// ParseDocument decodes a document from JSON.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root), nil
}

// Root returns the root node.
func (d *Document) Root() Node {
	if d == nil {
		return nil
	}
	return d.root
}

// Read resolves p against the document root.
func (d *Document) Read(p Path) (Node, bool) {
	if d == nil {
		return nil, false
	}
	return Read(d.root, p)
}

// MarshalJSON encodes the document in its original key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return Encode(d.root)
}

// UnmarshalJSON decodes the document keeping key order.
func (d *Document) UnmarshalJSON(b []byte) error {
	root, err := Decode(bytes.NewReader(b))
	if err != nil {
		return err
	}
	d.root = root
	return nil
}

// Fingerprint returns the hex SHA-256 of the encoded document, used to tell
// whether the operator has unsaved changes.
func (d *Document) Fingerprint() string {
	if d == nil {
		return ""
	}
	raw, err := Encode(d.root)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// PagesPath addresses the page list.
var PagesPath = P("pages")

// PageRef summarizes one page for navigation.
type PageRef struct {
	Index        int
	ID           string
	Title        string
	SectionCount int
}

// SectionRef is one section of a page together with its content location.
type SectionRef struct {
	PageIndex   int
	Index       int
	ID          string
	Title       string
	Content     Node
	ContentPath Path
}

// Pages lists the document's pages. Entries that are not objects are skipped
// from navigation but keep their index so paths stay valid.
func (d *Document) Pages() []PageRef {
	pages, ok := d.array(PagesPath)
	if !ok {
		return nil
	}
	var out []PageRef
	for i, n := range pages.items {
		o, ok := members(n)
		if !ok {
			continue
		}
		ref := PageRef{Index: i, ID: text(o, "id"), Title: text(o, "title")}
		if secs, ok := o.Get("sections"); ok {
			if a, ok := secs.(*Array); ok {
				ref.SectionCount = a.Len()
			}
		}
		out = append(out, ref)
	}
	return out
}

// PageCount returns the length of the page list.
func (d *Document) PageCount() int {
	pages, ok := d.array(PagesPath)
	if !ok {
		return 0
	}
	return pages.Len()
}

// Sections lists the sections of page p.
func (d *Document) Sections(page int) []SectionRef {
	secs, ok := d.array(PagesPath.Index(page).Key("sections"))
	if !ok {
		return nil
	}
	var out []SectionRef
	for i := range secs.items {
		if ref, ok := d.Section(page, i); ok {
			out = append(out, ref)
		}
	}
	return out
}

// Section returns section s of page p.
func (d *Document) Section(page, section int) (SectionRef, bool) {
	p := PagesPath.Index(page).Key("sections").Index(section)
	n, ok := d.Read(p)
	if !ok {
		return SectionRef{}, false
	}
	o, ok := members(n)
	if !ok {
		return SectionRef{}, false
	}
	ref := SectionRef{
		PageIndex:   page,
		Index:       section,
		ID:          text(o, "id"),
		Title:       text(o, "title"),
		ContentPath: p.Key("content"),
	}
	ref.Content, _ = o.Get("content")
	return ref, true
}

func (d *Document) array(p Path) (*Array, bool) {
	n, ok := d.Read(p)
	if !ok {
		return nil, false
	}
	a, ok := n.(*Array)
	return a, ok
}

func text(o *Object, key string) string {
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	if s, ok := v.(*Scalar); ok {
		return s.Display()
	}
	return ""
}

// Cursor is the selected page and section.
type Cursor struct {
	Page    int `json:"page"`
	Section int `json:"section"`
}

// Clamp returns c limited to the pages and sections present in d.
func (c Cursor) Clamp(d *Document) Cursor {
	n := d.PageCount()
	if n == 0 {
		return Cursor{}
	}
	c.Page = clamp(c.Page, n)
	secs, ok := d.array(PagesPath.Index(c.Page).Key("sections"))
	if !ok || secs.Len() == 0 {
		c.Section = 0
		return c
	}
	c.Section = clamp(c.Section, secs.Len())
	return c
}

func clamp(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

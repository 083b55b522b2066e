package web

import (
	j "github.com/goccy/go-json"

	"github.com/starford/sitepanel/internal/content"
)

// ValueRequest is the body of POST /api/value. A string value is coerced by
// the kind of the field that owns Path; any other JSON value is stored as is.
type ValueRequest struct {
	Path  content.Path  `json:"path"`
	Value j.RawMessage `json:"value"`
}

// PathRequest is the body of POST /api/append and POST /api/image/remove.
type PathRequest struct {
	Path content.Path `json:"path"`
}

// RemoveRequest is the body of POST /api/remove.
type RemoveRequest struct {
	Path  content.Path `json:"path"`
	Index int          `json:"index"`
}

// SelectRequest is the body of POST /select.
type SelectRequest struct {
	Page    int `json:"page"`
	Section int `json:"section"`
}

// RevisionResponse reports the document revision after a mutation.
type RevisionResponse struct {
	Revision uint64 `json:"revision"`
}

// UploadResponse is returned after a successful image upload.
type UploadResponse struct {
	URL      string `json:"url"`
	Revision uint64 `json:"revision"`
}

// DocumentResponse is the current editor state.
type DocumentResponse struct {
	Revision uint64            `json:"revision"`
	State    string            `json:"state"`
	Dirty    bool              `json:"dirty"`
	Uploads  int               `json:"uploads"`
	Cursor   content.Cursor    `json:"cursor"`
	Error    string            `json:"error,omitempty"`
	Content  *content.Document `json:"content"`
}

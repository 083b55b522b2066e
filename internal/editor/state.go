package editor

import (
	"context"
	"errors"

	"github.com/starford/sitepanel/internal/content"
)

// ErrClosed is returned by every operation on a closed controller.
var ErrClosed = errors.New("editor: controller closed")

// State is the controller's load/save state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Snapshot is an immutable view of the controller at one instant.
type Snapshot struct {
	Doc      *content.Document
	Cursor   content.Cursor
	State    State
	Err      error
	Revision uint64
	Dirty    bool
	Uploads  int
	Loaded   bool
}

// Event types passed to the observer.
const (
	EventDocumentChanged = "document.changed"
	EventLoadFinished    = "load.finished"
	EventSaveFinished    = "save.finished"
	EventUploadFinished  = "upload.finished"
)

// Event reports a state change. The observer runs on the controller's
// goroutine and must not call back into the controller.
type Event struct {
	Type     string
	Revision uint64
	// Origin names the client that caused the change, if it gave one.
	Origin string
	Err    error
}

type originKey struct{}

// WithOrigin tags ctx with the client making the calls it is passed to.
// Events caused by those calls carry origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin set by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// state is owned by the controller loop.
type state struct {
	doc      *content.Document
	cursor   content.Cursor
	st       State
	err      error
	revision uint64
	loaded   bool

	fingerprint string
	baseline    string

	// uploads maps the value path of an image field to the generation of
	// the upload currently feeding it.
	uploads map[string]uint64
	gen     uint64
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Doc:      s.doc,
		Cursor:   s.cursor.Clamp(s.doc),
		State:    s.st,
		Err:      s.err,
		Revision: s.revision,
		Dirty:    s.doc != nil && s.fingerprint != s.baseline,
		Uploads:  len(s.uploads),
		Loaded:   s.loaded,
	}
}

// commit installs doc as the current document.
func (s *state) commit(doc *content.Document) {
	s.doc = doc
	s.revision++
	s.fingerprint = doc.Fingerprint()
	s.cursor = s.cursor.Clamp(doc)
	s.pruneUploads()
}

// pruneUploads forgets uploads whose field no longer shows the sentinel.
func (s *state) pruneUploads() {
	for key := range s.uploads {
		p, err := content.ParsePath(key)
		if err != nil || !isSentinel(s.doc, p) {
			delete(s.uploads, key)
		}
	}
}

// uploadBelow reports whether an upload is pending at or under p.
func (s *state) uploadBelow(p content.Path) bool {
	for key := range s.uploads {
		up, err := content.ParsePath(key)
		if err != nil || len(up) < len(p) {
			continue
		}
		if up[:len(p)].Equal(p) {
			return true
		}
	}
	return false
}

func isSentinel(doc *content.Document, p content.Path) bool {
	n, ok := doc.Read(p)
	if !ok {
		return false
	}
	sc, ok := n.(*content.Scalar)
	if !ok {
		return false
	}
	v, ok := sc.Str()
	return ok && v == content.UploadingSentinel
}

func pathKey(p content.Path) string {
	raw, err := p.MarshalJSON()
	if err != nil {
		return p.String()
	}
	return string(raw)
}

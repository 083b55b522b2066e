// Package web implements the browser-facing admin panel: login, the
// schema-driven editor screen and the JSON endpoints its script calls.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/cmsapi"
	"github.com/starford/sitepanel/internal/editor"
	"github.com/starford/sitepanel/internal/render"
	"github.com/starford/sitepanel/internal/session"
	"github.com/starford/sitepanel/internal/sse"
)

// Dialer builds an upstream client whose cookie jar holds cookies.
type Dialer func(cookies []*http.Cookie) (*cmsapi.Client, error)

// Options configures a Handler.
type Options struct {
	Store        session.Store
	Broker       *sse.Broker
	Dial         Dialer
	Secret       string
	CookieName   string
	TTL          time.Duration
	SecureCookie bool
	MaxUpload    int64
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Handler holds the panel's route handlers and the per-session editors.
type Handler struct {
	opts     Options
	log      *slog.Logger
	registry *editor.Registry
	cookies  *securecookie.SecureCookie
	walker   *render.Walker
	views    *views
	now      func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Store == nil || opts.Broker == nil || opts.Dial == nil {
		return nil, errors.New("web: store, broker and dialer are required")
	}
	if len(opts.Secret) < 32 {
		return nil, errors.New("web: secret must be at least 32 bytes")
	}
	if opts.CookieName == "" {
		opts.CookieName = "sitepanel_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = 10 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	v, err := parseViews()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		opts:    opts,
		log:     opts.Logger,
		cookies: newCookieCodec(opts.Secret, opts.TTL),
		walker:  render.NewWalker(opts.Logger),
		views:   v,
		now:     time.Now,
	}
	h.registry = editor.NewRegistry(h.controller)
	return h, nil
}

// Registry returns the editors of signed-in sessions.
func (h *Handler) Registry() *editor.Registry {
	return h.registry
}

// Close closes every open editor.
func (h *Handler) Close() {
	h.registry.Close()
}

// controller builds the editor of sessionID from its stored upstream cookies.
func (h *Handler) controller(ctx context.Context, sessionID string) (*editor.Controller, error) {
	rec, err := h.opts.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	client, err := h.opts.Dial(session.ToHTTP(rec.Cookies))
	if err != nil {
		return nil, fmt.Errorf("dial upstream: %w", err)
	}
	log := h.log.With(slog.String("username", rec.Username))
	return editor.New(newSessionUpstream(client, h.opts.Store, sessionID, log),
		editor.WithTimeout(h.opts.Timeout),
		editor.WithLogger(log),
		editor.WithObserver(h.publisher(sessionID)),
	), nil
}

type eventData struct {
	Revision uint64 `json:"revision"`
	Origin   string `json:"origin,omitempty"`
	Error    string `json:"error,omitempty"`
}

// publisher forwards editor events to the session's browser tabs.
func (h *Handler) publisher(sessionID string) func(editor.Event) {
	return func(ev editor.Event) {
		if ev.Type == editor.EventDocumentChanged {
			h.opts.Broker.PublishChange(sessionID, ev.Revision, ev.Origin)
			return
		}
		data := eventData{Revision: ev.Revision, Origin: ev.Origin}
		if ev.Err != nil {
			data.Error = apperr.Message(ev.Err)
		}
		h.opts.Broker.Publish(sessionID, sse.Event{Type: ev.Type, Data: data})
	}
}

// editorFor returns the editor of the request's session.
func (h *Handler) editorFor(r *http.Request) (*editor.Controller, *session.Record, error) {
	rec := sessionFrom(r.Context())
	if rec == nil {
		return nil, nil, apperr.ErrUnauthorized
	}
	c, err := h.registry.Get(r.Context(), rec.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, editor.ErrClosed) {
			return nil, nil, apperr.ErrUnauthorized
		}
		return nil, nil, err
	}
	return c, rec, nil
}

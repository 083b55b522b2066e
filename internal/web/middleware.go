package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/editor"
	"github.com/starford/sitepanel/internal/session"
)

// ClientHeader carries the id the panel script picks for its tab.
const ClientHeader = "X-Client-ID"

const maxClientID = 64

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Record {
	rec, _ := ctx.Value(sessionKey{}).(*session.Record)
	return rec
}

// RequireSession rejects requests without a live session. Page routes are
// redirected to the login form; /api routes get a 401 JSON body.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.currentSession(r)
		if err != nil {
			if !errors.Is(err, apperr.ErrUnauthorized) {
				h.log.Error("session lookup failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
				return
			}
			h.clearCookie(w, h.opts.CookieName)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSON(w, http.StatusUnauthorized, errorBody(apperr.Message(apperr.ErrUnauthorized)))
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, rec)))
	})
}

// TagClient marks the request context with the sending tab so the events it
// causes name that tab as their origin.
func TagClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(ClientHeader); id != "" {
			if len(id) > maxClientID {
				id = id[:maxClientID]
			}
			r = r.WithContext(editor.WithOrigin(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

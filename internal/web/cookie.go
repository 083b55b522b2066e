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
	"github.com/starford/sitepanel/internal/session"
)

// newCookieCodec derives the cookie keys from secret. The first 32 bytes
// sign; the next 32, when present, encrypt.
func newCookieCodec(secret string, ttl time.Duration) *securecookie.SecureCookie {
	hashKey := []byte(secret[:32])
	var blockKey []byte
	if len(secret) >= 64 {
		blockKey = []byte(secret[32:64])
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return sc
}

func (h *Handler) flashName() string { return h.opts.CookieName + "_flash" }

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// issueSession writes the signed session cookie for rec.
func (h *Handler) issueSession(w http.ResponseWriter, rec *session.Record) error {
	value, err := h.cookies.Encode(h.opts.CookieName, rec.ID)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	h.setCookie(w, h.opts.CookieName, value, rec.ExpiresAt)
	return nil
}

// currentSession resolves the request's session. It returns
// apperr.ErrUnauthorized when there is none or it has expired.
func (h *Handler) currentSession(r *http.Request) (*session.Record, error) {
	c, err := r.Cookie(h.opts.CookieName)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	var id string
	if err := h.cookies.Decode(h.opts.CookieName, c.Value, &id); err != nil {
		return nil, apperr.ErrUnauthorized
	}
	rec, err := h.opts.Store.Get(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		h.registry.Drop(id)
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec.Expired(h.now()) {
		h.endSession(r.Context(), id)
		return nil, apperr.ErrUnauthorized
	}
	return rec, nil
}

// endSession closes the editor of id and forgets the session.
func (h *Handler) endSession(ctx context.Context, id string) {
	h.registry.Drop(id)
	if err := h.opts.Store.Delete(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		h.log.Error("delete session failed", slog.String("error", err.Error()))
	}
}

// setFlash stores a one-shot message shown on the next page view.
func (h *Handler) setFlash(w http.ResponseWriter, f flash) {
	value, err := h.cookies.Encode(h.flashName(), f)
	if err != nil {
		h.log.Error("encode flash failed", slog.String("error", err.Error()))
		return
	}
	h.setCookie(w, h.flashName(), value, time.Time{})
}

// takeFlash returns and clears the pending flash message.
func (h *Handler) takeFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(h.flashName())
	if err != nil {
		return nil
	}
	h.clearCookie(w, h.flashName())
	var f flash
	if err := h.cookies.Decode(h.flashName(), c.Value, &f); err != nil {
		return nil
	}
	return &f
}

type flash struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

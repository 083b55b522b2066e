// Package session persists signed-in operator sessions: who is logged in, the
// website descriptor returned at login and the upstream cookies that
// authenticate further content API calls.
package session

import (
	"context"
	"net/http"
	"time"

	j "github.com/goccy/go-json"
)

// StoredCookie is the persisted form of an upstream cookie.
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Record is one operator session.
type Record struct {
	ID        string
	Username  string
	Website   j.RawMessage
	Cookies   []StoredCookie
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether r has lapsed at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store defines session persistence. Get returns apperr.ErrNotFound for
// unknown and expired sessions.
type Store interface {
	Create(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	UpdateCookies(ctx context.Context, id string, cookies []StoredCookie) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)

// FromHTTP converts cookies taken from a jar or a response.
func FromHTTP(cookies []*http.Cookie) []StoredCookie {
	out := make([]StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

// ToHTTP converts stored cookies back for seeding a cookie jar.
func ToHTTP(cookies []StoredCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

func cloneRecord(r Record) *Record {
	out := r
	out.Website = append(j.RawMessage(nil), r.Website...)
	out.Cookies = append([]StoredCookie(nil), r.Cookies...)
	return &out
}

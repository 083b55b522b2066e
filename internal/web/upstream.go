package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/cmsapi"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/session"
)

// sessionUpstream is the upstream client of one session. Cookies the
// upstream sets on content calls are written back to the session record so
// the session keeps working after a restart.
type sessionUpstream struct {
	*cmsapi.Client
	store session.Store
	id    string
	log   *slog.Logger

	mu    sync.Mutex
	saved string
}

func newSessionUpstream(client *cmsapi.Client, store session.Store, id string, log *slog.Logger) *sessionUpstream {
	return &sessionUpstream{
		Client: client,
		store:  store,
		id:     id,
		log:    log,
		saved:  cookieKey(client.Cookies()),
	}
}

func (u *sessionUpstream) FetchContent(ctx context.Context) (*content.Document, error) {
	doc, err := u.Client.FetchContent(ctx)
	u.syncCookies(ctx)
	return doc, err
}

func (u *sessionUpstream) SaveContent(ctx context.Context, doc *content.Document) error {
	err := u.Client.SaveContent(ctx, doc)
	u.syncCookies(ctx)
	return err
}

func (u *sessionUpstream) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	url, err := u.Client.Upload(ctx, filename, r)
	u.syncCookies(ctx)
	return url, err
}

// syncCookies stores the jar's cookies when they differ from the last ones
// stored.
func (u *sessionUpstream) syncCookies(ctx context.Context) {
	cookies := u.Client.Cookies()
	key := cookieKey(cookies)

	u.mu.Lock()
	defer u.mu.Unlock()
	if key == u.saved {
		return
	}
	err := u.store.UpdateCookies(context.WithoutCancel(ctx), u.id, session.FromHTTP(cookies))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			u.log.Warn("persist upstream cookies failed", slog.String("error", err.Error()))
		}
		return
	}
	u.saved = key
	u.log.Debug("upstream cookies updated", slog.Int("cookies", len(cookies)))
}

func cookieKey(cookies []*http.Cookie) string {
	var b strings.Builder
	for _, c := range cookies {
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
		b.WriteByte(';')
	}
	return b.String()
}

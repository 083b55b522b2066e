package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/sitepanel/internal/session"
	"github.com/starford/sitepanel/internal/sse"
	"github.com/starford/sitepanel/internal/testutil"
	"github.com/starford/sitepanel/internal/web"
)

func testApp(t *testing.T, store session.Store) (*application, *web.Handler) {
	t.Helper()

	up := testutil.NewUpstream(t)
	cfg := validConfig()
	cfg.Upstream.BaseURL = up.URL

	app, err := newApplication(io.Discard, []Option{WithConfig(cfg), WithSessionStore(store)})
	if err != nil {
		t.Fatal(err)
	}
	broker := sse.NewBroker(10 * time.Millisecond)
	t.Cleanup(broker.Close)

	h, err := web.NewHandler(web.Options{
		Store:      store,
		Broker:     broker,
		Dial:       app.dialer(),
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Timeout:    cfg.Upstream.Timeout,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Close)
	return app, h
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	if _, err := newApplication(io.Discard, nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestOpenStore(t *testing.T) {
	cfg := validConfig()
	app, err := newApplication(io.Discard, []Option{WithConfig(cfg)})
	if err != nil {
		t.Fatal(err)
	}
	store, owned, err := app.openStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*session.Memory); !ok || !owned {
		t.Errorf("got %T owned=%v, want owned memory store", store, owned)
	}

	cfg.Session.Store = SessionStoreSQLite
	cfg.Session.SQLitePath = t.TempDir() + "/sessions.db"
	store, owned, err = app.openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*session.SQLite); !ok || !owned {
		t.Errorf("got %T owned=%v, want owned sqlite store", store, owned)
	}

	given := session.NewMemory()
	app.store = given
	store, owned, _ = app.openStore()
	if store != given || owned {
		t.Error("injected store should be used and not owned")
	}
}

func TestHealthAndPanelRoutes(t *testing.T) {
	_, h := testApp(t, session.NewMemory())
	srv := httptest.NewServer(router(h))
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != `{"status":"ok"}` {
			t.Errorf("%s: %d %s", path, resp.StatusCode, body)
		}
	}

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Errorf("GET / = %d %q, want redirect to /login", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestSweepSessions(t *testing.T) {
	store := session.NewMemory()
	_, h := testApp(t, store)
	ctx := context.Background()
	now := time.Now()

	live := session.Record{ID: "live", Username: testutil.Username, Cookies: session.FromHTTP(testutil.LoginCookies()), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := session.Record{ID: "stale", Username: testutil.Username, Cookies: session.FromHTTP(testutil.LoginCookies()), CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	for _, rec := range []session.Record{live, stale} {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if _, err := h.Registry().Get(ctx, rec.ID); err != nil {
			t.Fatal(err)
		}
	}

	sweepSessions(ctx, store, h.Registry(), now.Add(10*time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := store.Get(ctx, "stale"); err == nil {
		t.Error("expired session survived the sweep")
	}
	if _, ok := h.Registry().Lookup("stale"); ok {
		t.Error("editor of expired session survived the sweep")
	}
	if _, ok := h.Registry().Lookup("live"); !ok {
		t.Error("editor of live session was dropped")
	}
}

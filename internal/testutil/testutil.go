// Package testutil provides shared test helpers: a fake upstream content API,
// sample documents and temporary session stores.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	j "github.com/goccy/go-json"

	"github.com/starford/sitepanel/internal/session"
)

// SampleDocument is a small site with two pages, a list and every field kind.
const SampleDocument = `{"pages":[` +
	`{"id":"home","title":"Home","sections":[` +
	`{"id":"hero","title":"Hero","content":{` +
	`"headline":{"kind":"text","title":"Headline","value":"Hi"},` +
	`"cover":{"kind":"image","title":"Cover","value":""},` +
	`"visible":{"kind":"boolean","title":"Visible","value":true},` +
	`"order":{"kind":"number","title":"Order","value":1},` +
	`"body":{"kind":"texteditor","title":"Body","value":"Welcome"}}},` +
	`{"id":"team","title":"Team","content":{` +
	`"members":{"kind":"array","title":"Members","value":[` +
	`{"name":{"kind":"text","title":"Name","value":"Ada"},"photo":{"kind":"image","title":"Photo","value":"https://cdn.example/ada.png"}}]}}}]},` +
	`{"id":"contact","title":"Contact","sections":[` +
	`{"id":"form","title":"Form","content":{"email":{"kind":"url","title":"Email","value":"mailto:hi@example.com"}}}]}]}`

// Credentials accepted by the fake upstream.
const (
	Username = "editor"
	Password = "secret"
	Website  = `{"name":"Studio","domain":"studio.example"}`
)

const sessionCookie = "sid"
const sessionToken = "upstream-token"

// Upstream is a fake content API served by httptest.
type Upstream struct {
	*httptest.Server

	mu           sync.Mutex
	token        string
	rotateTo     string
	doc          []byte
	saves        [][]byte
	uploads      []string
	loginStatus  int
	loginMessage string
	contentFail  int
	saveFail     int
	uploadFail   bool
	uploadGate   chan struct{}
}

// NewUpstream starts a fake upstream serving SampleDocument. It is closed on
// test cleanup.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()
	u := &Upstream{token: sessionToken, doc: []byte(SampleDocument), loginMessage: "Login successful"}

	r := chi.NewRouter()
	r.Post("/login", u.login)
	r.Group(func(r chi.Router) {
		r.Use(u.requireCookie)
		r.Get("/my-content", u.content)
		r.Put("/content", u.save)
		r.Post("/upload", u.upload)
	})
	u.Server = httptest.NewServer(r)
	t.Cleanup(u.Server.Close)
	return u
}

func (u *Upstream) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := j.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	status, message, token := u.loginStatus, u.loginMessage, u.token
	u.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if in.Username != Username || in.Password != Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"message":"`+message+`","website":`+Website+`}`)
}

func (u *Upstream) requireCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		u.mu.Lock()
		if err != nil || c.Value != u.token {
			u.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if u.rotateTo != "" {
			u.token, u.rotateTo = u.rotateTo, ""
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: u.token, Path: "/", HttpOnly: true})
		}
		u.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (u *Upstream) content(w http.ResponseWriter, _ *http.Request) {
	u.mu.Lock()
	fail, doc := u.contentFail, u.doc
	u.mu.Unlock()
	if fail != 0 {
		w.WriteHeader(fail)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

func (u *Upstream) save(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.saveFail != 0 {
		w.WriteHeader(u.saveFail)
		return
	}
	var in struct {
		Content j.RawMessage `json:"content"`
	}
	if err := j.Unmarshal(body, &in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u.saves = append(u.saves, body)
	u.doc = append([]byte(nil), in.Content...)
	_, _ = io.WriteString(w, `{"success":true}`)
}

func (u *Upstream) upload(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	gate, fail := u.uploadGate, u.uploadFail
	u.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	file, hdr, err := r.FormFile("image")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	file.Close()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		_, _ = io.WriteString(w, `{"success":false}`)
		return
	}
	u.mu.Lock()
	u.uploads = append(u.uploads, hdr.Filename)
	u.mu.Unlock()
	_, _ = io.WriteString(w, `{"success":true,"url":"https://cdn.example/`+hdr.Filename+`"}`)
}

// SetDocument replaces the served document.
func (u *Upstream) SetDocument(raw string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.doc = []byte(raw)
}

// Document returns the currently stored document.
func (u *Upstream) Document() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.doc...)
}

// Saves returns the raw bodies of every accepted save.
func (u *Upstream) Saves() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]byte(nil), u.saves...)
}

// Uploads returns the file names of accepted uploads.
func (u *Upstream) Uploads() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.uploads...)
}

// FailLogin makes /login answer status.
func (u *Upstream) FailLogin(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.loginStatus = status
}

// SetLoginMessage changes the message of a 2xx login answer.
func (u *Upstream) SetLoginMessage(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.loginMessage = msg
}

// FailContent makes /my-content answer status; 0 restores normal service.
func (u *Upstream) FailContent(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.contentFail = status
}

// FailSave makes /content answer status; 0 restores normal service.
func (u *Upstream) FailSave(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.saveFail = status
}

// FailUpload makes /upload answer success:false.
func (u *Upstream) FailUpload(fail bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploadFail = fail
}

// HoldUploads blocks uploads until the returned release func is called.
func (u *Upstream) HoldUploads() (release func()) {
	gate := make(chan struct{})
	u.mu.Lock()
	u.uploadGate = gate
	u.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			u.mu.Lock()
			u.uploadGate = nil
			u.mu.Unlock()
			close(gate)
		})
	}
}

// RotateCookie makes the next authenticated call answer with a new session
// cookie holding token. From then on only token is accepted.
func (u *Upstream) RotateCookie(token string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rotateTo = token
}

// LoginCookies returns the cookies a successful login sets.
func LoginCookies() []*http.Cookie {
	return []*http.Cookie{{Name: sessionCookie, Value: sessionToken, Path: "/"}}
}

// TestSessionStore creates a temporary SQLite session store that is
// automatically closed.
func TestSessionStore(t *testing.T) *session.SQLite {
	t.Helper()
	db, err := session.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

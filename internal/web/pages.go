package web

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	j "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/editor"
	"github.com/starford/sitepanel/internal/render"
	"github.com/starford/sitepanel/internal/session"
)

type loginForm struct {
	Username string
	Password string
}

func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Password, validation.Required),
	)
}

type loginData struct {
	Username string
	Error    string
}

type panelData struct {
	Username string
	Site     string
	Flash    *flash
	Loading  bool
	Saving   bool
	Dirty    bool
	Uploads  int
	Error    string
	Revision uint64
	View     render.PanelView
}

func (h *Handler) render(w http.ResponseWriter, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.log.Error("render template failed", slog.String("template", t.Name()), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// LoginPage handles GET /login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.currentSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, h.views.login, loginData{})
}

// Login handles POST /login: the credentials are relayed to the upstream
// and, on success, a session holding its cookies is created.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if err := form.Validate(); err != nil {
		h.render(w, http.StatusBadRequest, h.views.login, loginData{
			Username: form.Username,
			Error:    "Please enter your username and password.",
		})
		return
	}

	client, err := h.opts.Dial(nil)
	if err != nil {
		h.log.Error("dial upstream failed", slog.String("error", err.Error()))
		h.render(w, http.StatusInternalServerError, h.views.login, loginData{Username: form.Username, Error: apperr.Message(err)})
		return
	}
	res, err := client.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		h.log.Warn("login failed", slog.String("username", form.Username), slog.String("error", err.Error()))
		h.render(w, apperr.Status(err), h.views.login, loginData{Username: form.Username, Error: apperr.Message(err)})
		return
	}

	now := h.now()
	rec := session.Record{
		ID:        uuid.NewString(),
		Username:  form.Username,
		Website:   res.Website,
		Cookies:   session.FromHTTP(res.Cookies),
		CreatedAt: now,
		ExpiresAt: now.Add(h.opts.TTL),
	}
	if err := h.opts.Store.Create(r.Context(), rec); err != nil {
		h.log.Error("create session failed", slog.String("error", err.Error()))
		h.render(w, http.StatusInternalServerError, h.views.login, loginData{Username: form.Username, Error: apperr.Message(err)})
		return
	}
	if err := h.issueSession(w, &rec); err != nil {
		h.log.Error("issue session failed", slog.String("error", err.Error()))
		h.render(w, http.StatusInternalServerError, h.views.login, loginData{Username: form.Username, Error: apperr.Message(err)})
		return
	}
	h.log.Info("operator signed in", slog.String("username", rec.Username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if rec := sessionFrom(r.Context()); rec != nil {
		h.endSession(r.Context(), rec.ID)
		h.log.Info("operator signed out", slog.String("username", rec.Username))
	}
	h.clearCookie(w, h.opts.CookieName)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Panel handles GET /.
func (h *Handler) Panel(w http.ResponseWriter, r *http.Request) {
	c, rec, err := h.editorFor(r)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			h.clearCookie(w, h.opts.CookieName)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		h.log.Error("open editor failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.extend(w, r, rec)

	snap := c.Snapshot()
	data := panelData{
		Username: rec.Username,
		Site:     siteName(rec.Website),
		Flash:    h.takeFlash(w, r),
		Loading:  snap.Doc == nil && (snap.State == editor.StateLoading || (!snap.Loaded && snap.Err == nil)),
		Saving:   snap.State == editor.StateSaving,
		Dirty:    snap.Dirty,
		Uploads:  snap.Uploads,
		Revision: snap.Revision,
		View:     h.walker.Panel(snap.Doc, snap.Cursor),
	}
	if snap.Err != nil {
		data.Error = apperr.Message(snap.Err)
	}
	h.render(w, http.StatusOK, h.views.panel, data)
}

// Select handles POST /select.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SelectRequest
	if isJSONRequest(r) {
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		if req.Page, err = strconv.Atoi(r.FormValue("page")); err != nil {
			h.fail(w, r, invalid("page must be an integer"))
			return
		}
		if s := r.FormValue("section"); s != "" {
			if req.Section, err = strconv.Atoi(s); err != nil {
				h.fail(w, r, invalid("section must be an integer"))
				return
			}
		}
	}
	if err := c.Select(content.Cursor{Page: req.Page, Section: req.Section}); err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, c.Snapshot().Cursor, "")
}

// extend slides the session expiry once half of its lifetime has passed.
func (h *Handler) extend(w http.ResponseWriter, r *http.Request, rec *session.Record) {
	now := h.now()
	if rec.ExpiresAt.Sub(now) > h.opts.TTL/2 {
		return
	}
	rec.ExpiresAt = now.Add(h.opts.TTL)
	if err := h.opts.Store.Touch(r.Context(), rec.ID, rec.ExpiresAt); err != nil {
		h.log.Warn("extend session failed", slog.String("error", err.Error()))
		return
	}
	if err := h.issueSession(w, rec); err != nil {
		h.log.Warn("reissue session cookie failed", slog.String("error", err.Error()))
	}
}

// siteName picks a display name out of the website payload returned by
// login.
func siteName(raw j.RawMessage) string {
	var site map[string]any
	if len(raw) == 0 || j.Unmarshal(raw, &site) != nil {
		return ""
	}
	for _, key := range []string{"name", "title", "domain", "url"} {
		if s, ok := site[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	j "github.com/goccy/go-json"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/editor"
)

// reply answers a successful mutation: JSON for the panel script, a
// redirect back to the panel with a flash message for plain forms.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, v any, notice string) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	if notice != "" {
		h.setFlash(w, flash{Message: notice})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail answers err in the same manner as reply.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, editor.ErrClosed) {
		err = apperr.ErrUnauthorized
	}
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("route", r.URL.Path),
			slog.String("error", err.Error()))
	}
	if wantsJSON(r) {
		writeJSON(w, status, errorBody(messageOf(err)))
		return
	}
	if status == http.StatusUnauthorized {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.setFlash(w, flash{Message: messageOf(err), Error: true})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func formPath(r *http.Request, name string) (content.Path, error) {
	p, err := content.ParsePath(r.FormValue(name))
	if err != nil || len(p) == 0 {
		return nil, invalid(name + " must be a JSON path")
	}
	return p, nil
}

func requirePath(p content.Path) error {
	if len(p) == 0 {
		return invalid("path is required")
	}
	return nil
}

// SetValue handles POST /api/value.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var rev uint64
	if isJSONRequest(r) {
		var req ValueRequest
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := requirePath(req.Path); err != nil {
			h.fail(w, r, err)
			return
		}
		rev, err = setRaw(r.Context(), c, req.Path, req.Value)
	} else {
		p, perr := formPath(r, "path")
		if perr != nil {
			h.fail(w, r, perr)
			return
		}
		rev, err = c.SetInput(r.Context(), p, r.FormValue("value"))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: rev}, "")
}

// setRaw stores a JSON value. Strings go through kind coercion.
func setRaw(ctx context.Context, c *editor.Controller, p content.Path, raw j.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, invalid("value is required")
	}
	if raw[0] == '"' {
		var text string
		if err := j.Unmarshal(raw, &text); err != nil {
			return 0, invalid("value is not valid JSON")
		}
		return c.SetInput(ctx, p, text)
	}
	v, err := content.DecodeBytes(raw)
	if err != nil {
		return 0, invalid("value is not valid JSON")
	}
	return c.SetValue(ctx, p, v)
}

// Append handles POST /api/append.
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.pathParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rev, err := c.Append(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: rev}, "Item added.")
}

// Remove handles POST /api/remove.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req RemoveRequest
	if isJSONRequest(r) {
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := requirePath(req.Path); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		if req.Path, err = formPath(r, "path"); err != nil {
			h.fail(w, r, err)
			return
		}
		if req.Index, err = strconv.Atoi(r.FormValue("index")); err != nil {
			h.fail(w, r, invalid("index must be an integer"))
			return
		}
	}
	rev, err := c.Remove(r.Context(), req.Path, req.Index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: rev}, "Item removed.")
}

// Upload handles POST /api/upload (multipart/form-data, fields "path" and
// "image").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUpload)
	if err := r.ParseMultipartForm(h.opts.MaxUpload); err != nil {
		h.fail(w, r, invalid("image too large or invalid multipart"))
		return
	}
	p, err := formPath(r, "path")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		h.fail(w, r, invalid("missing 'image' field in multipart form"))
		return
	}
	defer file.Close()

	url, err := c.Upload(r.Context(), p, header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, UploadResponse{URL: url, Revision: c.Snapshot().Revision}, "Image uploaded.")
}

// RemoveImage handles POST /api/image/remove.
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.pathParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rev, err := c.RemoveImage(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: rev}, "Image removed.")
}

// Save handles POST /api/save. The submission outlives the browser request
// so closing the tab does not abort it.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Save(context.WithoutCancel(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: c.Snapshot().Revision}, "Changes saved.")
}

// Reload handles POST /api/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Load(context.WithoutCancel(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, RevisionResponse{Revision: c.Snapshot().Revision}, "Content reloaded.")
}

// Document handles GET /api/document.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.editorFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap := c.Snapshot()
	resp := DocumentResponse{
		Revision: snap.Revision,
		State:    snap.State.String(),
		Dirty:    snap.Dirty,
		Uploads:  snap.Uploads,
		Cursor:   snap.Cursor,
		Content:  snap.Doc,
	}
	if snap.Err != nil {
		resp.Error = apperr.Message(snap.Err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /api/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rec := sessionFrom(r.Context())
	if rec == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody(apperr.Message(apperr.ErrUnauthorized)))
		return
	}
	h.opts.Broker.Serve(w, r, rec.ID)
}

// pathParam reads a lone path from a JSON body or a form field.
func (h *Handler) pathParam(r *http.Request) (content.Path, error) {
	if !isJSONRequest(r) {
		return formPath(r, "path")
	}
	var req PathRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := requirePath(req.Path); err != nil {
		return nil, err
	}
	return req.Path, nil
}

package web

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	j "github.com/goccy/go-json"

	"github.com/starford/sitepanel/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := j.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }
func (e *badRequest) Unwrap() error { return errBadRequest }

func invalid(msg string) error { return &badRequest{msg: msg} }

func statusOf(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	return apperr.Status(err)
}

func messageOf(err error) string {
	var br *badRequest
	if errors.As(err, &br) {
		return br.msg
	}
	return apperr.Message(err)
}

// wantsJSON reports whether the caller is the panel script rather than a
// plain HTML form.
func wantsJSON(r *http.Request) bool {
	return isJSONRequest(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONRequest(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

func decodeJSON(r *http.Request, dst any) error {
	if err := j.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalid("invalid JSON body")
	}
	return nil
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBusy          = errors.New("busy")
	ErrUploadPending = errors.New("upload in progress")
	ErrUnreachable   = errors.New("upstream unreachable")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginRejected      = errors.New("login rejected")
)

// AuthError is a login failure reported by the upstream API with a status
// other than 401.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed: upstream status %d", e.Status)
}

// LoadError wraps a failure to fetch the content document.
type LoadError struct{ Err error }

func (e *LoadError) Error() string { return "load content: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// SaveError wraps a failure to submit the content document.
type SaveError struct{ Err error }

func (e *SaveError) Error() string { return "save content: " + e.Err.Error() }
func (e *SaveError) Unwrap() error { return e.Err }

// UploadError wraps a failed image upload.
type UploadError struct{ Err error }

func (e *UploadError) Error() string { return "upload image: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// SchemaAnomaly describes a document shape the renderer did not expect. It
// is logged, never shown to the operator.
type SchemaAnomaly struct {
	Path   string
	Reason string
}

func (e *SchemaAnomaly) Error() string {
	return fmt.Sprintf("schema anomaly at %s: %s", e.Path, e.Reason)
}

// Status maps an error to the HTTP status the browser surface answers with.
func Status(err error) int {
	var (
		auth   *AuthError
		load   *LoadError
		save   *SaveError
		upload *UploadError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBusy), errors.Is(err, ErrUploadPending), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &auth), errors.Is(err, ErrLoginRejected),
		errors.As(err, &load), errors.As(err, &save), errors.As(err, &upload),
		errors.Is(err, ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the operator-facing text for err.
func Message(err error) string {
	var (
		auth   *AuthError
		load   *LoadError
		save   *SaveError
		upload *UploadError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.As(err, &auth):
		return fmt.Sprintf("Login failed (status %d). Please try again.", auth.Status)
	case errors.Is(err, ErrLoginRejected):
		return "Login was not accepted by the server."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has ended. Please sign in again."
	case errors.Is(err, ErrBusy):
		return "Another operation is still running."
	case errors.Is(err, ErrUploadPending):
		return "Wait for the image upload to finish before saving."
	case errors.As(err, &load):
		return "Could not load content from the server."
	case errors.As(err, &save):
		return "Saving failed. Your changes are kept; please try again."
	case errors.As(err, &upload):
		return "Image upload failed. Please try again."
	case errors.Is(err, ErrUnreachable):
		return "Could not reach the server. Check your connection."
	case errors.Is(err, ErrNotFound):
		return "The requested field does not exist."
	case errors.Is(err, ErrConflict):
		return "The content changed in the meantime. Please try again."
	default:
		return "Something went wrong."
	}
}

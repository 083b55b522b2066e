package internal

import (
	"io"

	"github.com/starford/sitepanel/internal/session"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	store     session.Store
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSessionStore replaces the store selected by the session config.
func WithSessionStore(s session.Store) Option {
	return func(a *application) {
		a.store = s
	}
}

// WithLogOutput sets where the JSON log is written. It defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

package web

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the panel pages, the JSON API and the
// static assets mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/", h.Panel)
		r.Post("/logout", h.Logout)
		r.Post("/select", h.Select)

		r.Route("/api", func(r chi.Router) {
			r.Use(TagClient)

			r.Post("/value", h.SetValue)
			r.Post("/append", h.Append)
			r.Post("/remove", h.Remove)
			r.Post("/upload", h.Upload)
			r.Post("/image/remove", h.RemoveImage)
			r.Post("/save", h.Save)
			r.Post("/reload", h.Reload)
			r.Get("/document", h.Document)
			r.Get("/events", h.Events)
		})
	})

	return r
}

package web

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/heritage/internal/preview"
	"github.com/starford/heritage/internal/sse"
)

// Options configures the web router.
type Options struct {
	Registry *preview.Registry
	Broker   *sse.Broker
	// Sync re-imports the local catalog; nil disables POST /api/catalog/sync.
	Sync        SyncFunc
	AuthEnabled bool
	Token       string
	RenderWait  time.Duration
}

// NewRouter creates a chi router with the pages, static assets and the
// /api routes mounted.
func NewRouter(opts Options) (chi.Router, error) {
	render, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	p := NewPages(opts.Registry, render, opts.RenderWait)
	h := NewHandler(opts.Registry, opts.Broker, render, opts.Sync)

	r := chi.NewRouter()
	r.Get("/", p.Home)
	r.Get("/stories", p.Stories)
	r.Get("/monuments", p.Monuments)
	r.Get("/quizzes", p.Quizzes)
	r.Get("/ar", p.AR)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", opts.Broker.ServeHTTP)
		r.Post("/activations", h.CreateActivation)
		r.Route("/activations/{id}", func(r chi.Router) {
			r.Get("/", h.GetActivation)
			r.Delete("/", h.DeleteActivation)
			r.Get("/view", h.ViewActivation)
			r.Post("/narration", h.Narrate)
			r.Get("/events", h.Events)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))
			r.Post("/catalog/sync", h.SyncCatalog)
		})
	})

	return r, nil
}

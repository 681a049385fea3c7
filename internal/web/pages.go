package web

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/heritage/internal/preview"
)

// Pages serves the server-rendered site.
type Pages struct {
	registry   *preview.Registry
	render     *Renderer
	renderWait time.Duration
}

// NewPages creates the page handlers. Pages carrying a story preview wait up
// to renderWait for the content load before rendering the loading state.
func NewPages(registry *preview.Registry, render *Renderer, renderWait time.Duration) *Pages {
	return &Pages{registry: registry, render: render, renderWait: renderWait}
}

func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	p.withPreview(w, r, "home", "Home", "/")
}

func (p *Pages) Stories(w http.ResponseWriter, r *http.Request) {
	p.withPreview(w, r, "stories", "Stories", "/stories")
}

func (p *Pages) Monuments(w http.ResponseWriter, r *http.Request) {
	p.page(w, "monuments", pageData{Title: "Monuments", Nav: nav("/monuments")})
}

func (p *Pages) Quizzes(w http.ResponseWriter, r *http.Request) {
	p.page(w, "quizzes", pageData{Title: "Quizzes", Nav: nav("/quizzes")})
}

// AR is the placeholder AR view, reached through the preview's AR action.
func (p *Pages) AR(w http.ResponseWriter, r *http.Request) {
	p.page(w, "ar", pageData{Title: "AR View", Nav: nav(""), Monument: r.URL.Query().Get("monument")})
}

// withPreview renders a page hosting a fresh story preview activation.
func (p *Pages) withPreview(w http.ResponseWriter, r *http.Request, name, title, href string) {
	a := p.registry.Activate()
	if p.renderWait > 0 {
		t := time.NewTimer(p.renderWait)
		select {
		case <-a.Load():
		case <-t.C:
		case <-r.Context().Done():
		}
		t.Stop()
	}

	v, err := p.render.View(a.ID(), a.Snapshot())
	if err != nil {
		slog.Error("build preview failed", slog.String("id", a.ID()), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	p.page(w, name, pageData{Title: title, Nav: nav(href), Preview: v})
}

func (p *Pages) page(w http.ResponseWriter, name string, data pageData) {
	err := writeHTML(w, func(out io.Writer) error { return p.render.Page(out, name, data) })
	if err != nil {
		slog.Error("render page failed", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

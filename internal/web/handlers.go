package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/heritage/internal/apperr"
	"github.com/starford/heritage/internal/catalog"
	"github.com/starford/heritage/internal/narration"
	"github.com/starford/heritage/internal/preview"
	"github.com/starford/heritage/internal/sse"
)

// SyncFunc re-imports the local catalog.
type SyncFunc func(ctx context.Context) (catalog.SyncResult, error)

// Handler holds the API route handlers.
type Handler struct {
	registry *preview.Registry
	broker   *sse.Broker
	render   *Renderer
	sync     SyncFunc
}

// NewHandler creates a new Handler. sync may be nil when no local catalog is configured.
func NewHandler(registry *preview.Registry, broker *sse.Broker, render *Renderer, sync SyncFunc) *Handler {
	return &Handler{registry: registry, broker: broker, render: render, sync: sync}
}

func (h *Handler) activation(w http.ResponseWriter, r *http.Request) (*preview.Activation, bool) {
	a, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("activation not found"))
		} else {
			slog.Error("get activation failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return nil, false
	}
	return a, true
}

// CreateActivation handles POST /api/activations.
//
//	@Summary		Start a story preview and its content load
//	@Tags			activations
//	@Produce		json
//	@Success		201	{object}	ActivationCreated
//	@Router			/activations [post]
func (h *Handler) CreateActivation(w http.ResponseWriter, r *http.Request) {
	a := h.registry.Activate()
	writeJSON(w, http.StatusCreated, ActivationCreated{ID: a.ID()})
}

// GetActivation handles GET /api/activations/{id}.
//
//	@Summary		Get the view model of a preview
//	@Tags			activations
//	@Produce		json
//	@Param			id	path		string	true	"Activation id"
//	@Success		200	{object}	ActivationResponse
//	@Failure		404	{object}	errResponse
//	@Router			/activations/{id} [get]
func (h *Handler) GetActivation(w http.ResponseWriter, r *http.Request) {
	a, ok := h.activation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newActivationResponse(a.ID(), a.Snapshot()))
}

// ViewActivation handles GET /api/activations/{id}/view and returns the
// preview card as an HTML fragment.
func (h *Handler) ViewActivation(w http.ResponseWriter, r *http.Request) {
	a, ok := h.activation(w, r)
	if !ok {
		return
	}
	v, err := h.render.View(a.ID(), a.Snapshot())
	if err != nil {
		slog.Error("build preview failed", slog.String("id", a.ID()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := writeHTML(w, func(out io.Writer) error { return h.render.Fragment(out, v) }); err != nil {
		slog.Error("render preview failed", slog.String("id", a.ID()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Narrate handles POST /api/activations/{id}/narration.
//
//	@Summary		Request narration of the displayed story
//	@Tags			activations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Activation id"
//	@Param			body	body		NarrationRequest	true	"Narration language"
//	@Success		202		{object}	NarrationAccepted
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/activations/{id}/narration [post]
func (h *Handler) Narrate(w http.ResponseWriter, r *http.Request) {
	var req NarrationRequest
	if err := decodeJSON(w, r, 1<<10, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	lang, err := narration.ParseLanguage(req.Language)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	a, ok := h.activation(w, r)
	if !ok {
		return
	}
	if _, started := a.Narrate(lang); !started {
		writeJSON(w, http.StatusConflict, errorBody("narration is disabled"))
		return
	}
	writeJSON(w, http.StatusAccepted, NarrationAccepted{ID: a.ID(), Language: string(lang)})
}

// DeleteActivation handles DELETE /api/activations/{id}.
//
//	@Summary		Tear down a preview
//	@Tags			activations
//	@Param			id	path	string	true	"Activation id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Router			/activations/{id} [delete]
func (h *Handler) DeleteActivation(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Close(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("activation not found"))
		} else {
			slog.Error("close activation failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/activations/{id}/events: the toast stream of one
// activation plus broadcast content updates.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	a, ok := h.activation(w, r)
	if !ok {
		return
	}
	h.broker.ServeTopic(w, r, a.ID())
}

// SyncCatalog handles POST /api/catalog/sync.
//
//	@Summary		Re-import the local story catalog
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/catalog/sync [post]
func (h *Handler) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeJSON(w, http.StatusNotFound, errorBody("local catalog not configured"))
		return
	}
	res, err := h.sync(r.Context())
	if err != nil {
		slog.Error("catalog sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

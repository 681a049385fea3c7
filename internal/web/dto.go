package web

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/heritage/internal/catalog"
	"github.com/starford/heritage/internal/models"
	"github.com/starford/heritage/internal/preview"
)

// NarrationRequest is the request body for starting a narration.
type NarrationRequest struct {
	Language string `json:"language" example:"en"`
}

// Validate checks the request shape. The language value itself is resolved
// by narration.ParseLanguage.
func (r NarrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Language, validation.Required, validation.Length(1, 35)),
	)
}

// ActivationCreated is returned when an activation starts.
type ActivationCreated struct {
	ID string `json:"id" example:"3f2b8a4e-8d1c-4a8f-9a55-0d2c4f7b1e90"`
}

// ActionLinks are the navigation handoffs offered by the preview.
type ActionLinks struct {
	AR          string `json:"ar" example:"/ar?monument=hampi"`
	MoreStories string `json:"more_stories" example:"monuments"`
}

// ActivationResponse is the JSON view model of one activation.
type ActivationResponse struct {
	ID            string        `json:"id"`
	Loading       bool          `json:"loading"`
	Record        *models.Story `json:"record"`
	NarrationBusy bool          `json:"narration_busy"`
	CanNarrate    bool          `json:"can_narrate"`
	Actions       ActionLinks   `json:"actions"`
}

func newActivationResponse(id string, vm preview.ViewModel) ActivationResponse {
	return ActivationResponse{
		ID:            id,
		Loading:       vm.Loading,
		Record:        vm.Record,
		NarrationBusy: vm.NarrationBusy,
		CanNarrate:    vm.CanNarrate(),
		Actions: ActionLinks{
			AR:          preview.ARRoute,
			MoreStories: preview.MoreStoriesAnchor,
		},
	}
}

// NarrationAccepted is returned when a narration request was dispatched.
type NarrationAccepted struct {
	ID       string `json:"id"`
	Language string `json:"language" example:"en"`
}

// SyncResponse reports a catalog re-sync.
type SyncResponse = catalog.SyncResult

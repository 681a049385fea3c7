// Package models defines the domain types shared by the content sources and the preview core.
package models

import "time"

// Story moderation states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Story is a narrative content record. Monument is set only when MonumentID
// resolves to an existing reference row.
type Story struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"content"`
	AuthorName *string   `json:"author_name,omitempty"`
	MonumentID *string   `json:"monument_id,omitempty"`
	Monument   *Monument `json:"monuments,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Author returns the author display name, or "" when none is set.
func (s *Story) Author() string {
	if s == nil || s.AuthorName == nil {
		return ""
	}
	return *s.AuthorName
}

// Monument is the projection of a landmark joined onto a story.
// Every field is independently optional.
type Monument struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Era      string `json:"era"`
}

// StoryFile is the lightweight listing entry for a story source file.
type StoryFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

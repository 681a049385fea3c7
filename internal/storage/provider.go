// Package storage defines the read-only view over the story content directory.
package storage

import "github.com/starford/heritage/internal/models"

// Provider is the interface for content directory reads.
type Provider interface {
	// List returns metadata for every .md story file under dir (relative to the content root).
	List(dir string) ([]models.StoryFile, error)
	// Read returns the raw bytes of the file at path (relative to the content root).
	Read(path string) ([]byte, error)
}

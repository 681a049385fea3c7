package catalog

import (
	"time"

	"github.com/starford/heritage/internal/parser"
	"github.com/starford/heritage/internal/storage"
)

// importFile parses a story file and upserts it. Files without a created
// timestamp fall back to modTime so ordering stays meaningful.
func importFile(db *DB, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	st := res.Story
	if st.CreatedAt.IsZero() {
		st.CreatedAt = modTime
	}
	return db.UpsertStory(StoryRow{
		Story:    st,
		Path:     path,
		Checksum: storage.Checksum(data),
	}, res.Monument)
}

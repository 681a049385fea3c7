package catalog

import (
	"log/slog"

	"github.com/starford/heritage/internal/storage"
)

// SyncResult reports what a Sync pass changed, plus the catalogue size per
// moderation status once the pass is done.
type SyncResult struct {
	Indexed int            `json:"indexed"`
	Removed int            `json:"removed"`
	Failed  int            `json:"failed"`
	Stories map[string]int `json:"stories"`
}

// Sync walks the content directory and brings the catalog up to date:
//   - files removed from disk are deleted from the catalog
//   - new/changed files are parsed and upserted
//
// Removals run first so a story moved to a new file keeps its id.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncResult, error) {
	var res SyncResult

	files, err := store.List("")
	if err != nil {
		return res, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return res, err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteStoryByPath(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	for _, f := range files {
		if checksums[f.Path] == f.Checksum {
			continue
		}

		data, err := store.Read(f.Path)
		if err != nil {
			res.Failed++
			logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if err := importFile(db, f.Path, data, f.UpdatedAt); err != nil {
			res.Failed++
			logger.Warn("sync: import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		res.Indexed++
		logger.Debug("sync: imported", slog.String("path", f.Path))
	}

	res.Stories, err = db.CountByStatus()
	if err != nil {
		return res, err
	}
	return res, nil
}

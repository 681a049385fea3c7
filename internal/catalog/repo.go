package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/heritage/internal/apperr"
	"github.com/starford/heritage/internal/models"
)

// StoryRow is a story as stored in the catalog, keyed by its source file.
type StoryRow struct {
	Story    models.Story
	Path     string
	Checksum string
}

const latestApprovedSQL = `
SELECT s.id, s.title, s.content, s.author_name, s.monument_id,
       m.id, m.title, m.location, m.era
FROM stories s
LEFT JOIN monuments m ON m.id = s.monument_id
WHERE s.status = ?
ORDER BY s.created_at DESC
LIMIT 1`

// LatestApproved returns the most recently created approved story joined with
// its monument, or nil when there is none.
func (db *DB) LatestApproved(ctx context.Context) (*models.Story, error) {
	var (
		st                      models.Story
		author, monumentID      sql.NullString
		mID, mTitle, mLoc, mEra sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, latestApprovedSQL, models.StatusApproved).Scan(
		&st.ID, &st.Title, &st.Body, &author, &monumentID,
		&mID, &mTitle, &mLoc, &mEra,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: latest approved: %w", err)
	}
	st.Status = models.StatusApproved
	if author.Valid {
		st.AuthorName = &author.String
	}
	if monumentID.Valid {
		st.MonumentID = &monumentID.String
	}
	if mID.Valid {
		st.Monument = &models.Monument{
			ID:       mID.String,
			Title:    mTitle.String,
			Location: mLoc.String,
			Era:      mEra.String,
		}
	}
	return &st, nil
}

// UpsertStory inserts or replaces a story and, when given, its inline monument
// within a transaction. A story id already owned by another file is rejected
// with apperr.ErrConflict.
func (db *DB) UpsertStory(row StoryRow, monument *models.Monument) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var owner string
	err = tx.QueryRow(`SELECT path FROM stories WHERE id = ?`, row.Story.ID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("catalog: lookup story id: %w", err)
	case owner != row.Path:
		return fmt.Errorf("catalog: story id %q already defined in %s: %w", row.Story.ID, owner, apperr.ErrConflict)
	}

	if monument != nil {
		if err := upsertMonument(tx, *monument); err != nil {
			return err
		}
	}

	// A story file moving to a new id replaces the old row for that path.
	if _, err := tx.Exec(`DELETE FROM stories WHERE path = ? AND id <> ?`, row.Path, row.Story.ID); err != nil {
		return fmt.Errorf("catalog: clear path: %w", err)
	}

	st := row.Story
	_, err = tx.Exec(`
		INSERT INTO stories (id, path, title, content, author_name, monument_id, status, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path        = excluded.path,
			title       = excluded.title,
			content     = excluded.content,
			author_name = excluded.author_name,
			monument_id = excluded.monument_id,
			status      = excluded.status,
			checksum    = excluded.checksum,
			created_at  = excluded.created_at
	`, st.ID, row.Path, st.Title, st.Body, nullable(st.AuthorName), nullable(st.MonumentID),
		st.Status, row.Checksum, st.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog: upsert story: %w", err)
	}

	return tx.Commit()
}

func upsertMonument(tx *sql.Tx, m models.Monument) error {
	_, err := tx.Exec(`
		INSERT INTO monuments (id, title, location, era)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title    = excluded.title,
			location = excluded.location,
			era      = excluded.era
	`, m.ID, m.Title, m.Location, m.Era)
	if err != nil {
		return fmt.Errorf("catalog: upsert monument: %w", err)
	}
	return nil
}

// DeleteStoryByPath removes the story backed by the given file.
// Monuments are kept since other stories may reference them.
func (db *DB) DeleteStoryByPath(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM stories WHERE path = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete story: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a story file, or "" if the
// file is not catalogued.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM stories WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every catalogued story file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM stories`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// CountByStatus returns the number of stories per moderation status.
func (db *DB) CountByStatus() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT status, count(*) FROM stories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("catalog: count by status: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Package testutil provides shared test helpers for content directories and catalogs.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/heritage/internal/catalog"
	"github.com/starford/heritage/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "heritage-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContentDir creates a temporary content directory holding files
// (relative path to content) and returns it with a storage.Provider.
func TestContentDir(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// StoryFile is a minimal approved story file with a monument reference.
const StoryFile = `---
id: 7a1d2c1e-5b7f-4c1e-9a51-0b6f3f1f9c11
title: The Stone Guardian
author: Lakshmi
status: approved
created: 2024-03-01T10:00:00Z
monument:
  id: hampi
  title: Hampi
  location: Karnataka
  era: 14th century
---

Long ago a guardian of stone watched over the gates of Vijayanagara.
`

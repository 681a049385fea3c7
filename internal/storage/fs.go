package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/heritage/internal/models"
)

// FS implements Provider over a directory on the local file system.
type FS struct {
	root string // absolute path to the content directory
	fsys fs.FS
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, fsys: os.DirFS(abs)}, nil
}

// name converts a slash-separated relative path into an fs.FS name.
// Absolute paths and paths climbing out of the root are rejected.
func name(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	cleaned := path.Clean(filepath.ToSlash(rel))
	if !fs.ValidPath(cleaned) {
		return "", fmt.Errorf("storage: path escapes content root: %s", rel)
	}
	return cleaned, nil
}

func hidden(n string) bool {
	return strings.HasPrefix(n, ".") && n != "."
}

// List walks dir (relative to root) and returns metadata for every .md file.
// Hidden files and directories are skipped.
func (f *FS) List(dir string) ([]models.StoryFile, error) {
	base, err := name(dir)
	if err != nil {
		return nil, err
	}
	var out []models.StoryFile
	err = fs.WalkDir(f.fsys, base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && hidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || path.Ext(p) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(f.fsys, p)
		if err != nil {
			return err
		}
		out = append(out, models.StoryFile{
			Path:      p,
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", f.root, err)
	}
	return out, nil
}

// Read returns the raw bytes of a content file.
func (f *FS) Read(p string) ([]byte, error) {
	n, err := name(p)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.fsys, n)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Package parser reads story source files: YAML frontmatter followed by a Markdown body.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/heritage/internal/models"
)

// Frontmatter is the YAML header of a story file.
type Frontmatter struct {
	ID         string    `yaml:"id"`
	Title      string    `yaml:"title"`
	Author     string    `yaml:"author"`
	Status     string    `yaml:"status"`
	Created    string    `yaml:"created"`
	MonumentID string    `yaml:"monument_id"`
	Monument   *Monument `yaml:"monument"`
}

// Monument is the inline reference block of a story file.
type Monument struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Location string `yaml:"location"`
	Era      string `yaml:"era"`
}

// Result holds the output of parsing a story file.
type Result struct {
	Story models.Story
	// Monument is the reference row declared inline, if any. It is stored
	// separately so that other stories can point at it by monument_id.
	Monument *models.Monument
}

var createdLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Parse extracts the story record from raw file bytes. path is used to derive
// a stable id when the frontmatter has none.
func Parse(path string, data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	st := models.Story{
		ID:     strings.TrimSpace(fm.ID),
		Title:  deriveTitle(fm.Title, body),
		Body:   body,
		Status: normalizeStatus(fm.Status),
	}
	if st.ID == "" {
		st.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("story:"+path)).String()
	}
	if a := strings.TrimSpace(fm.Author); a != "" {
		st.AuthorName = &a
	}
	if fm.Created != "" {
		created, err := parseCreated(fm.Created)
		if err != nil {
			return nil, fmt.Errorf("parser: %s: %w", path, err)
		}
		st.CreatedAt = created
	}

	res := &Result{Story: st}

	monumentID := strings.TrimSpace(fm.MonumentID)
	if m := fm.Monument; m != nil {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			id = monumentID
		}
		if id == "" && m.Title != "" {
			id = slug(m.Title)
		}
		if id != "" {
			monumentID = id
			res.Monument = &models.Monument{ID: id, Title: m.Title, Location: m.Location, Era: m.Era}
		}
	}
	if monumentID != "" {
		res.Story.MonumentID = &monumentID
	}
	return res, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Missing or invalid frontmatter yields an empty header
// and the whole content as body.
func splitFrontmatter(data []byte) (Frontmatter, string) {
	const delim = "---"
	var fm Frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return Frontmatter{}, string(data)
	}
	return fm, body
}

func parseCreated(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid created timestamp %q", v)
}

// normalizeStatus maps unknown or empty states to pending so that
// unreviewed files never surface as approved content.
func normalizeStatus(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case models.StatusApproved, models.StatusRejected:
		return s
	default:
		return models.StatusPending
	}
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(title, body string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

package parser

import (
	"testing"
	"time"

	"github.com/starford/heritage/internal/models"
)

func TestParse_FullFrontmatter(t *testing.T) {
	input := []byte(`---
id: story-1
title: The Stone Guardian
author: Meera Rao
status: approved
created: 2024-05-01T10:00:00Z
monument:
  id: hampi
  title: Hampi
  location: Karnataka
  era: 14th century
---
Long ago...
`)
	r, err := Parse("stone.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := r.Story
	if st.ID != "story-1" || st.Title != "The Stone Guardian" {
		t.Errorf("id/title = %q/%q", st.ID, st.Title)
	}
	if st.Body != "Long ago...\n" {
		t.Errorf("body = %q", st.Body)
	}
	if st.Status != models.StatusApproved {
		t.Errorf("status = %q", st.Status)
	}
	if st.Author() != "Meera Rao" {
		t.Errorf("author = %q", st.Author())
	}
	if !st.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %v", st.CreatedAt)
	}
	if st.MonumentID == nil || *st.MonumentID != "hampi" {
		t.Fatalf("monument id = %v", st.MonumentID)
	}
	if r.Monument == nil || r.Monument.Era != "14th century" || r.Monument.Location != "Karnataka" {
		t.Errorf("monument = %+v", r.Monument)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse("plain.md", []byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Story.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Story.Title, "Just a heading")
	}
	if r.Story.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", r.Story.Status)
	}
	if r.Story.AuthorName != nil || r.Story.MonumentID != nil || r.Monument != nil {
		t.Errorf("optional fields should be unset: %+v", r.Story)
	}
}

func TestParse_DerivedIDIsStable(t *testing.T) {
	a, _ := Parse("x/story.md", []byte("body"))
	b, _ := Parse("x/story.md", []byte("other body"))
	c, _ := Parse("y/story.md", []byte("body"))
	if a.Story.ID == "" || a.Story.ID != b.Story.ID {
		t.Errorf("ids should match for the same path: %q vs %q", a.Story.ID, b.Story.ID)
	}
	if a.Story.ID == c.Story.ID {
		t.Error("ids should differ for different paths")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse("bad.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Story.Body != string(input) {
		t.Errorf("invalid YAML should keep the whole file as body, got %q", r.Story.Body)
	}
	if r.Story.Status != models.StatusPending {
		t.Errorf("status = %q", r.Story.Status)
	}
}

func TestParse_InvalidCreated(t *testing.T) {
	_, err := Parse("bad.md", []byte("---\ncreated: yesterday\n---\nBody\n"))
	if err == nil {
		t.Fatal("expected error for invalid created timestamp")
	}
}

func TestParse_MonumentIDOnly(t *testing.T) {
	r, err := Parse("ref.md", []byte("---\ntitle: T\nmonument_id: mysuru-palace\ncreated: 2024-01-02\n---\nB\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Monument != nil {
		t.Errorf("no inline monument expected, got %+v", r.Monument)
	}
	if r.Story.MonumentID == nil || *r.Story.MonumentID != "mysuru-palace" {
		t.Errorf("monument id = %v", r.Story.MonumentID)
	}
}

func TestParse_MonumentSlugFromTitle(t *testing.T) {
	r, err := Parse("s.md", []byte("---\nmonument:\n  title: Gol Gumbaz!\n---\nB\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Monument == nil || r.Monument.ID != "gol-gumbaz" {
		t.Errorf("monument = %+v", r.Monument)
	}
}

package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/heritage/internal/narration"
	"github.com/starford/heritage/internal/preview"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{"home", "stories", "monuments", "quizzes", "ar"}

// storyTabs are the reading lengths offered for a story. Every tab shows the full body.
var storyTabs = []struct{ value, label string }{
	{"short", "Short (2 min)"},
	{"medium", "Medium (5 min)"},
	{"detailed", "Detailed (10 min)"},
}

var listenLabels = map[narration.Language]string{
	narration.English: "Listen in English",
	narration.Kannada: "ಕನ್ನಡದಲ್ಲಿ ಕೇಳಿ",
}

type navItem struct {
	Href   string
	Label  string
	Active bool
}

var navLinks = []navItem{
	{Href: "/", Label: "Home"},
	{Href: "/monuments", Label: "Monuments"},
	{Href: "/stories", Label: "Stories"},
	{Href: "/quizzes", Label: "Quizzes"},
}

type pageData struct {
	Title    string
	Nav      []navItem
	Preview  *previewView
	Monument string
}

type tabView struct {
	Value string
	Label string
	Body  template.HTML
}

type languageButton struct {
	Code   string
	Label  string
	Native string
}

// previewView is the render state of one activation. Each reference-derived
// field is independently optional and empty when absent.
type previewView struct {
	ID      string
	Loading bool
	Empty   bool

	Title         string
	MonumentTitle string
	Era           string
	Location      string
	Author        string
	Tabs          []tabView

	CanNarrate bool
	Busy       bool
	Languages  []languageButton
	ARRoute    string
	MoreAnchor string
}

// Renderer executes the embedded page and fragment templates.
type Renderer struct {
	pages    map[string]*template.Template
	fragment *template.Template
	md       goldmark.Markdown
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html", "templates/preview.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse base templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("web: clone templates: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{
		pages:    pages,
		fragment: base,
		md:       goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
	}, nil
}

// Page renders a full page.
func (rd *Renderer) Page(w io.Writer, name string, data pageData) error {
	t, ok := rd.pages[name]
	if !ok {
		return fmt.Errorf("web: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// Fragment renders only the story preview card body.
func (rd *Renderer) Fragment(w io.Writer, v *previewView) error {
	return rd.fragment.ExecuteTemplate(w, "preview", v)
}

// View builds the render state for an activation snapshot.
func (rd *Renderer) View(id string, vm preview.ViewModel) (*previewView, error) {
	v := &previewView{
		ID:         id,
		Loading:    vm.Loading,
		Empty:      !vm.Loading && vm.Record == nil,
		CanNarrate: vm.CanNarrate(),
		Busy:       vm.NarrationBusy,
		ARRoute:    preview.ARRoute,
		MoreAnchor: preview.MoreStoriesAnchor,
	}
	if vm.Loading || vm.Record == nil {
		return v, nil
	}

	rec := vm.Record
	v.Title = rec.Title
	if m := rec.Monument; m != nil {
		v.MonumentTitle = m.Title
		v.Era = m.Era
		v.Location = m.Location
	}
	v.Author = rec.Author()

	body, err := rd.markdown(rec.Body)
	if err != nil {
		return nil, err
	}
	for _, t := range storyTabs {
		v.Tabs = append(v.Tabs, tabView{Value: t.value, Label: t.label, Body: body})
	}
	for _, lang := range narration.Languages {
		v.Languages = append(v.Languages, languageButton{
			Code:   string(lang),
			Label:  listenLabels[lang],
			Native: lang.Native(),
		})
	}
	return v, nil
}

// markdown renders a story body. Raw HTML in the source is not passed through.
func (rd *Renderer) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := rd.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("web: render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func nav(active string) []navItem {
	out := make([]navItem, len(navLinks))
	copy(out, navLinks)
	for i := range out {
		out[i].Active = out[i].Href == active
	}
	return out
}

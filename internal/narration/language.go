package narration

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language selects the narration locale.
type Language string

// Supported narration languages. English is the primary locale.
const (
	English Language = "en"
	Kannada Language = "kn"
)

// Languages lists the supported languages in display order.
var Languages = []Language{English, Kannada}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Make("kn")})

// ParseLanguage accepts a BCP 47 tag (en, en-IN, kn, kn-IN) or the aliases
// "primary" and "secondary".
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "primary":
		return English, nil
	case "secondary":
		return Kannada, nil
	case "":
		return "", fmt.Errorf("narration: language is required")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("narration: invalid language %q: %w", s, err)
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", fmt.Errorf("narration: unsupported language %q", s)
	}
	return Languages[idx], nil
}

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	return language.Make(string(l))
}

// Label is the English display name, e.g. "Kannada".
func (l Language) Label() string {
	return display.English.Tags().Name(l.Tag())
}

// Native is the language's name in itself, e.g. "ಕನ್ನಡ".
func (l Language) Native() string {
	return display.Self.Name(l.Tag())
}

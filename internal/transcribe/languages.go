package transcribe

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnsupportedLanguage is returned for selectors that match neither
// configured language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

const (
	SelectorPrimary   = "primary"
	SelectorSecondary = "secondary"
)

// Languages holds the two transcription languages a caller can pick from.
type Languages struct {
	Primary   language.Tag
	Secondary language.Tag
}

func NewLanguages(primary, secondary string) (Languages, error) {
	p, err := language.Parse(primary)
	if err != nil {
		return Languages{}, fmt.Errorf("invalid primary language %q: %w", primary, err)
	}
	s, err := language.Parse(secondary)
	if err != nil {
		return Languages{}, fmt.Errorf("invalid secondary language %q: %w", secondary, err)
	}
	return Languages{Primary: p, Secondary: s}, nil
}

// Resolve maps a selector to the engine language code. Accepted selectors
// are "primary", "secondary", either configured code, or empty (primary).
func (l Languages) Resolve(selector string) (string, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	switch selector {
	case "", SelectorPrimary:
		return EngineCode(l.Primary), nil
	case SelectorSecondary:
		return EngineCode(l.Secondary), nil
	}

	tag, err := language.Parse(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, selector)
	}
	switch tag {
	case l.Primary:
		return EngineCode(l.Primary), nil
	case l.Secondary:
		return EngineCode(l.Secondary), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, selector)
}

// EngineCode returns the ISO 639 base language of tag, which is what the
// recognition engines expect.
func EngineCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// DisplayName returns the English name of a language code, falling back to
// the code itself.
func DisplayName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

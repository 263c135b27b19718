package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Language is a translation target offered to the user.
type Language string

const (
	English Language = "English"
	Spanish Language = "Spanish"
	French  Language = "French"
	German  Language = "German"
	Chinese Language = "Chinese"
)

// ErrUnknownLanguage is returned for languages outside the supported set.
var ErrUnknownLanguage = errors.New("unsupported language")

var languages = []Language{English, Spanish, French, German, Chinese}

// Languages returns the supported targets in menu order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// Valid reports whether l is one of Languages.
func (l Language) Valid() bool {
	for _, known := range languages {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLanguage matches s against the supported languages, ignoring case.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, known := range languages {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

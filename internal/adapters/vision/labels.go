// Package vision classifies photos with a vision language model.
package vision

import (
	"strings"
	"unicode"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// ParseLabel maps a free-text model answer to one of domain.Labels. An exact
// answer wins; otherwise the answer must mention exactly one label as a
// word. "null", "none" and anything else give nil.
func ParseLabel(answer string) *string {
	s := strings.ToLower(strings.TrimSpace(answer))
	s = strings.Trim(s, "\"'`.!*")

	for _, l := range domain.Labels {
		if s == l {
			return label(l)
		}
	}

	words := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	var found string
	for _, w := range words {
		for _, l := range domain.Labels {
			if w != l {
				continue
			}
			if found != "" && found != l {
				return nil
			}
			found = l
		}
	}
	if found == "" {
		return nil
	}
	return label(found)
}

func label(s string) *string {
	return &s
}

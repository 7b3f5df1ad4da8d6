package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeResource yields the key bookings are grouped by. Case is preserved,
// so "Lecture Theatre 4" and "lecture theatre 4" are different resources.
func NormalizeResource(resource string) string {
	return TrimAndNormalize(resource)
}

// NormalizeClock tidies a start-time label such as " 2:00  pm " into "2:00 PM".
func NormalizeClock(clock string) string {
	return strings.ToUpper(TrimAndNormalize(clock))
}

// NormalizeText trims surrounding whitespace but keeps line breaks, for
// multi-line bodies such as announcements.
func NormalizeText(text string) string {
	return strings.TrimFunc(text, unicode.IsSpace)
}

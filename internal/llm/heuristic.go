package llm

import (
	"regexp"
	"strings"
)

var trailingWordRe = regexp.MustCompile(`(\w+|\.|,)$`)

// ShouldOfferContinue reports whether content looks cut off. It only drives
// whether a "continue" affordance is shown; continuation itself is never
// gated on it.
func ShouldOfferContinue(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	switch {
	case strings.HasSuffix(trimmed, "..."),
		strings.HasSuffix(trimmed, "…"),
		strings.HasSuffix(strings.ToLower(trimmed), "devam edecek"):
		return true
	}
	return trailingWordRe.MatchString(trimmed)
}

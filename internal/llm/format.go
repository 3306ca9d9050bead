package llm

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	brokenLinkRe = regexp.MustCompile(`\[([^\]]+)\]\((object Object|undefined|null)\)`)
	headerRe     = regexp.MustCompile(`\n\*\*([^*]+)\*\*`)
	bulletRe     = regexp.MustCompile(`(?m)^[-*]\s`)
	subBulletRe  = regexp.MustCompile(`(?m)^\s{2,}[-*]\s`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	sourcesRe    = regexp.MustCompile(`(Kaynaklar|Sources):\n((?:[-•]\s*.*\n?)*)`)
	sourceLeadRe = regexp.MustCompile(`^[-•]\s*`)
)

// FormatResponse normalizes model output: repairs link targets the model
// failed to fill in, spaces out bold headers, converts list markers to
// bullets, collapses blank-line runs and re-bullets the sources section.
func FormatResponse(text string) string {
	out := brokenLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		title := brokenLinkRe.FindStringSubmatch(m)[1]
		return "[" + title + "](" + fallbackLink(title) + ")"
	})

	out = headerRe.ReplaceAllString(out, "\n\n**$1**\n")
	out = bulletRe.ReplaceAllString(out, "• ")
	out = subBulletRe.ReplaceAllString(out, "◦ ")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)

	out = sourcesRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := sourcesRe.FindStringSubmatch(m)
		var lines []string
		for _, line := range strings.Split(sub[2], "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, "• "+sourceLeadRe.ReplaceAllString(line, ""))
		}
		return "\n**" + sub[1] + ":**\n" + strings.Join(lines, "\n")
	})
	return out
}

func fallbackLink(title string) string {
	q := encodeComponent(title)
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "wikipedia"):
		return "https://wikipedia.org/wiki/" + q
	case strings.Contains(lower, "kaynak"), strings.Contains(lower, "source"):
		return "https://scholar.google.com/scholar?q=" + q
	default:
		return "https://www.google.com/search?q=" + q
	}
}

// encodeComponent escapes like JavaScript's encodeURIComponent for the
// characters that matter here (spaces become %20, not +).
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

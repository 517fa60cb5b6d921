// Package sanitize reduces email bodies to clean plaintext suitable for
// ticket descriptions: markup stripped, quoted history and signatures cut.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// style and meta blocks leak raw CSS text into plaintext if left for
	// generic tag stripping, so they go first.
	styleBlockPattern = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	metaTagPattern    = regexp.MustCompile(`(?is)<meta\b[^>]*/?>`)

	// A run of forwarded-mail header lines marks the start of quoted
	// history; everything from there on is discarded. Both the Spanish and
	// English label sets are matched.
	quotedHeaderBlockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)De:.*?Asunto:.*?(\n|$)`),
		regexp.MustCompile(`(?is)From:.*?Subject:.*?(\n|$)`),
	}

	// lineDropPatterns remove quote markers, stray header labels and
	// signature boilerplate line by line.
	lineDropPatterns = []*regexp.Regexp{
		// The tag stripper escapes a leading ">" to "&gt;", so both spellings
		// mark a quoted line.
		regexp.MustCompile(`^(>|&gt;)`),
		regexp.MustCompile(`(?i)^On .*wrote:`),
		regexp.MustCompile(`(?i)^El .*escribi(ó|o):`),
		regexp.MustCompile(`(?i)^(De|Enviado|Para|Asunto|From|Sent|To|Subject):`),
		regexp.MustCompile(`(?i)^Enviado desde mi `),
		regexp.MustCompile(`(?i)^Sent from my `),
		regexp.MustCompile(`(?i)^Get Outlook for `),
	}

	stripPolicy = bluemonday.StrictPolicy()

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&#160;", " ",
		"&amp;", "&",
		"&#34;", `"`,
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// Clean turns an HTML or plaintext email body into clean plaintext. The
// transform is pure and idempotent: cleaning already-clean text changes
// nothing. An empty result is valid.
func Clean(body string) string {
	text := styleBlockPattern.ReplaceAllString(body, "")
	text = metaTagPattern.ReplaceAllString(text, "")
	text = stripPolicy.Sanitize(text)
	text = entityReplacer.Replace(text)

	// Cut at the first quoted-header block.
	cut := len(text)
	for _, pattern := range quotedHeaderBlockPatterns {
		if loc := pattern.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	text = text[:cut]

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		// A bare signature delimiter ends the message.
		if trimmed == "--" {
			break
		}
		if dropLine(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func dropLine(trimmed string) bool {
	for _, pattern := range lineDropPatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}

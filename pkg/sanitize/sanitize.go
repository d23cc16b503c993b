package sanitize

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// MaxTextLen caps sanitized free-text fields.
	MaxTextLen = 10000
	// MaxURLLen caps stored URLs.
	MaxURLLen = 2048
)

var strictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML markup, unescapes entities and collapses runs of
// whitespace. External scrape and API text passes through here before it
// is stored or returned.
func Text(input string) string {
	if input == "" {
		return ""
	}
	cleaned := strictPolicy.Sanitize(input)
	cleaned = html.UnescapeString(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) > MaxTextLen {
		cleaned = cleaned[:MaxTextLen]
	}
	return cleaned
}

// URL validates that the input is an absolute http(s) URL. Anything else,
// including javascript:, data: and vbscript: schemes, returns "".
func URL(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || len(trimmed) > MaxURLLen {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

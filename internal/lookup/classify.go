package lookup

import (
	"regexp"
	"strings"
)

// Identifier kinds.
const (
	KindPart    = "part"
	KindElement = "element"
)

const minElementDigits = 6

var (
	allDigits    = regexp.MustCompile(`^\d+$`)
	partToken    = regexp.MustCompile(`^[0-9A-Za-z]+$`)
	letterSuffix = regexp.MustCompile(`^(\d+)[A-Za-z]+$`)
)

// Classify maps a raw identifier onto its lookup kind. A numeric run of at
// least six digits is an element ID; a single alphanumeric run is a part
// token; anything else (separators, spaces, multiple runs) is ambiguous
// and reported as unclassifiable rather than guessed at.
func Classify(raw string) (kind, token string, ok bool) {
	token = strings.TrimSpace(raw)
	if token == "" {
		return "", "", false
	}
	if allDigits.MatchString(token) && len(token) >= minElementDigits {
		return KindElement, token, true
	}
	if partToken.MatchString(token) {
		return KindPart, token, true
	}
	return "", token, false
}

// StripSuffix removes a trailing letter run from a digits-then-letters
// token ("3684c" -> "3684"). Tokens of any other shape come back empty.
func StripSuffix(token string) string {
	m := letterSuffix.FindStringSubmatch(token)
	if m == nil {
		return ""
	}
	return m[1]
}

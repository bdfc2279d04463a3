package deadlock

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-faster/city"

	"github.com/pgsleuth/pgsleuth/state"
)

var stringLiteralRegexp = regexp.MustCompile(`'(?:[^']|'')*'`)
var quotedIdentifierRegexp = regexp.MustCompile(`"[^"]*"`)
var numericLiteralRegexp = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

// FingerprintQuery - Produces the normalized/parameterized forms of a
// statement plus a content hash over the parameterized text. Statements
// that differ only in literal values fingerprint identically.
func FingerprintQuery(text string) state.QueryFingerprint {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")

	parameterized := stringLiteralRegexp.ReplaceAllString(normalized, "'?'")
	parameterized = quotedIdentifierRegexp.ReplaceAllString(parameterized, `"?"`)
	parameterized = numericLiteralRegexp.ReplaceAllString(parameterized, "?")

	return state.QueryFingerprint{
		Original:      text,
		Normalized:    normalized,
		Parameterized: parameterized,
		Hash:          fmt.Sprintf("%016x", city.CH64([]byte(parameterized))),
	}
}

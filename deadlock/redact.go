package deadlock

import "regexp"

// Redaction runs in a fixed order so that broader digit patterns (phone
// numbers) never chew up part of a narrower one (card numbers). The
// replacement tokens contain no digits or @ signs, which is what makes
// the whole pass idempotent.
type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var redactionRules = []redactionRule{
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "[UUID]"},
	{regexp.MustCompile(`\b(?:\d[ \-]?){15}\d\b`), "[CC_NUMBER]"},
	{regexp.MustCompile(`(?:\+\d{1,3}[\-. ]?)?\(?\d{3}\)?[\-. ]\d{3}[\-. ]\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP_ADDRESS]"},
}

// RedactStatement - Scrubs literal sensitive values out of captured
// statement text before it is stored on a Transaction
func RedactStatement(text string) string {
	for _, rule := range redactionRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

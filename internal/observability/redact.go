package observability

import "regexp"

// Redactor masks credentials before they reach log output. Upstream error
// bodies and webhook URLs can carry bearer tokens and API keys; anything
// recorded or logged goes through here first.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor with the default credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.AddPattern(`Bearer\s+[a-zA-Z0-9\-_\.]+`, "Bearer [REDACTED]")
	r.AddPattern(`Authorization:\s*\S+`, "Authorization: [REDACTED]")
	r.AddPattern(`sk-[a-zA-Z0-9\-_]{20,}`, "[REDACTED_KEY]")
	r.AddPattern(`(?i)(token|api_key|apikey)=[^\s&"]+`, "$1=[REDACTED]")
	return r
}

// AddPattern registers an extra redaction pattern. Invalid patterns are
// skipped.
func (r *Redactor) AddPattern(pattern, replacement string) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	r.patterns = append(r.patterns, &redactPattern{regex: regex, replacement: replacement})
}

// Redact applies all patterns to the input string.
func (r *Redactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

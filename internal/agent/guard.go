package agent

import (
	"regexp"
	"strings"
)

// OutputGuard detects domain facts in generated text that are not grounded in
// any capability outcome the session has seen. It backs the forced-tool-use
// policy: a direct answer asserting counts, clock times, or slot ranges that
// never appeared in an Outcome is a policy violation.
type OutputGuard struct{}

func NewOutputGuard() *OutputGuard {
	return &OutputGuard{}
}

var (
	clockTimeRe = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	countRe     = regexp.MustCompile(`(?i)\b(\d+)\s+(appointments?|patients?|slots?|bookings?|openings?)\b`)
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)
)

// Ungrounded returns the domain-fact tokens in text that do not appear in the
// grounded corpus. An empty result means the text passes the policy.
func (g *OutputGuard) Ungrounded(text string, grounded []string) []string {
	corpus := strings.ToLower(strings.Join(grounded, "\n"))

	var violations []string
	seen := make(map[string]bool)
	flag := func(token string) {
		token = strings.ToLower(token)
		if token == "" || seen[token] {
			return
		}
		if !strings.Contains(corpus, token) {
			seen[token] = true
			violations = append(violations, token)
		}
	}

	for _, m := range clockTimeRe.FindAllString(text, -1) {
		flag(m)
	}
	for _, m := range isoDateRe.FindAllString(text, -1) {
		flag(m)
	}
	for _, m := range countRe.FindAllStringSubmatch(text, -1) {
		// The count alone is too noisy to match; require the number to
		// appear somewhere in the grounded data.
		flag(m[1])
	}

	return violations
}

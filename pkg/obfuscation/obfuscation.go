// Package obfuscation implements the per-stream secret redaction service
// (C1 "obfuscate"). Each service instance compiles its own matcher so that
// two services sharing a log stream but holding different secret sets
// never interfere with each other's redaction — there is no global state,
// following the per-instance design of infrastructure/redaction in the
// retrieval pack rather than a process-wide regexp cache.
package obfuscation

import (
	"regexp"
	"strings"
)

// redactionText is the literal substituted for every matched secret.
const redactionText = "xxx"

// Service replaces every occurrence of a registered secret with "xxx" in
// any text handed to Obfuscate. A Service with no secrets is a no-op.
type Service struct {
	matcher *regexp.Regexp
}

// New compiles a Service from a list of secrets. Empty and whitespace-only
// secrets, and secrets that occur inside "xxx" itself (such as "x"), are
// dropped before compilation; secrets are escaped so that regex
// metacharacters inside a secret (e.g. "/1234-a/bcd") are matched
// literally.
func New(secrets []string) *Service {
	patterns := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if strings.TrimSpace(s) == "" || strings.Contains(redactionText, s) {
			continue
		}
		patterns = append(patterns, regexp.QuoteMeta(s))
	}
	if len(patterns) == 0 {
		return &Service{}
	}
	return &Service{matcher: regexp.MustCompile(strings.Join(patterns, "|"))}
}

// Obfuscate replaces every occurrence of any registered secret in text
// with "xxx", repeating the replacement until no registered secret
// matches (so a match formed across an earlier "xxx" is replaced too).
// Obfuscate is idempotent: its result contains no registered secret, so
// obfuscating it again is a no-op. The repetition ends because each
// replacement either removes a character other than 'x' or shortens the
// text, New having dropped every secret that occurs inside "xxx".
func (s *Service) Obfuscate(text string) string {
	if s == nil || s.matcher == nil {
		return text
	}
	for {
		next := s.matcher.ReplaceAllString(text, redactionText)
		if next == text {
			return next
		}
		text = next
	}
}

// Obfuscate is a convenience one-shot form of New(secrets).Obfuscate(text)
// for callers that don't need to reuse the compiled matcher.
func Obfuscate(text string, secrets []string) string {
	return New(secrets).Obfuscate(text)
}

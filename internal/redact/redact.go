// Package redact replaces PII in conversation text with stable,
// per-export placeholder tokens, for use by internal/export when a
// caller requests a redacted document (spec.md §6 export options).
package redact

import (
	"fmt"
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// Redactor assigns a stable, increasing counter to each distinct PII
// match it sees across every Redact call on the same Redactor, so the
// same email address always maps to the same [REDACTED_EMAIL_N] token
// for that Redactor without leaking the underlying value.
// internal/export creates a new Redactor for each conversation, so its
// numbering restarts with every conversation, also in bulk exports.
type Redactor struct {
	emails sequence
	phones sequence
	ssns   sequence
}

func New() *Redactor {
	return &Redactor{
		emails: newSequence("EMAIL"),
		phones: newSequence("PHONE"),
		ssns:   newSequence("SSN"),
	}
}

// Redact replaces every recognized email, phone number, and SSN in text
// with its stable placeholder token.
func (r *Redactor) Redact(text string) string {
	text = emailPattern.ReplaceAllStringFunc(text, r.emails.token)
	text = phonePattern.ReplaceAllStringFunc(text, r.phones.token)
	text = ssnPattern.ReplaceAllStringFunc(text, r.ssns.token)
	return text
}

type sequence struct {
	kind  string
	known map[string]int
	next  int
}

func newSequence(kind string) sequence {
	return sequence{kind: kind, known: map[string]int{}, next: 1}
}

func (s *sequence) token(match string) string {
	n, ok := s.known[match]
	if !ok {
		n = s.next
		s.known[match] = n
		s.next++
	}
	return fmt.Sprintf("[REDACTED_%s_%d]", s.kind, n)
}

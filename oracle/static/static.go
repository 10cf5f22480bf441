// Package static provides a rule-based oracle.Classifier for testing and
// offline deployments. Rules are evaluated in order; the first match wins.
package static

import (
	"context"
	"strings"

	"github.com/rbaliyan/mailsort/oracle"
)

// Compile-time check
var _ oracle.Classifier = (*Classifier)(nil)

// Rule maps a sender-domain or subject-keyword match to a folder path.
// Empty fields are ignored; a rule with both fields set requires both to
// match.
type Rule struct {
	// SenderDomain matches the domain part of the sender address,
	// case-insensitively (e.g. "github.com").
	SenderDomain string
	// SubjectContains matches a case-insensitive substring of the subject.
	SubjectContains string
	// Folder is the suggested folder path.
	Folder string
}

// Classifier is an ordered rule list with a default folder.
// Safe for concurrent use (read-only after creation).
type Classifier struct {
	rules    []Rule
	fallback string
}

// New creates a static classifier. The rules are copied. When no rule
// matches, fallback is suggested; an empty fallback makes Classify return
// oracle.ErrNoSuggestion instead.
func New(rules []Rule, fallback string) *Classifier {
	return &Classifier{
		rules:    append([]Rule(nil), rules...),
		fallback: fallback,
	}
}

// Classify returns the folder of the first matching rule.
func (c *Classifier) Classify(_ context.Context, req oracle.Request) (string, error) {
	domain := senderDomain(req.SenderEmail)
	subject := strings.ToLower(req.Subject)

	for _, r := range c.rules {
		if r.SenderDomain != "" && !strings.EqualFold(r.SenderDomain, domain) {
			continue
		}
		if r.SubjectContains != "" && !strings.Contains(subject, strings.ToLower(r.SubjectContains)) {
			continue
		}
		return r.Folder, nil
	}

	if c.fallback == "" {
		return "", oracle.ErrNoSuggestion
	}
	return c.fallback, nil
}

// senderDomain extracts the domain from an address like "a@b.example".
func senderDomain(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}

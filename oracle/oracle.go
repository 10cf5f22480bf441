// Package oracle provides the classification oracle interface.
// Implementations are in oracle/lmstudio and oracle/static subpackages.
//
// The oracle is an untrusted collaborator: it returns a raw folder-path
// suggestion as free text, which the mailsort validator sanitizes before
// any folder is touched. A failed classification is a hard error - there
// is no safe default classification, so implementations must not retry or
// invent a fallback; the run loop decides what to do with the item.
package oracle

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for oracle implementations.
var (
	// ErrRequestFailed is returned when the classification call did not succeed.
	ErrRequestFailed = errors.New("oracle: classification request failed")

	// ErrNoSuggestion is returned when the oracle produced no usable text.
	ErrNoSuggestion = errors.New("oracle: empty suggestion")
)

// Request carries the per-item fields handed to the classifier, plus the
// snapshot of known folder paths so the oracle can prefer existing folders
// over inventing new ones.
type Request struct {
	Subject     string
	Body        string
	SenderName  string
	SenderEmail string
	To          string
	CC          string
	Attachments []string // attachment file names, no content
	ReceivedAt  time.Time
	Labels      []string

	// Folders is the sorted list of real folder paths known at call time.
	Folders []string
}

// Classifier suggests a folder path for a mail item.
type Classifier interface {
	// Classify returns a raw folder-path suggestion for the item.
	// The suggestion is untrusted text; callers must validate it.
	Classify(ctx context.Context, req Request) (string, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, req Request) (string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

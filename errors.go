package mailsort

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/mailsort/oracle"
	"github.com/rbaliyan/mailsort/tree"
)

// Sentinel errors for the mailsort package.
// Use errors.Is() to check for these errors.
//
// These errors wrap corresponding collaborator-level errors where
// applicable, so errors.Is(err, mailsort.ErrNotConnected) will match
// both service-level and provider-level "not connected" errors.
var (
	// ErrTreeRequired is returned when no tree provider is configured.
	ErrTreeRequired = errors.New("mailsort: tree provider is required")

	// ErrClassifierRequired is returned when no classifier is configured.
	ErrClassifierRequired = errors.New("mailsort: classifier is required")

	// ErrMoverRequired is returned when the configured tree provider does
	// not implement tree.Mover and items therefore cannot be filed.
	ErrMoverRequired = errors.New("mailsort: tree provider does not support moving items")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps tree.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("mailsort: %w", tree.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps tree.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("mailsort: %w", tree.ErrAlreadyConnected)

	// ErrClassification is returned when the oracle call did not succeed.
	// There is no safe default classification, so this is the one failure
	// Sort propagates; run loops catch it per item and continue.
	// Wraps oracle.ErrRequestFailed for consistent error checking.
	ErrClassification = fmt.Errorf("mailsort: %w", oracle.ErrRequestFailed)

	// ErrEventClientRequired is returned when event client is nil.
	ErrEventClientRequired = errors.New("mailsort: event client is required")
)

// RuleViolation reports which deny rule rejected a suggested path.
// It is informational: validation never fails, it substitutes the
// fallback path and reports the violation for logging and auditing.
type RuleViolation struct {
	// Rule is the name of the deny rule that matched.
	Rule string
	// Path is the cleaned path that was rejected.
	Path string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("mailsort: path %q rejected by rule %q", e.Path, e.Rule)
}

// EventPublishError is returned when event publishing fails but the
// routing operation succeeded. The item was moved, but the event
// notification failed.
type EventPublishError struct {
	Event  string // The event name (e.g., "ItemSorted")
	ItemID string // The item ID the event was for
	Err    error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("mailsort: event %s publish failed for item %s: %v", e.Event, e.ItemID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and
// returns details. This is useful when eventErrorsFatal=true but you
// still want to know the item was moved.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// PluginError wraps a plugin lifecycle failure.
type PluginError struct {
	// Plugin is the plugin name.
	Plugin string
	// Op is "init" or "close".
	Op string
	// Err is the underlying error.
	Err error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("mailsort: plugin %s %s failed: %v", e.Plugin, e.Op, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

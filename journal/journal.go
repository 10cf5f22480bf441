// Package journal provides interfaces and types for the sort journal.
// Implementations are in journal/memory, journal/postgres, and
// journal/mongo subpackages.
//
// The journal is an append-only record of terminal routing outcomes: one
// entry per processed item, either SORTED with the real folder path or
// SKIPPED with a reason. It exists for auditing and reporting; the engine
// never reads it back to make routing decisions.
package journal

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for journal implementations.
var (
	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("journal: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("journal: already connected")

	// ErrInvalidEntry is returned when an entry is missing required fields.
	ErrInvalidEntry = errors.New("journal: invalid entry")
)

// Dispositions recorded in the journal.
const (
	DispositionSorted  = "SORTED"
	DispositionSkipped = "SKIPPED"
)

// Entry is one journalled routing outcome.
type Entry struct {
	// ID is assigned by Append when empty.
	ID string
	// RunID groups entries belonging to one SortAll invocation.
	RunID string
	// ItemID is the provider-assigned mail item ID.
	ItemID string
	// Subject is the item subject at processing time.
	Subject string
	// Folder is the real folder path the item was routed to, empty for skips.
	Folder string
	// Disposition is DispositionSorted or DispositionSkipped.
	Disposition string
	// Reason explains a skip; empty for sorted items.
	Reason string
	// RecordedAt is when the outcome was journalled, in UTC.
	RecordedAt time.Time
}

// Summary aggregates journalled outcomes.
type Summary struct {
	Sorted  int64
	Skipped int64
}

// Journal records routing outcomes.
type Journal interface {
	// Connect establishes the backend connection and schema.
	Connect(ctx context.Context) error
	// Close releases the backend connection.
	Close(ctx context.Context) error

	// Append records one outcome. The entry's ID is assigned when empty.
	Append(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Summary returns aggregate counts for a run, or for all entries when
	// runID is empty.
	Summary(ctx context.Context, runID string) (*Summary, error)
}

// Validate checks that an entry carries the required fields.
func Validate(e Entry) error {
	if e.Disposition != DispositionSorted && e.Disposition != DispositionSkipped {
		return errors.Join(ErrInvalidEntry, errors.New("unknown disposition "+e.Disposition))
	}
	if e.Disposition == DispositionSorted && e.Folder == "" {
		return errors.Join(ErrInvalidEntry, errors.New("sorted entry without folder"))
	}
	return nil
}

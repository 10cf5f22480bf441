// Package memory provides an in-memory journal.Journal implementation
// for testing. Entries are not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailsort/journal"
)

// Compile-time check
var _ journal.Journal = (*Journal)(nil)

// Journal implements journal.Journal with in-memory storage.
// Safe for concurrent use. Not suitable for production.
type Journal struct {
	mu        sync.Mutex
	entries   []journal.Entry
	connected int32
}

// New creates a new in-memory journal.
func New() *Journal {
	return &Journal{}
}

// Connect marks the journal as connected.
func (j *Journal) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&j.connected, 0, 1) {
		return journal.ErrAlreadyConnected
	}
	return nil
}

// Close marks the journal as disconnected.
func (j *Journal) Close(_ context.Context) error {
	atomic.StoreInt32(&j.connected, 0)
	return nil
}

// Append records one outcome.
func (j *Journal) Append(_ context.Context, e journal.Entry) error {
	if atomic.LoadInt32(&j.connected) == 0 {
		return journal.ErrNotConnected
	}
	if err := journal.Validate(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	if atomic.LoadInt32(&j.connected) == 0 {
		return nil, journal.ErrNotConnected
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]journal.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

// Summary returns aggregate counts for a run, or all entries when runID
// is empty.
func (j *Journal) Summary(_ context.Context, runID string) (*journal.Summary, error) {
	if atomic.LoadInt32(&j.connected) == 0 {
		return nil, journal.ErrNotConnected
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var s journal.Summary
	for _, e := range j.entries {
		if runID != "" && e.RunID != runID {
			continue
		}
		switch e.Disposition {
		case journal.DispositionSorted:
			s.Sorted++
		case journal.DispositionSkipped:
			s.Skipped++
		}
	}
	return &s, nil
}

// Len returns the number of journalled entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

package mailsort

import "time"

// Disposition is the terminal state of a single item in a run.
type Disposition string

const (
	// DispositionSorted means the item was moved to its resolved folder.
	DispositionSorted Disposition = "SORTED"
	// DispositionSkipped means the item was left in place.
	DispositionSkipped Disposition = "SKIPPED"
)

// Skip reasons recorded in Outcome.Reason and journal entries.
const (
	// SkipReasonIncapableTarget marks a resolved node that cannot hold
	// mail, such as an IMAP \Noselect mailbox.
	SkipReasonIncapableTarget = "not-a-mail-folder"
	// SkipReasonClassification marks an oracle transport or decode failure.
	SkipReasonClassification = "classification-failed"
	// SkipReasonResolve marks a folder resolution failure.
	SkipReasonResolve = "resolve-failed"
	// SkipReasonMove marks a provider move failure.
	SkipReasonMove = "move-failed"
	// SkipReasonNoReceivedTime marks an item without a receive timestamp.
	SkipReasonNoReceivedTime = "no-received-time"
	// SkipReasonVetoed marks an item a SortHook declined to sort.
	SkipReasonVetoed = "vetoed"
)

// Outcome describes what happened to one item.
type Outcome struct {
	ItemID      string
	Subject     string
	Disposition Disposition

	// Folder is the resolved destination path when sorted.
	Folder string

	// Reason is one of the SkipReason constants when skipped.
	Reason string

	// Detail carries the underlying error text for skip outcomes, if any.
	Detail string

	// FoldersCreated counts folders created while resolving the
	// destination.
	FoldersCreated int

	// CacheHit reports whether the destination path was substituted from
	// the folder cache.
	CacheHit bool
}

// RunReport summarizes one SortAll invocation.
type RunReport struct {
	// RunID groups this run's journal entries.
	RunID string

	Sorted  int
	Skipped int

	// FoldersCreated counts folders created while resolving this run's
	// destinations.
	FoldersCreated int

	Elapsed time.Duration

	// Outcomes lists per-item results in processing order, newest item
	// first.
	Outcomes []Outcome
}

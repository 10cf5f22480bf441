package mailsort

import "time"

// Item is one mail item to route. The caller extracts these fields from
// its mail source; mailsort never enumerates mail itself.
type Item struct {
	// ID is the provider-assigned identifier handed to tree.Mover.Move.
	// For the IMAP provider this is the decimal UID in the source mailbox.
	ID string

	Subject     string
	Body        string
	SenderName  string
	SenderEmail string
	To          string
	CC          string

	// Attachments holds attachment file names only; content never flows
	// through mailsort.
	Attachments []string

	// ReceivedAt orders items newest-first in SortAll. Items with a zero
	// ReceivedAt are skipped with SkipReasonNoReceivedTime, mirroring mail
	// stores that expose undeliverable stubs without a receive timestamp.
	ReceivedAt time.Time

	// Labels are provider labels or categories, passed to the oracle as
	// classification hints.
	Labels []string
}

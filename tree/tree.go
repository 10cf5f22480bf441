// Package tree provides interfaces and types for folder tree providers.
// Implementations are in tree/memory and tree/imap subpackages.
//
// A tree provider owns the real folder hierarchy of a mail store. The
// mailsort resolver only reads the tree and appends to it through
// CreateChild; it never deletes or renames nodes. Providers must tolerate
// repeated Children calls on the same node within one run.
package tree

import (
	"context"
	"errors"
)

// Sentinel errors for tree providers.
// Use errors.Is() to check for these errors.
var (
	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("tree: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("tree: already connected")

	// ErrNodeNotFound is returned when a named child does not exist.
	ErrNodeNotFound = errors.New("tree: node not found")

	// ErrItemNotFound is returned when a mail item cannot be located for a move.
	ErrItemNotFound = errors.New("tree: item not found")

	// ErrCreateNotSupported is returned by providers that expose a read-only tree.
	ErrCreateNotSupported = errors.New("tree: folder creation not supported")

	// ErrInvalidName is returned when a folder name is empty or contains
	// the provider's delimiter.
	ErrInvalidName = errors.New("tree: invalid folder name")
)

// Node is one folder in the provider's hierarchy.
//
// Name returns the folder's display name, exactly as the store spells it.
// CanHoldMail reports whether mail items may be filed into this folder;
// containers for contacts, calendars, or IMAP \Noselect mailboxes return
// false. The resolver does not consult CanHoldMail - the caller checks it
// before moving an item.
type Node interface {
	// Name returns the folder name (a single segment, no delimiter).
	Name() string

	// Children returns the node's immediate children in provider order.
	Children(ctx context.Context) ([]Node, error)

	// CreateChild creates a child folder with the given exact name and
	// returns it. Returns ErrCreateNotSupported for read-only providers.
	CreateChild(ctx context.Context, name string) (Node, error)

	// CanHoldMail reports whether the folder may contain mail items.
	CanHoldMail() bool
}

// Tree is a connected view of a folder hierarchy.
type Tree interface {
	// Connect establishes the provider connection.
	Connect(ctx context.Context) error

	// Close releases the provider connection.
	Close(ctx context.Context) error

	// Root returns the top-level folder of the hierarchy.
	Root(ctx context.Context) (Node, error)
}

// Mover moves mail items between folders. Providers that support filing
// implement Mover in addition to Tree; the item is identified by the
// provider-assigned ID carried on the mailsort Item.
type Mover interface {
	// Move files the item with the given ID into the target folder.
	// Returns ErrItemNotFound if the provider cannot locate the item.
	Move(ctx context.Context, itemID string, target Node) error
}

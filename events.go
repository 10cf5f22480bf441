package mailsort

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for sorter events.
const (
	EventNameItemSorted    = "mailsort.item.sorted"
	EventNameItemSkipped   = "mailsort.item.skipped"
	EventNameFolderCreated = "mailsort.folder.created"
)

// ItemSortedEvent is published when an item is moved to its resolved folder.
type ItemSortedEvent struct {
	ItemID   string    `json:"item_id"`
	RunID    string    `json:"run_id"`
	Subject  string    `json:"subject"`
	Folder   string    `json:"folder"`
	SortedAt time.Time `json:"sorted_at"`
}

// ItemSkippedEvent is published when an item is left in place.
// Reason is one of the SkipReason constants.
type ItemSkippedEvent struct {
	ItemID    string    `json:"item_id"`
	RunID     string    `json:"run_id"`
	Subject   string    `json:"subject"`
	Reason    string    `json:"reason"`
	SkippedAt time.Time `json:"skipped_at"`
}

// FolderCreatedEvent is published for every folder created during
// resolution. Path is the full path of the new folder.
type FolderCreatedEvent struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().ItemSorted.Subscribe(ctx, handler)
//	svc.Events().ItemSkipped.Subscribe(ctx, handler)
//	svc.Events().FolderCreated.Subscribe(ctx, handler)
type ServiceEvents struct {
	// ItemSorted is published when an item is moved to its folder.
	ItemSorted event.Event[ItemSortedEvent]

	// ItemSkipped is published when an item is left in place.
	ItemSkipped event.Event[ItemSkippedEvent]

	// FolderCreated is published when resolution creates a folder.
	FolderCreated event.Event[FolderCreatedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		ItemSorted:    event.New[ItemSortedEvent](namePrefix + "." + EventNameItemSorted),
		ItemSkipped:   event.New[ItemSkippedEvent](namePrefix + "." + EventNameItemSkipped),
		FolderCreated: event.New[FolderCreatedEvent](namePrefix + "." + EventNameFolderCreated),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.ItemSorted); err != nil {
		return fmt.Errorf("register ItemSorted: %w", err)
	}
	if err := event.Register(ctx, bus, events.ItemSkipped); err != nil {
		return fmt.Errorf("register ItemSkipped: %w", err)
	}
	if err := event.Register(ctx, bus, events.FolderCreated); err != nil {
		return fmt.Errorf("register FolderCreated: %w", err)
	}
	return nil
}

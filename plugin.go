package mailsort

import (
	"context"
	"errors"
	"log/slog"
)

// Plugin defines the interface for sorter extensions.
// Plugins can hook into item sorting to add custom behavior such as
// sender allow-lists, rate limiting, or destination auditing.
//
// For observing outcomes without influencing them, use the event system
// instead (Service.Events().ItemSorted, ItemSkipped, FolderCreated).
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init initializes the plugin. Called when service connects.
	Init(ctx context.Context) error
	// Close cleans up plugin resources. Called when service closes.
	Close(ctx context.Context) error
}

// SortHook is called before/after sorting an item.
// This is the primary extension point for vetoing and auditing moves.
type SortHook interface {
	Plugin
	// BeforeSort is called before an item is classified. Return an error
	// to veto the sort; the item is then skipped with SkipReasonVetoed.
	BeforeSort(ctx context.Context, item Item) error
	// AfterSort is called after an item reaches its terminal disposition.
	// Return an error to signal post-sort failures (e.g., audit errors).
	// Note: A sorted item is already moved and cannot be rolled back.
	AfterSort(ctx context.Context, item Item, outcome Outcome) error
}

// pluginRegistry holds registered plugins.
type pluginRegistry struct {
	all    []Plugin
	sort   []SortHook
	logger *slog.Logger
}

// newPluginRegistry creates a new plugin registry.
func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

// register adds a plugin to the registry.
func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)

	if h, ok := p.(SortHook); ok {
		r.sort = append(r.sort, h)
	}
}

// initAll initializes all plugins.
// On failure, already-initialized plugins are closed in reverse order.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			// Close already-initialized plugins in reverse order
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes all plugins in reverse order.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// Hook execution helpers

func (r *pluginRegistry) beforeSort(ctx context.Context, item Item) error {
	for _, h := range r.sort {
		if err := h.BeforeSort(ctx, item); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeSort", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterSort(ctx context.Context, item Item, outcome Outcome) error {
	for _, h := range r.sort {
		if err := h.AfterSort(ctx, item, outcome); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterSort", Err: err}
		}
	}
	return nil
}

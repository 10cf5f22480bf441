package mailsort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/mailsort/journal"
	"github.com/rbaliyan/mailsort/oracle"
	"github.com/rbaliyan/mailsort/tree"
	"go.opentelemetry.io/otel/attribute"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service routes mail items into a folder hierarchy. Destinations come
// from the configured classification oracle; the service validates them,
// resolves them against the tree, and moves items.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to the tree provider and journal
	// and builds the folder cache.
	Connect(ctx context.Context) error
	// Close closes all connections.
	Close(ctx context.Context) error
	// Sort routes a single item. The returned Outcome describes the
	// terminal disposition. Classification failures are returned as
	// errors wrapping ErrClassification; every other failure mode skips
	// the item and reports it in the Outcome.
	Sort(ctx context.Context, item Item) (*Outcome, error)
	// SortAll routes a batch of items newest-first, containing per-item
	// failures so one bad item never stops the run.
	SortAll(ctx context.Context, items []Item) (*RunReport, error)
	// RefreshFolders rebuilds the folder cache from the live tree.
	RefreshFolders(ctx context.Context) error
	// Folders returns the cached folder paths, sorted.
	Folders() []string
	// Events returns per-service event instances for subscribing and publishing.
	// Each service has its own events bound to its own event bus, enabling
	// independent event routing and parallel testing.
	Events() *ServiceEvents
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	tree       tree.Tree
	mover      tree.Mover
	classifier oracle.Classifier
	journal    journal.Journal
	logger     *slog.Logger
	opts       *options
	state      int32 // stateDisconnected, stateConnecting, or stateConnected
	plugins    *pluginRegistry
	otel       *otelInstrumentation
	eventBus   *event.Bus     // Event bus for publishing events
	events     *ServiceEvents // Per-service event instances

	cache     *Cache
	validator *Validator
	resolver  *Resolver
	root      tree.Node

	// runMu serializes sorting. Resolution mutates the live tree, so
	// concurrent runs would race on folder creation.
	runMu sync.Mutex
}

// NewService creates a new sorter service.
// Call Connect() to establish connections and build the folder cache.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.tree == nil {
		return nil, ErrTreeRequired
	}
	if o.classifier == nil {
		return nil, ErrClassifierRequired
	}

	mover := o.mover
	if mover == nil {
		m, ok := o.tree.(tree.Mover)
		if !ok {
			return nil, ErrMoverRequired
		}
		mover = m
	}

	// Initialize plugin registry
	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	// Initialize OTel instrumentation
	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	cache := NewCache()
	return &service{
		tree:       o.tree,
		mover:      mover,
		classifier: o.classifier,
		journal:    o.journal,
		logger:     o.logger,
		opts:       o,
		plugins:    plugins,
		otel:       otelInstr,
		cache:      cache,
		validator:  NewValidator(o.rootFolder, o.fallbackFolder, o.denyRules...),
		resolver:   NewResolver(cache, o.fallbackFolder, o.createFolders),
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections and builds the folder cache.
func (s *service) Connect(ctx context.Context) error {
	// Use three-state to prevent Sort() from seeing partial initialization
	// stateDisconnected -> stateConnecting -> stateConnected
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	// Reset to disconnected on failure, set to connected on success
	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.tree.Connect(ctx); err != nil {
		return fmt.Errorf("connect tree: %w", err)
	}

	root, err := s.tree.Root(ctx)
	if err != nil {
		s.tree.Close(ctx)
		return fmt.Errorf("fetch root: %w", err)
	}
	s.root = root

	if err := s.cache.Rebuild(ctx, root); err != nil {
		s.tree.Close(ctx)
		return fmt.Errorf("build folder cache: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.Connect(ctx); err != nil {
			s.tree.Close(ctx)
			return fmt.Errorf("connect journal: %w", err)
		}
	}

	// Initialize event bus with appropriate transport
	if err := s.initEventBus(ctx); err != nil {
		if s.journal != nil {
			s.journal.Close(ctx)
		}
		s.tree.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	// Initialize plugins
	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		if s.journal != nil {
			s.journal.Close(ctx)
		}
		s.tree.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("mailsort service connected",
		"root", s.opts.rootFolder, "folders", s.cache.Len())
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service.
// Each service creates its own bus with its own per-service events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "mailsort"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	// Create and register per-service events (unique per service instance).
	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close closes connections in reverse order of Connect.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	// Wait for an in-flight run to finish. New runs cannot start because
	// the state check fails once disconnected.
	s.runMu.Lock()
	s.runMu.Unlock()

	var errs []error

	// Close plugins first (reverse order of init)
	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	// Close event bus only if using a real transport.
	// For noop transport, the bus doesn't hold resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if s.journal != nil {
		if err := s.journal.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}

	if err := s.tree.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close tree: %w", err))
	}

	return errors.Join(errs...)
}

// RefreshFolders rebuilds the folder cache from the live tree.
func (s *service) RefreshFolders(ctx context.Context) error {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return ErrNotConnected
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	root, err := s.tree.Root(ctx)
	if err != nil {
		return fmt.Errorf("fetch root: %w", err)
	}
	s.root = root
	return s.cache.Rebuild(ctx, root)
}

// Folders returns the cached folder paths, sorted.
func (s *service) Folders() []string {
	return s.cache.Paths()
}

// Sort routes a single item.
func (s *service) Sort(ctx context.Context, item Item) (*Outcome, error) {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return nil, ErrNotConnected
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.sortOne(ctx, uuid.NewString(), item)
}

// SortAll routes a batch of items newest-first. Items without a receive
// timestamp are skipped, a configured run limit caps the batch, and
// per-item classification failures are contained so the run continues.
func (s *service) SortAll(ctx context.Context, items []Item) (*RunReport, error) {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return nil, ErrNotConnected
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := &RunReport{RunID: uuid.NewString()}
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	runnable := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ReceivedAt.IsZero() {
			outcome := s.skip(ctx, report.RunID, item, SkipReasonNoReceivedTime, nil)
			report.Skipped++
			report.Outcomes = append(report.Outcomes, *outcome)
			continue
		}
		runnable = append(runnable, item)
	}

	sort.SliceStable(runnable, func(i, j int) bool {
		return runnable[i].ReceivedAt.After(runnable[j].ReceivedAt)
	})
	if s.opts.runLimit > 0 && len(runnable) > s.opts.runLimit {
		runnable = runnable[:s.opts.runLimit]
	}

	for _, item := range runnable {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.sortOne(ctx, report.RunID, item)
		if err != nil {
			if outcome == nil {
				// Classification failed; contain it and keep going.
				outcome = s.skip(ctx, report.RunID, item, SkipReasonClassification, err)
			} else {
				s.logger.Error("post-sort failure", "item_id", item.ID, "error", err)
			}
		}
		switch outcome.Disposition {
		case DispositionSorted:
			report.Sorted++
			report.FoldersCreated += outcome.FoldersCreated
		default:
			report.Skipped++
		}
		report.Outcomes = append(report.Outcomes, *outcome)
	}

	s.logger.Info("run complete",
		"run_id", report.RunID,
		"sorted", report.Sorted,
		"skipped", report.Skipped,
		"folders_created", report.FoldersCreated,
	)
	return report, nil
}

// sortOne routes one item through the classify/validate/resolve/move
// pipeline. Caller holds runMu.
func (s *service) sortOne(ctx context.Context, runID string, item Item) (outcome *Outcome, err error) {
	ctx, endSpan := s.otel.startSpan(ctx, "mailsort.sort",
		attribute.String("item_id", item.ID),
	)
	defer func() {
		endSpan(err)
	}()

	// Plugin BeforeSort hook: an error vetoes the item.
	if hookErr := s.plugins.beforeSort(ctx, item); hookErr != nil {
		s.logger.Info("item vetoed", "item_id", item.ID, "error", hookErr)
		return s.skip(ctx, runID, item, SkipReasonVetoed, hookErr), nil
	}

	suggestion, err := s.classify(ctx, item)
	if err != nil {
		return nil, err
	}

	path, vErr := s.validator.Validate(suggestion)
	if vErr != nil {
		var violation *RuleViolation
		if errors.As(vErr, &violation) {
			s.otel.recordRuleTripped(ctx, violation.Rule)
		}
		s.logger.Warn("suggestion rejected",
			"item_id", item.ID, "suggestion", suggestion, "error", vErr)
	}

	resolveStart := time.Now()
	node, info, resolveErr := s.resolver.Resolve(ctx, s.root, path)
	s.otel.recordResolve(ctx, time.Since(resolveStart), info, resolveErr)
	if resolveErr != nil {
		return s.skip(ctx, runID, item, SkipReasonResolve, resolveErr), nil
	}
	if info.Created > 0 {
		if pubErr := s.events.FolderCreated.Publish(ctx, FolderCreatedEvent{
			Path:      info.Path,
			CreatedAt: time.Now().UTC(),
		}); pubErr != nil {
			s.opts.safeEventPublishFailure("FolderCreated", pubErr)
		}
	}

	if !node.CanHoldMail() {
		return s.skip(ctx, runID, item, SkipReasonIncapableTarget, nil), nil
	}

	moveStart := time.Now()
	moveErr := s.mover.Move(ctx, item.ID, node)
	s.otel.recordMove(ctx, time.Since(moveStart), info.Path, moveErr)
	if moveErr != nil {
		return s.skip(ctx, runID, item, SkipReasonMove, moveErr), nil
	}

	outcome = &Outcome{
		ItemID:         item.ID,
		Subject:        item.Subject,
		Disposition:    DispositionSorted,
		Folder:         info.Path,
		FoldersCreated: info.Created,
		CacheHit:       info.CacheHit,
	}
	s.record(ctx, runID, item, outcome)
	s.logger.Info("sorted item",
		"item_id", item.ID, "subject", item.Subject, "folder", info.Path)

	if pubErr := s.events.ItemSorted.Publish(ctx, ItemSortedEvent{
		ItemID:   item.ID,
		RunID:    runID,
		Subject:  item.Subject,
		Folder:   info.Path,
		SortedAt: time.Now().UTC(),
	}); pubErr != nil {
		if s.opts.eventErrorsFatal {
			// Item was moved but the event failed.
			return outcome, &EventPublishError{
				Event:  "ItemSorted",
				ItemID: item.ID,
				Err:    pubErr,
			}
		}
		s.opts.safeEventPublishFailure("ItemSorted", pubErr)
	}

	if hookErr := s.plugins.afterSort(ctx, item, *outcome); hookErr != nil {
		return outcome, hookErr
	}
	return outcome, nil
}

// classify asks the oracle for a destination. An empty suggestion maps to
// the fallback via validation; transport failures wrap ErrClassification.
func (s *service) classify(ctx context.Context, item Item) (string, error) {
	start := time.Now()
	suggestion, err := s.classifier.Classify(ctx, oracle.Request{
		Subject:     item.Subject,
		Body:        item.Body,
		SenderName:  item.SenderName,
		SenderEmail: item.SenderEmail,
		To:          item.To,
		CC:          item.CC,
		Attachments: item.Attachments,
		ReceivedAt:  item.ReceivedAt,
		Labels:      item.Labels,
		Folders:     s.cache.Paths(),
	})
	s.otel.recordClassify(ctx, time.Since(start), err)
	if err != nil {
		if errors.Is(err, oracle.ErrNoSuggestion) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return suggestion, nil
}

// skip records and publishes a skipped disposition for item.
func (s *service) skip(ctx context.Context, runID string, item Item, reason string, cause error) *Outcome {
	outcome := &Outcome{
		ItemID:      item.ID,
		Subject:     item.Subject,
		Disposition: DispositionSkipped,
		Reason:      reason,
	}
	if cause != nil {
		outcome.Detail = cause.Error()
	}
	s.record(ctx, runID, item, outcome)
	s.logger.Info("skipped item",
		"item_id", item.ID, "subject", item.Subject, "reason", reason)

	if pubErr := s.events.ItemSkipped.Publish(ctx, ItemSkippedEvent{
		ItemID:    item.ID,
		RunID:     runID,
		Subject:   item.Subject,
		Reason:    reason,
		SkippedAt: time.Now().UTC(),
	}); pubErr != nil {
		s.opts.safeEventPublishFailure("ItemSkipped", pubErr)
	}

	if hookErr := s.plugins.afterSort(ctx, item, *outcome); hookErr != nil {
		s.logger.Error("AfterSort hook failed", "item_id", item.ID, "error", hookErr)
	}
	return outcome
}

// record appends the outcome to the journal, if one is configured.
func (s *service) record(ctx context.Context, runID string, item Item, outcome *Outcome) {
	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		RunID:       runID,
		ItemID:      item.ID,
		Subject:     item.Subject,
		Folder:      outcome.Folder,
		Disposition: string(outcome.Disposition),
		Reason:      outcome.Reason,
		RecordedAt:  time.Now().UTC(),
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Error("failed to journal outcome",
			"item_id", item.ID, "disposition", outcome.Disposition, "error", err)
	}
}

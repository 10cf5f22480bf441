package mailsort

import (
	"log/slog"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/mailsort/journal"
	"github.com/rbaliyan/mailsort/oracle"
	"github.com/rbaliyan/mailsort/tree"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultRootFolder     = "Inbox"    // root of the sortable hierarchy
	DefaultFallbackFolder = "Unsorted" // destination for rejected suggestions
	DefaultServiceName    = "mailsort"

	// DefaultRunLimit caps items processed per SortAll run. Zero means
	// no cap.
	DefaultRunLimit = 0
)

// options holds sorter configuration.
type options struct {
	tree       tree.Tree
	mover      tree.Mover
	classifier oracle.Classifier
	journal    journal.Journal
	logger     *slog.Logger

	plugins []Plugin

	// Taxonomy configuration
	rootFolder     string
	fallbackFolder string
	createFolders  bool
	denyRules      []Rule

	// Run limits
	runLimit int

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool                    // If true, event publishing failures cause the operation to fail
	eventTransport        transport.Transport     // Event transport (optional, uses noop if nil)
	redisClient           redis.UniversalClient   // Redis client for event transport (optional, uses noop if nil)
	onEventPublishFailure EventPublishFailureFunc // Callback for event publish failures (always set)
}

// EventPublishFailureFunc is called when an event fails to publish.
// The eventName is the name of the event (e.g., "ItemSorted"), and err is the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
// If the callback panics, the panic is logged and suppressed to prevent cascading failures.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:         slog.Default(),
		rootFolder:     DefaultRootFolder,
		fallbackFolder: DefaultFallbackFolder,
		createFolders:  true,
		runLimit:       DefaultRunLimit,
		serviceName:    DefaultServiceName,
	}
	for _, opt := range opts {
		opt(o)
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a sorter.
type Option func(*options)

// --- Core Options ---

// WithTree sets the folder tree provider (required).
func WithTree(t tree.Tree) Option {
	return func(o *options) {
		if t != nil {
			o.tree = t
		}
	}
}

// WithMover sets the item mover. When the tree provider also implements
// tree.Mover this option is unnecessary; NewService discovers it.
func WithMover(m tree.Mover) Option {
	return func(o *options) {
		if m != nil {
			o.mover = m
		}
	}
}

// WithClassifier sets the classification oracle (required).
func WithClassifier(c oracle.Classifier) Option {
	return func(o *options) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithJournal sets the journal recording per-item dispositions.
// If not provided, dispositions are only logged.
func WithJournal(j journal.Journal) Option {
	return func(o *options) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// --- Taxonomy Options ---

// WithRootFolder sets the name of the hierarchy root all destinations are
// anchored under. Default is "Inbox".
func WithRootFolder(name string) Option {
	return func(o *options) {
		if name != "" {
			o.rootFolder = name
		}
	}
}

// WithFallbackFolder sets the folder under the root that rejected or empty
// suggestions resolve to. Default is "Unsorted".
func WithFallbackFolder(name string) Option {
	return func(o *options) {
		if name != "" {
			o.fallbackFolder = name
		}
	}
}

// WithCreateFolders configures whether missing folders are created during
// resolution. When disabled, items whose destination does not exist are
// routed to the fallback folder instead. Default is enabled.
func WithCreateFolders(enabled bool) Option {
	return func(o *options) {
		o.createFolders = enabled
	}
}

// WithDenyRule adds a deny rule evaluated after the built-in rules.
// Multiple rules can be added by calling this option multiple times.
func WithDenyRule(r Rule) Option {
	return func(o *options) {
		if r.Match != nil {
			o.denyRules = append(o.denyRules, r)
		}
	}
}

// --- Run Options ---

// WithRunLimit caps the number of items processed per SortAll run.
// Items beyond the cap (oldest first) are left untouched for the next run.
// Default is no cap.
func WithRunLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.runLimit = n
		}
	}
}

// --- Plugin/Extension Options ---

// WithPlugin registers a plugin with the sorter service.
// Plugins can hook into the per-item sort lifecycle.
// Multiple plugins can be registered by calling this option multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// When enabled, spans are created for all sorter operations.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// When enabled, metrics are collected for all sorter operations.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
// This is a convenience function equivalent to calling
// WithTracing(true) and WithMetrics(true).
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for OpenTelemetry telemetry.
// Default is "mailsort".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures should
// cause the operation to fail. By default, event failures are logged but
// the operation succeeds (the item is still moved).
//
// Set to true if your application requires guaranteed event delivery,
// for example when events drive critical downstream processes.
// Set to false (default) for fire-and-forget event publishing.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport for publishing and subscribing.
// When provided, events are published via the given transport for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
//
// Example with Redis:
//
//	transport, _ := redis.New(redisClient)
//	svc, _ := mailsort.NewService(mailsort.WithEventTransport(transport))
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient sets a Redis client for the event transport.
// When provided, events are published to Redis Streams for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// This callback is invoked whenever an event fails to publish (and eventErrorsFatal is false).
// Use this for custom logging, metrics, or alerting on event failures.
//
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

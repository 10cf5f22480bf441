package lmstudio

import (
	"log/slog"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultModel        = "local-model"
	DefaultMaxTokens    = 50
	DefaultBodyLimit    = 1000 // prompt body truncation, in bytes
	DefaultHTTPTimeout  = 2 * time.Minute
	DefaultSystemPrompt = "You are an email sorting assistant. " +
		"Pick the best folder for the email below. Prefer an existing folder; " +
		"suggest a new sub-folder only when nothing fits."
)

// options holds LM Studio client configuration.
type options struct {
	model        string
	maxTokens    int
	bodyLimit    int
	systemPrompt string
	httpClient   *http.Client
	logger       *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		model:        DefaultModel,
		maxTokens:    DefaultMaxTokens,
		bodyLimit:    DefaultBodyLimit,
		systemPrompt: DefaultSystemPrompt,
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an LM Studio client.
type Option func(*options)

// WithModel sets the model ID sent with each completion request.
func WithModel(id string) Option {
	return func(o *options) {
		if id != "" {
			o.model = id
		}
	}
}

// WithMaxTokens sets the completion token budget. A folder path is short;
// the default of 50 keeps the oracle from rambling.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithBodyLimit sets how many bytes of the mail body are included in the
// prompt. Default is 1000.
func WithBodyLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bodyLimit = n
		}
	}
}

// WithSystemPrompt replaces the instruction text that precedes the mail
// details, for example to add personal sorting preferences.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) {
		if prompt != "" {
			o.systemPrompt = prompt
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
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

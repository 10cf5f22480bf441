package imap

import (
	"crypto/tls"
	"log/slog"

	"github.com/rbaliyan/mailsort/retry"
)

// Default configuration values.
const (
	DefaultRootMailbox   = "INBOX"
	DefaultSourceMailbox = "INBOX"
)

// options holds IMAP tree configuration.
type options struct {
	username  string
	password  string
	root      string
	source    string
	tlsConfig *tls.Config
	retryCfg  retry.Config
	logger    *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		root:     DefaultRootMailbox,
		source:   DefaultSourceMailbox,
		retryCfg: retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an IMAP tree.
type Option func(*options)

// WithCredentials sets the LOGIN username and password.
func WithCredentials(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithRootMailbox sets the mailbox treated as the root of the folder
// taxonomy. Default is "INBOX".
func WithRootMailbox(name string) Option {
	return func(o *options) {
		if name != "" {
			o.root = name
		}
	}
}

// WithSourceMailbox sets the mailbox items are moved out of. Default is
// "INBOX". Item IDs passed to Move are UIDs within this mailbox.
func WithSourceMailbox(name string) Option {
	return func(o *options) {
		if name != "" {
			o.source = name
		}
	}
}

// WithTLSConfig sets a custom TLS configuration for the dial.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.tlsConfig = cfg
		}
	}
}

// WithRetry sets the retry configuration used for dialing and transient
// command failures.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retryCfg = cfg
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

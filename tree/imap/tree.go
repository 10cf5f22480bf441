// Package imap provides an IMAP-backed tree.Tree implementation.
//
// Mailboxes are exposed as a hierarchy rooted at a configured mailbox
// (default "INBOX"), using the delimiter advertised by the server. A
// mailbox carrying the \Noselect attribute is visible in the tree but
// reports CanHoldMail() == false, so items are never filed into it.
//
// Item IDs passed to Move are decimal UIDs within the configured source
// mailbox.
package imap

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/rbaliyan/mailsort/retry"
	"github.com/rbaliyan/mailsort/tree"
)

// Compile-time checks
var (
	_ tree.Tree  = (*Tree)(nil)
	_ tree.Mover = (*Tree)(nil)
	_ tree.Node  = (*node)(nil)
)

// Tree implements tree.Tree and tree.Mover over an IMAP connection.
//
// The IMAP protocol is not safe for concurrent commands on one
// connection, and mailsort drives the tree strictly sequentially; a
// mutex serializes commands as a guard for other callers.
type Tree struct {
	address string
	opts    *options

	mu        sync.Mutex
	client    *imapclient.Client
	delim     string
	selected  string // currently selected mailbox, for Move
	connected bool
}

type node struct {
	t       *Tree
	mailbox string // full mailbox name, delimiter-joined
	attrs   []imap.MailboxAttr
}

// New creates an IMAP tree for the given server address (host:port).
// Call Connect() to dial and authenticate.
func New(address string, opts ...Option) *Tree {
	return &Tree{
		address: address,
		opts:    newOptions(opts...),
	}
}

// Connect dials the server over TLS, authenticates, and discovers the
// hierarchy delimiter. Transient dial failures are retried with backoff.
func (t *Tree) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return tree.ErrAlreadyConnected
	}

	client, err := retry.DoWithResult(ctx, t.opts.retryCfg, func(ctx context.Context) (*imapclient.Client, error) {
		c, dialErr := imapclient.DialTLS(t.address, &imapclient.Options{TLSConfig: t.opts.tlsConfig})
		if dialErr != nil {
			return nil, dialErr
		}
		if t.opts.username != "" {
			if loginErr := c.Login(t.opts.username, t.opts.password).Wait(); loginErr != nil {
				c.Close()
				return nil, fmt.Errorf("imap login: %w", loginErr)
			}
		}
		return c, nil
	})
	if err != nil {
		return fmt.Errorf("imap dial %s: %w", t.address, err)
	}

	t.client = client
	t.delim = t.discoverDelim()
	t.connected = true
	t.opts.logger.Info("connected to IMAP server", "address", t.address, "delimiter", t.delim)
	return nil
}

// discoverDelim asks the server for the hierarchy delimiter via a LIST of
// the root mailbox. Falls back to "/". Caller holds t.mu.
func (t *Tree) discoverDelim() string {
	data, err := t.client.List("", t.opts.root, nil).Collect()
	if err == nil {
		for _, d := range data {
			if d.Delim != 0 {
				return string(d.Delim)
			}
		}
	}
	return "/"
}

// Close logs out and closes the connection.
func (t *Tree) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	t.connected = false
	t.selected = ""

	if err := t.client.Logout().Wait(); err != nil {
		// The server may have dropped the connection already.
		t.opts.logger.Debug("imap logout failed", "error", err)
	}
	return t.client.Close()
}

// Root returns the configured root mailbox as a tree node.
func (t *Tree) Root(_ context.Context) (tree.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, tree.ErrNotConnected
	}
	return &node{t: t, mailbox: t.opts.root}, nil
}

// Move files the item with the given UID into the target mailbox.
// The source mailbox is selected lazily and kept selected across moves.
func (t *Tree) Move(ctx context.Context, itemID string, target tree.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uid, err := strconv.ParseUint(itemID, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: bad UID %q", tree.ErrItemNotFound, itemID)
	}
	tn, ok := target.(*node)
	if !ok || tn.t != t {
		return tree.ErrNodeNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return tree.ErrNotConnected
	}
	if t.selected != t.opts.source {
		if _, err := t.client.Select(t.opts.source, nil).Wait(); err != nil {
			return fmt.Errorf("select %s: %w", t.opts.source, err)
		}
		t.selected = t.opts.source
	}

	if _, err := t.client.Move(imap.UIDSetNum(imap.UID(uid)), tn.mailbox).Wait(); err != nil {
		return fmt.Errorf("move UID %d to %s: %w", uid, tn.mailbox, err)
	}
	return nil
}

func (n *node) Name() string {
	segs := strings.Split(n.mailbox, n.t.delimOr("/"))
	return segs[len(segs)-1]
}

// CanHoldMail reports false for mailboxes the server marks \Noselect or
// \NonExistent.
func (n *node) CanHoldMail() bool {
	for _, attr := range n.attrs {
		if attr == imap.MailboxAttrNoSelect || attr == imap.MailboxAttrNonExistent {
			return false
		}
	}
	return true
}

// Children lists the immediate sub-mailboxes via LIST with a "%" pattern.
func (n *node) Children(ctx context.Context) ([]tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.t.mu.Lock()
	defer n.t.mu.Unlock()

	if !n.t.connected {
		return nil, tree.ErrNotConnected
	}

	pattern := n.mailbox + n.t.delim + "%"
	data, err := retry.DoWithResult(ctx, n.t.opts.retryCfg, func(context.Context) ([]*imap.ListData, error) {
		return n.t.client.List("", pattern, nil).Collect()
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}

	children := make([]tree.Node, 0, len(data))
	for _, d := range data {
		if d.Mailbox == n.mailbox {
			continue
		}
		children = append(children, &node{t: n.t, mailbox: d.Mailbox, attrs: d.Attrs})
	}
	return children, nil
}

// CreateChild creates a sub-mailbox with the given exact name.
func (n *node) CreateChild(ctx context.Context, name string) (tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || strings.Contains(name, n.t.delimOr("/")) {
		return nil, tree.ErrInvalidName
	}

	n.t.mu.Lock()
	defer n.t.mu.Unlock()

	if !n.t.connected {
		return nil, tree.ErrNotConnected
	}

	mailbox := n.mailbox + n.t.delim + name
	if err := n.t.client.Create(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("create %s: %w", mailbox, err)
	}
	n.t.opts.logger.Info("created mailbox", "mailbox", mailbox)
	return &node{t: n.t, mailbox: mailbox}, nil
}

// delimOr returns the discovered delimiter, or fallback before Connect.
func (t *Tree) delimOr(fallback string) string {
	if t.delim == "" {
		return fallback
	}
	return t.delim
}

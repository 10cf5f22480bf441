// Package memory provides an in-memory tree.Tree implementation for testing.
// The tree is not backed by any mail store - folders and item locations
// live in process memory and are discarded when the tree is released.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/mailsort/tree"
)

// Compile-time checks
var (
	_ tree.Tree  = (*Tree)(nil)
	_ tree.Mover = (*Tree)(nil)
	_ tree.Node  = (*node)(nil)
)

// Tree implements tree.Tree and tree.Mover with in-memory storage.
// Safe for concurrent use. Not suitable for production.
type Tree struct {
	mu        sync.Mutex
	root      *node
	items     map[string]string // item ID -> folder path of current location
	created   int64             // folders created via CreateChild
	connected int32
}

type node struct {
	tree     *Tree
	name     string
	mailable bool
	children []*node
}

// New creates an in-memory tree with a root folder of the given name.
func New(rootName string) *Tree {
	t := &Tree{items: make(map[string]string)}
	t.root = &node{tree: t, name: rootName, mailable: true}
	return t
}

// Connect marks the tree as connected.
func (t *Tree) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.connected, 0, 1) {
		return tree.ErrAlreadyConnected
	}
	return nil
}

// Close marks the tree as disconnected.
func (t *Tree) Close(_ context.Context) error {
	atomic.StoreInt32(&t.connected, 0)
	return nil
}

// Root returns the top-level folder.
func (t *Tree) Root(_ context.Context) (tree.Node, error) {
	if atomic.LoadInt32(&t.connected) == 0 {
		return nil, tree.ErrNotConnected
	}
	return t.root, nil
}

// AddFolder pre-populates a folder at the slash-separated path below the
// root, creating intermediate folders as needed. Pre-populated folders do
// not count toward CreateCount. Returns the leaf node.
func (t *Tree) AddFolder(path string) tree.Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next := cur.findChild(part)
		if next == nil {
			next = &node{tree: t, name: part, mailable: true}
			cur.children = append(cur.children, next)
		}
		cur = next
	}
	return cur
}

// AddForeignFolder pre-populates a folder that cannot hold mail, such as
// a contacts container. Returns the leaf node.
func (t *Tree) AddForeignFolder(path string) tree.Node {
	n := t.AddFolder(path).(*node)
	t.mu.Lock()
	n.mailable = false
	t.mu.Unlock()
	return n
}

// AddItem registers a mail item as currently located in the given folder
// path. The path is informational; Move rewrites it.
func (t *Tree) AddItem(itemID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[itemID] = path
}

// ItemLocation returns the folder path an item was last moved to, and
// whether the item is known to the tree.
func (t *Tree) ItemLocation(itemID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	path, ok := t.items[itemID]
	return path, ok
}

// CreateCount returns the number of folders created through CreateChild.
// Pre-populated folders are not counted.
func (t *Tree) CreateCount() int64 {
	return atomic.LoadInt64(&t.created)
}

// Move files the item into the target folder.
func (t *Tree) Move(_ context.Context, itemID string, target tree.Node) error {
	if atomic.LoadInt32(&t.connected) == 0 {
		return tree.ErrNotConnected
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.items[itemID]; !ok {
		return tree.ErrItemNotFound
	}
	n, ok := target.(*node)
	if !ok || n.tree != t {
		return tree.ErrNodeNotFound
	}
	t.items[itemID] = t.pathOf(n)
	return nil
}

// pathOf returns the slash-joined path of a node. Caller holds t.mu.
func (t *Tree) pathOf(target *node) string {
	var walk func(cur *node, acc []string) []string
	walk = func(cur *node, acc []string) []string {
		acc = append(acc, cur.name)
		if cur == target {
			return acc
		}
		for _, c := range cur.children {
			if found := walk(c, acc); found != nil {
				return found
			}
		}
		return nil
	}
	if segs := walk(t.root, nil); segs != nil {
		return strings.Join(segs, "/")
	}
	return target.name
}

func (n *node) Name() string { return n.name }

func (n *node) CanHoldMail() bool {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.mailable
}

func (n *node) Children(_ context.Context) ([]tree.Node, error) {
	if atomic.LoadInt32(&n.tree.connected) == 0 {
		return nil, tree.ErrNotConnected
	}
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	out := make([]tree.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out, nil
}

func (n *node) CreateChild(_ context.Context, name string) (tree.Node, error) {
	if atomic.LoadInt32(&n.tree.connected) == 0 {
		return nil, tree.ErrNotConnected
	}
	if name == "" || strings.Contains(name, "/") {
		return nil, tree.ErrInvalidName
	}

	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if existing := n.findChild(name); existing != nil {
		return existing, nil
	}
	child := &node{tree: n.tree, name: name, mailable: true}
	n.children = append(n.children, child)
	atomic.AddInt64(&n.tree.created, 1)
	return child, nil
}

// findChild returns the first child with the exact name. Caller holds mu.
func (n *node) findChild(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

package mailsort

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rbaliyan/mailsort/tree"
)

// Cache maps canonical folder keys to the exact paths of folders known to
// exist. The resolver consults it to reuse existing folders whose casing or
// accents differ from an oracle suggestion, and to skip walks for paths it
// has already resolved. Safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{paths: make(map[string]string)}
}

// maxTreeDepth bounds Rebuild traversal. Visited-node tracking catches
// cycles only when a provider returns the same node value on every listing;
// providers that allocate fresh nodes per listing are caught here instead.
const maxTreeDepth = 128

// Rebuild replaces the cache contents with every folder reachable from
// root, including root itself. Each entry maps the canonical key of the
// full path to the path with its stored casing. Traversal tolerates cycles
// in misbehaving providers by tracking visited nodes and bounding depth.
func (c *Cache) Rebuild(ctx context.Context, root tree.Node) error {
	type frame struct {
		node  tree.Node
		path  string
		depth int
	}
	paths := make(map[string]string)
	visited := make(map[tree.Node]struct{})
	stack := []frame{{node: root, path: root.Name()}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[f.node]; ok {
			continue
		}
		visited[f.node] = struct{}{}
		if f.depth > maxTreeDepth {
			return fmt.Errorf("mailsort: folder tree deeper than %d at %q", maxTreeDepth, f.path)
		}
		paths[CanonicalKey(f.path)] = f.path
		children, err := f.node.Children(ctx)
		if err != nil {
			return fmt.Errorf("mailsort: list %q: %w", f.path, err)
		}
		for _, child := range children {
			stack = append(stack, frame{node: child, path: f.path + "/" + child.Name(), depth: f.depth + 1})
		}
	}
	c.mu.Lock()
	c.paths = paths
	c.mu.Unlock()
	return nil
}

// Lookup returns the stored path for the canonical key of path.
func (c *Cache) Lookup(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored, ok := c.paths[CanonicalKey(path)]
	return stored, ok
}

// Record stores path under its canonical key, overwriting any prior entry.
func (c *Cache) Record(path string) {
	c.mu.Lock()
	c.paths[CanonicalKey(path)] = path
	c.mu.Unlock()
}

// Len reports the number of cached folders.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.paths)
}

// Paths returns the cached folder paths sorted lexicographically.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.paths))
	for _, p := range c.paths {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

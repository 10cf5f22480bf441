package mailsort

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbaliyan/mailsort/tree"
)

// ResolveInfo describes how a destination was reached.
type ResolveInfo struct {
	// Path is the path of the returned node, which may differ from the
	// requested path after cache substitution or a creation-denied
	// fallback.
	Path string

	// Created counts folders created during this resolution.
	Created int

	// CacheHit reports whether the requested path was substituted from
	// the cache.
	CacheHit bool

	// CreationDenied reports that the path was missing, creation is
	// disabled, and the fallback was resolved instead.
	CreationDenied bool
}

// Resolver walks validated paths down the folder tree, creating missing
// segments when permitted and recording every folder it passes in the
// cache.
type Resolver struct {
	cache         *Cache
	fallback      string
	createFolders bool
}

// NewResolver builds a resolver over cache. fallback names the folder under
// the root used when a path is missing and createFolders is false.
func NewResolver(cache *Cache, fallback string, createFolders bool) *Resolver {
	return &Resolver{cache: cache, fallback: fallback, createFolders: createFolders}
}

// Resolve walks path from root and returns the destination node. path must
// be rooted at root's name, as produced by Validator.Validate. Cached
// casing wins over the suggestion's casing; past the cache, segments match
// children by exact name, so an equivalent spelling reuses an existing
// folder only when the whole path is cached. Missing segments are created
// when permitted, and each folder passed on the way down is recorded in
// the cache under its cumulative path.
func (r *Resolver) Resolve(ctx context.Context, root tree.Node, path string) (tree.Node, *ResolveInfo, error) {
	info := &ResolveInfo{Path: path}
	if stored, ok := r.cache.Lookup(path); ok && stored != path {
		info.Path = stored
		info.CacheHit = true
	} else if ok {
		info.CacheHit = true
	}

	parts := strings.Split(info.Path, "/")
	node := root
	// The first segment is the root by contract; record the tree's own
	// casing, not the suggestion's.
	walked := root.Name()
	r.cache.Record(walked)
	for _, name := range parts[1:] {
		if name == "" {
			continue
		}
		child, err := findChild(ctx, node, name)
		if err != nil {
			return nil, nil, fmt.Errorf("mailsort: resolve %q: %w", info.Path, err)
		}
		if child == nil {
			if !r.createFolders {
				return r.resolveFallback(ctx, root, info)
			}
			child, err = node.CreateChild(ctx, name)
			if err != nil {
				return nil, nil, fmt.Errorf("mailsort: create %q under %q: %w", name, walked, err)
			}
			info.Created++
		}
		node = child
		walked = walked + "/" + child.Name()
		r.cache.Record(walked)
	}
	info.Path = walked
	return node, info, nil
}

// resolveFallback resolves the fallback folder under root, or root itself
// when the fallback folder does not exist either.
func (r *Resolver) resolveFallback(ctx context.Context, root tree.Node, info *ResolveInfo) (tree.Node, *ResolveInfo, error) {
	info.CreationDenied = true
	child, err := findChild(ctx, root, r.fallback)
	if err != nil {
		return nil, nil, fmt.Errorf("mailsort: resolve fallback %q: %w", r.fallback, err)
	}
	if child == nil {
		info.Path = root.Name()
		return root, info, nil
	}
	info.Path = root.Name() + "/" + child.Name()
	r.cache.Record(info.Path)
	return child, info, nil
}

// findChild returns the first immediate child of node named exactly name,
// or nil when none is.
func findChild(ctx context.Context, node tree.Node, name string) (tree.Node, error) {
	children, err := node.Children(ctx)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Name() == name {
			return child, nil
		}
	}
	return nil, nil
}

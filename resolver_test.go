package mailsort

import (
	"context"
	"testing"

	"github.com/rbaliyan/mailsort/tree"
	"github.com/rbaliyan/mailsort/tree/memory"
)

func setupResolver(t *testing.T, createFolders bool, folders ...string) (*Resolver, *memory.Tree, tree.Node) {
	t.Helper()
	ctx := context.Background()
	tr := buildTree(t, folders...)
	root, err := tr.Root(ctx)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	cache := NewCache()
	if err := cache.Rebuild(ctx, root); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return NewResolver(cache, "Unsorted", createFolders), tr, root
}

func TestResolveExisting(t *testing.T) {
	ctx := context.Background()
	r, tr, root := setupResolver(t, true, "Invoices/2024")

	node, info, err := r.Resolve(ctx, root, "Inbox/Invoices/2024")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.Name() != "2024" {
		t.Errorf("expected node 2024, got %q", node.Name())
	}
	if info.Created != 0 {
		t.Errorf("expected no creations, got %d", info.Created)
	}
	if tr.CreateCount() != 0 {
		t.Errorf("tree saw %d creations", tr.CreateCount())
	}
}

func TestResolveCreatesMissing(t *testing.T) {
	ctx := context.Background()
	r, tr, root := setupResolver(t, true, "Invoices")

	node, info, err := r.Resolve(ctx, root, "Inbox/Invoices/2024/March")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.Name() != "March" {
		t.Errorf("expected node March, got %q", node.Name())
	}
	if info.Created != 2 {
		t.Errorf("expected 2 creations, got %d", info.Created)
	}
	if tr.CreateCount() != 2 {
		t.Errorf("tree saw %d creations, want 2", tr.CreateCount())
	}

	// Resolving the same path again reuses what was just created.
	_, info, err = r.Resolve(ctx, root, "Inbox/Invoices/2024/March")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if info.Created != 0 || tr.CreateCount() != 2 {
		t.Errorf("second resolve created folders: info=%d tree=%d", info.Created, tr.CreateCount())
	}
}

func TestResolveCachedCasingWins(t *testing.T) {
	ctx := context.Background()
	r, tr, root := setupResolver(t, true, "Financiën")

	// A suggestion differing only in case and accents resolves to the
	// existing folder without creating anything.
	node, info, err := r.Resolve(ctx, root, "Inbox/financien")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !info.CacheHit {
		t.Error("expected cache substitution")
	}
	if node.Name() != "Financiën" {
		t.Errorf("expected existing folder, got %q", node.Name())
	}
	if tr.CreateCount() != 0 {
		t.Errorf("tree saw %d creations", tr.CreateCount())
	}
	if info.Path != "Inbox/Financiën" {
		t.Errorf("expected stored path, got %q", info.Path)
	}
}

func TestResolveWalkMatchesExactNames(t *testing.T) {
	ctx := context.Background()
	r, tr, root := setupResolver(t, true, "Work")

	// Without a whole-path cache entry, segments match children by exact
	// name: a spelling that differs only in case is a different folder.
	r.cache = NewCache()
	r.cache.Record("Inbox")
	node, info, err := r.Resolve(ctx, root, "Inbox/WORK/New")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.Name() != "New" {
		t.Errorf("expected New, got %q", node.Name())
	}
	if info.Created != 2 {
		t.Errorf("expected 2 creations, got %d", info.Created)
	}
	if tr.CreateCount() != 2 {
		t.Errorf("tree saw %d creations, want 2", tr.CreateCount())
	}
	if info.Path != "Inbox/WORK/New" {
		t.Errorf("expected Inbox/WORK/New, got %q", info.Path)
	}
}

func TestResolveRecordsRootCasing(t *testing.T) {
	ctx := context.Background()
	r, tr, root := setupResolver(t, true, "Work")

	// An uncached suggestion spelling the root differently still walks and
	// records the tree's own root name.
	r.cache = NewCache()
	node, info, err := r.Resolve(ctx, root, "INBOX/Work")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.Name() != "Work" {
		t.Errorf("expected Work, got %q", node.Name())
	}
	if tr.CreateCount() != 0 {
		t.Errorf("tree saw %d creations", tr.CreateCount())
	}
	if info.Path != "Inbox/Work" {
		t.Errorf("expected Inbox/Work, got %q", info.Path)
	}
	if stored, ok := r.cache.Lookup("inbox"); !ok || stored != "Inbox" {
		t.Errorf("expected root cached as Inbox, got %q (ok=%v)", stored, ok)
	}
}

func TestResolveCreationDenied(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to unsorted folder", func(t *testing.T) {
		r, tr, root := setupResolver(t, false, "Unsorted")
		node, info, err := r.Resolve(ctx, root, "Inbox/Brand/New")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !info.CreationDenied {
			t.Error("expected CreationDenied")
		}
		if node.Name() != "Unsorted" {
			t.Errorf("expected Unsorted, got %q", node.Name())
		}
		if info.Path != "Inbox/Unsorted" {
			t.Errorf("expected Inbox/Unsorted, got %q", info.Path)
		}
		if tr.CreateCount() != 0 {
			t.Errorf("tree saw %d creations", tr.CreateCount())
		}
	})

	t.Run("falls back to root without unsorted folder", func(t *testing.T) {
		r, _, root := setupResolver(t, false)
		node, info, err := r.Resolve(ctx, root, "Inbox/Brand/New")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !info.CreationDenied {
			t.Error("expected CreationDenied")
		}
		if node.Name() != "Inbox" {
			t.Errorf("expected root, got %q", node.Name())
		}
	})
}

func TestResolveRecordsWalkedFolders(t *testing.T) {
	ctx := context.Background()
	r, _, root := setupResolver(t, true)

	_, _, err := r.Resolve(ctx, root, "Inbox/Orders/Invoices")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Every folder passed on the way down is cached under its full path.
	for _, path := range []string{"Inbox", "Inbox/Orders", "Inbox/Orders/Invoices"} {
		if _, ok := r.cache.Lookup(path); !ok {
			t.Errorf("expected %q in cache", path)
		}
	}
	if _, ok := r.cache.Lookup("Orders"); ok {
		t.Error("bare segment must not be cached")
	}
}

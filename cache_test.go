package mailsort

import (
	"context"
	"strings"
	"testing"

	"github.com/rbaliyan/mailsort/tree/memory"
)

func buildTree(t *testing.T, folders ...string) *memory.Tree {
	t.Helper()
	tr := memory.New("Inbox")
	for _, f := range folders {
		tr.AddFolder(f)
	}
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect tree: %v", err)
	}
	return tr
}

func TestCacheRebuild(t *testing.T) {
	ctx := context.Background()
	tr := buildTree(t, "Invoices/2024", "Work", "Café")
	root, err := tr.Root(ctx)
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	c := NewCache()
	if err := c.Rebuild(ctx, root); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	t.Run("records every reachable folder", func(t *testing.T) {
		want := []string{
			"Inbox",
			"Inbox/Café",
			"Inbox/Invoices",
			"Inbox/Invoices/2024",
			"Inbox/Work",
		}
		got := c.Paths()
		if len(got) != len(want) {
			t.Fatalf("expected %d folders, got %d: %v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("paths[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("lookup ignores case and accents", func(t *testing.T) {
		stored, ok := c.Lookup("inbox/cafe")
		if !ok {
			t.Fatal("expected cache hit")
		}
		if stored != "Inbox/Café" {
			t.Errorf("expected stored casing, got %q", stored)
		}
	})

	t.Run("miss on unknown path", func(t *testing.T) {
		if _, ok := c.Lookup("Inbox/Nope"); ok {
			t.Error("unexpected cache hit")
		}
	})

	t.Run("rebuild replaces stale entries", func(t *testing.T) {
		c.Record("Inbox/Stale")
		if err := c.Rebuild(ctx, root); err != nil {
			t.Fatalf("rebuild: %v", err)
		}
		if _, ok := c.Lookup("Inbox/Stale"); ok {
			t.Error("stale entry survived rebuild")
		}
	})
}

func TestCacheRecord(t *testing.T) {
	c := NewCache()

	c.Record("Inbox/Work")
	if stored, ok := c.Lookup("INBOX/WORK"); !ok || stored != "Inbox/Work" {
		t.Errorf("expected Inbox/Work, got %q (hit=%v)", stored, ok)
	}

	// Re-recording the same key overwrites the stored casing.
	c.Record("Inbox/work")
	if stored, _ := c.Lookup("inbox/work"); stored != "Inbox/work" {
		t.Errorf("expected overwritten casing, got %q", stored)
	}

	if c.Len() != 1 {
		t.Errorf("expected single entry, got %d", c.Len())
	}
}

func TestCacheRebuildDepthBound(t *testing.T) {
	ctx := context.Background()
	deep := "a" + strings.Repeat("/a", maxTreeDepth+1)
	tr := buildTree(t, deep)
	root, err := tr.Root(ctx)
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	c := NewCache()
	if err := c.Rebuild(ctx, root); err == nil {
		t.Error("expected depth error")
	}
}

func TestCacheRebuildCancelled(t *testing.T) {
	tr := buildTree(t, "Work")
	root, err := tr.Root(context.Background())
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCache()
	if err := c.Rebuild(ctx, root); err == nil {
		t.Error("expected context error")
	}
}

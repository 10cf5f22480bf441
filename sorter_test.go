package mailsort

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rbaliyan/mailsort/journal"
	journalmem "github.com/rbaliyan/mailsort/journal/memory"
	"github.com/rbaliyan/mailsort/oracle"
	"github.com/rbaliyan/mailsort/oracle/static"
	"github.com/rbaliyan/mailsort/tree"
	treemem "github.com/rbaliyan/mailsort/tree/memory"
)

// treeOnly hides the Mover implementation of the memory tree.
type treeOnly struct {
	tr *treemem.Tree
}

func (t treeOnly) Connect(ctx context.Context) error        { return t.tr.Connect(ctx) }
func (t treeOnly) Close(ctx context.Context) error          { return t.tr.Close(ctx) }
func (t treeOnly) Root(ctx context.Context) (tree.Node, error) { return t.tr.Root(ctx) }

var _ tree.Tree = treeOnly{}

func testClassifier(folder string) oracle.Classifier {
	return oracle.ClassifierFunc(func(_ context.Context, _ oracle.Request) (string, error) {
		return folder, nil
	})
}

func receivedAt(minutesAgo int) time.Time {
	return time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute)
}

func TestNewService(t *testing.T) {
	tr := treemem.New("Inbox")

	t.Run("requires tree", func(t *testing.T) {
		_, err := NewService(WithClassifier(testClassifier("Inbox/Work")))
		if !errors.Is(err, ErrTreeRequired) {
			t.Errorf("expected ErrTreeRequired, got %v", err)
		}
	})

	t.Run("requires classifier", func(t *testing.T) {
		_, err := NewService(WithTree(tr))
		if !errors.Is(err, ErrClassifierRequired) {
			t.Errorf("expected ErrClassifierRequired, got %v", err)
		}
	})

	t.Run("requires mover", func(t *testing.T) {
		_, err := NewService(
			WithTree(treeOnly{tr}),
			WithClassifier(testClassifier("Inbox/Work")),
		)
		if !errors.Is(err, ErrMoverRequired) {
			t.Errorf("expected ErrMoverRequired, got %v", err)
		}
	})

	t.Run("accepts explicit mover", func(t *testing.T) {
		svc, err := NewService(
			WithTree(treeOnly{tr}),
			WithMover(tr),
			WithClassifier(testClassifier("Inbox/Work")),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
	})

	t.Run("discovers mover on tree", func(t *testing.T) {
		svc, err := NewService(
			WithTree(tr),
			WithClassifier(testClassifier("Inbox/Work")),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := treemem.New("Inbox")
	svc, err := NewService(
		WithTree(tr),
		WithClassifier(testClassifier("Inbox/Work")),
		WithJournal(journalmem.New()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.IsConnected() {
		t.Error("new service must not report connected")
	}

	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !svc.IsConnected() {
		t.Error("expected connected")
	}

	// Double connect should fail
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Double close should be safe
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}

	// Operations fail after close
	if _, err := svc.Sort(ctx, Item{ID: "1"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := svc.SortAll(ctx, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := svc.RefreshFolders(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

// sortFixture wires a connected service over an in-memory tree and journal.
type sortFixture struct {
	tree    *treemem.Tree
	journal *journalmem.Journal
	svc     Service
}

func setupSorter(t *testing.T, classifier oracle.Classifier, opts ...Option) *sortFixture {
	t.Helper()
	f := &sortFixture{
		tree:    treemem.New("Inbox"),
		journal: journalmem.New(),
	}
	f.tree.AddFolder("Unsorted")

	all := append([]Option{
		WithTree(f.tree),
		WithClassifier(classifier),
		WithJournal(f.journal),
	}, opts...)

	svc, err := NewService(all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })
	f.svc = svc
	return f
}

func TestSort(t *testing.T) {
	ctx := context.Background()

	t.Run("moves item to suggested folder", func(t *testing.T) {
		f := setupSorter(t, static.New([]static.Rule{
			{SenderDomain: "shop.example", Folder: "Inbox/Orders/Invoices"},
		}, "Inbox/Unsorted"))
		f.tree.AddItem("42", "Inbox")

		outcome, err := f.svc.Sort(ctx, Item{
			ID:          "42",
			Subject:     "Invoice 1001",
			SenderEmail: "billing@shop.example",
			ReceivedAt:  receivedAt(1),
		})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Disposition != DispositionSorted {
			t.Fatalf("expected sorted, got %+v", outcome)
		}
		if outcome.Folder != "Inbox/Orders/Invoices" {
			t.Errorf("expected Inbox/Orders/Invoices, got %q", outcome.Folder)
		}
		if outcome.FoldersCreated != 2 {
			t.Errorf("expected 2 folders created, got %d", outcome.FoldersCreated)
		}
		if loc, _ := f.tree.ItemLocation("42"); loc != "Inbox/Orders/Invoices" {
			t.Errorf("item located at %q", loc)
		}

		entries, err := f.journal.Recent(ctx, 1)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(entries) != 1 || entries[0].Disposition != journal.DispositionSorted {
			t.Errorf("unexpected journal entries: %+v", entries)
		}
	})

	t.Run("rejected suggestion lands in fallback", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Fin..."))
		f.tree.AddItem("7", "Inbox")

		outcome, err := f.svc.Sort(ctx, Item{ID: "7", Subject: "truncated"})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Disposition != DispositionSorted {
			t.Fatalf("expected sorted, got %+v", outcome)
		}
		if outcome.Folder != "Inbox/Unsorted" {
			t.Errorf("expected fallback folder, got %q", outcome.Folder)
		}
	})

	t.Run("empty suggestion lands in fallback", func(t *testing.T) {
		f := setupSorter(t, oracle.ClassifierFunc(func(context.Context, oracle.Request) (string, error) {
			return "", oracle.ErrNoSuggestion
		}))
		f.tree.AddItem("8", "Inbox")

		outcome, err := f.svc.Sort(ctx, Item{ID: "8"})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Folder != "Inbox/Unsorted" {
			t.Errorf("expected fallback folder, got %q", outcome.Folder)
		}
	})

	t.Run("classification failure propagates", func(t *testing.T) {
		cause := fmt.Errorf("%w: connection refused", oracle.ErrRequestFailed)
		f := setupSorter(t, oracle.ClassifierFunc(func(context.Context, oracle.Request) (string, error) {
			return "", cause
		}))
		f.tree.AddItem("9", "Inbox")

		_, err := f.svc.Sort(ctx, Item{ID: "9"})
		if !errors.Is(err, ErrClassification) {
			t.Errorf("expected ErrClassification, got %v", err)
		}
	})

	t.Run("target that cannot hold mail is skipped", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Contacts"))
		f.tree.AddForeignFolder("Contacts")
		f.tree.AddItem("10", "Inbox")
		if err := f.svc.RefreshFolders(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}

		outcome, err := f.svc.Sort(ctx, Item{ID: "10", Subject: "vcard"})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Disposition != DispositionSkipped || outcome.Reason != SkipReasonIncapableTarget {
			t.Errorf("expected incapable-target skip, got %+v", outcome)
		}
		if loc, _ := f.tree.ItemLocation("10"); loc != "Inbox" {
			t.Errorf("item must stay in place, located at %q", loc)
		}
	})

	t.Run("move failure is skipped", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Work"))
		// Item never registered with the tree, so Move fails.
		outcome, err := f.svc.Sort(ctx, Item{ID: "missing"})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Disposition != DispositionSkipped || outcome.Reason != SkipReasonMove {
			t.Errorf("expected move-failed skip, got %+v", outcome)
		}
	})

	t.Run("creation disabled routes to existing fallback", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Brand/New"), WithCreateFolders(false))
		f.tree.AddItem("11", "Inbox")

		outcome, err := f.svc.Sort(ctx, Item{ID: "11"})
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if outcome.Folder != "Inbox/Unsorted" {
			t.Errorf("expected Inbox/Unsorted, got %q", outcome.Folder)
		}
		if f.tree.CreateCount() != 0 {
			t.Errorf("folders were created: %d", f.tree.CreateCount())
		}
	})
}

// vetoPlugin vetoes items whose subject matches.
type vetoPlugin struct {
	subject string
}

func (p *vetoPlugin) Name() string                      { return "veto" }
func (p *vetoPlugin) Init(context.Context) error        { return nil }
func (p *vetoPlugin) Close(context.Context) error       { return nil }
func (p *vetoPlugin) AfterSort(context.Context, Item, Outcome) error { return nil }

func (p *vetoPlugin) BeforeSort(_ context.Context, item Item) error {
	if item.Subject == p.subject {
		return errors.New("vetoed by policy")
	}
	return nil
}

func TestSortHookVeto(t *testing.T) {
	ctx := context.Background()
	f := setupSorter(t, testClassifier("Inbox/Work"),
		WithPlugin(&vetoPlugin{subject: "do not touch"}))
	f.tree.AddItem("20", "Inbox")

	outcome, err := f.svc.Sort(ctx, Item{ID: "20", Subject: "do not touch"})
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if outcome.Disposition != DispositionSkipped || outcome.Reason != SkipReasonVetoed {
		t.Errorf("expected vetoed skip, got %+v", outcome)
	}
	if loc, _ := f.tree.ItemLocation("20"); loc != "Inbox" {
		t.Errorf("vetoed item moved to %q", loc)
	}
}

func TestSortAll(t *testing.T) {
	ctx := context.Background()

	t.Run("processes newest first and contains failures", func(t *testing.T) {
		classifier := oracle.ClassifierFunc(func(_ context.Context, req oracle.Request) (string, error) {
			if req.Subject == "poison" {
				return "", fmt.Errorf("%w: oracle down", oracle.ErrRequestFailed)
			}
			return "Inbox/Work", nil
		})
		f := setupSorter(t, classifier)
		for _, id := range []string{"a", "b", "c"} {
			f.tree.AddItem(id, "Inbox")
		}

		report, err := f.svc.SortAll(ctx, []Item{
			{ID: "a", Subject: "oldest", ReceivedAt: receivedAt(30)},
			{ID: "b", Subject: "poison", ReceivedAt: receivedAt(10)},
			{ID: "c", Subject: "newest", ReceivedAt: receivedAt(1)},
			{ID: "d", Subject: "no timestamp"},
		})
		if err != nil {
			t.Fatalf("sortall: %v", err)
		}
		if report.Sorted != 2 || report.Skipped != 2 {
			t.Errorf("expected 2 sorted / 2 skipped, got %d/%d", report.Sorted, report.Skipped)
		}
		if report.RunID == "" {
			t.Error("expected run ID")
		}

		// The undated item is reported first, then items newest-first.
		order := make([]string, 0, len(report.Outcomes))
		for _, o := range report.Outcomes {
			order = append(order, o.ItemID)
		}
		want := []string{"d", "c", "b", "a"}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("outcome order %v, want %v", order, want)
			}
		}
		if report.Outcomes[0].Reason != SkipReasonNoReceivedTime {
			t.Errorf("expected no-received-time skip, got %+v", report.Outcomes[0])
		}
		if report.Outcomes[2].Reason != SkipReasonClassification {
			t.Errorf("expected classification skip, got %+v", report.Outcomes[2])
		}

		summary, err := f.journal.Summary(ctx, report.RunID)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if summary.Sorted != 2 || summary.Skipped != 2 {
			t.Errorf("journal summary %+v", summary)
		}
	})

	t.Run("run limit caps processing", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Work"), WithRunLimit(2))
		for _, id := range []string{"a", "b", "c"} {
			f.tree.AddItem(id, "Inbox")
		}

		report, err := f.svc.SortAll(ctx, []Item{
			{ID: "a", ReceivedAt: receivedAt(30)},
			{ID: "b", ReceivedAt: receivedAt(20)},
			{ID: "c", ReceivedAt: receivedAt(10)},
		})
		if err != nil {
			t.Fatalf("sortall: %v", err)
		}
		if len(report.Outcomes) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(report.Outcomes))
		}
		// The two newest items are processed; the oldest stays put.
		if report.Outcomes[0].ItemID != "c" || report.Outcomes[1].ItemID != "b" {
			t.Errorf("unexpected outcomes: %+v", report.Outcomes)
		}
		if loc, _ := f.tree.ItemLocation("a"); loc != "Inbox" {
			t.Errorf("oldest item moved to %q", loc)
		}
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		f := setupSorter(t, testClassifier("Inbox/Work"))
		f.tree.AddItem("a", "Inbox")

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.svc.SortAll(cancelled, []Item{{ID: "a", ReceivedAt: receivedAt(1)}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestFolders(t *testing.T) {
	ctx := context.Background()
	f := setupSorter(t, testClassifier("Inbox/Work"))

	folders := f.svc.Folders()
	if len(folders) != 2 || folders[0] != "Inbox" || folders[1] != "Inbox/Unsorted" {
		t.Fatalf("unexpected folders: %v", folders)
	}

	// Folders created outside the service appear after a refresh.
	f.tree.AddFolder("Archive")
	if err := f.svc.RefreshFolders(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	folders = f.svc.Folders()
	if len(folders) != 3 || folders[1] != "Inbox/Archive" {
		t.Fatalf("unexpected folders after refresh: %v", folders)
	}
}

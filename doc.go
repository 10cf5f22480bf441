// Package mailsort routes mail items into a hierarchical folder taxonomy.
//
// A classification oracle (typically a local LLM, see oracle/lmstudio)
// suggests a folder path for each item; mailsort validates the untrusted
// suggestion, reconciles it against a cached view of the real folder
// tree, creates missing folders when permitted, and moves the item -
// falling back to a fixed "Unsorted" folder whenever the suggestion is
// unsafe or policy forbids creating it.
//
// # Basic Usage
//
//	// In-memory tree for testing; tree/imap for a real mail store
//	folders := memory.New("Inbox")
//	folders.AddFolder("Unsorted")
//
//	svc, err := mailsort.NewService(
//	    mailsort.WithTree(folders),
//	    mailsort.WithClassifier(lmstudio.New("http://localhost:1234/v1/completions")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect dials the tree provider and builds the folder cache
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	report, err := svc.SortAll(ctx, items)
//
// # Components
//
//   - CanonicalKey: normalization of folder paths into comparison keys
//   - Validator: deny-list sanitization of oracle suggestions
//   - Cache: canonical key -> real folder path, rebuilt once per run
//   - Resolver: segment walk over the live tree, creating or diverting
//
// # Collaborators
//
// The folder tree is owned by a tree.Tree provider (tree/memory,
// tree/imap). Classification is an oracle.Classifier (oracle/lmstudio,
// oracle/static). Outcomes can be recorded in a journal.Journal
// (journal/memory, journal/postgres, journal/mongo).
//
// # Events
//
// Mailsort provides typed events for routing outcomes. Events use the
// github.com/rbaliyan/event/v3 library which supports multiple
// transports (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisClient or WithEventTransport when
// creating the service. Access per-service events via the Events()
// method:
//
//	events := svc.Events()
//	events.ItemSorted.Subscribe(ctx, handler)
//	events.ItemSkipped.Subscribe(ctx, handler)
//	events.FolderCreated.Subscribe(ctx, handler)
package mailsort

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"school-planner/domain"
)

type stubRemote struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context) (domain.Document, error)
	storeFn func(ctx context.Context, doc domain.Document) error
	stores  []domain.Document
}

func (r *stubRemote) Fetch(ctx context.Context) (domain.Document, error) {
	if r.fetchFn == nil {
		return domain.DefaultDocument(), nil
	}
	return r.fetchFn(ctx)
}

func (r *stubRemote) Store(ctx context.Context, doc domain.Document) error {
	r.mu.Lock()
	r.stores = append(r.stores, doc)
	r.mu.Unlock()
	if r.storeFn != nil {
		return r.storeFn(ctx, doc)
	}
	return nil
}

func (r *stubRemote) storeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *stubRemote) lastStore() domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[len(r.stores)-1]
}

type memCache struct {
	mu      sync.Mutex
	doc     *domain.Document
	saves   int
	cleared int
}

func (c *memCache) Save(doc domain.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := doc.Clone()
	c.doc = &d
	c.saves++
}

func (c *memCache) Load() *domain.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return nil
	}
	d := c.doc.Clone()
	return &d
}

func (c *memCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
}

func newTestSession(t *testing.T, remote *stubRemote, cache *memCache) *Session {
	t.Helper()
	s := NewSession(Config{
		Remote:    remote,
		Cache:     cache,
		Debounce:  25 * time.Millisecond,
		SavedHold: 25 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoadReplacesDocumentAndClearsMarker(t *testing.T) {
	remoteDoc := domain.DefaultDocument()
	remoteDoc, _, err := domain.AddCourse(remoteDoc, "Calc II", "", nil)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	remote := &stubRemote{fetchFn: func(context.Context) (domain.Document, error) {
		return remoteDoc.Clone(), nil
	}}
	cache := &memCache{}
	s := newTestSession(t, remote, cache)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	doc := s.Snapshot()
	if len(doc.Courses) != 1 || doc.Courses[0].Name != "Calc II" {
		t.Fatalf("document not replaced: %#v", doc.Courses)
	}
	if cache.saves != 1 || cache.cleared != 1 {
		t.Fatalf("expected cache save and marker clear, saves=%d cleared=%d", cache.saves, cache.cleared)
	}
	if s.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", s.Status())
	}
}

func TestLoadFailureFallsBackToCachedDocument(t *testing.T) {
	cachedDoc := domain.DefaultDocument()
	cachedDoc, _, err := domain.AddTask(cachedDoc, domain.TaskInput{Title: "cached"}, time.Now())
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	cache := &memCache{}
	cache.Save(cachedDoc)
	remote := &stubRemote{fetchFn: func(context.Context) (domain.Document, error) {
		return domain.Document{}, &SyncError{Op: "load", Err: errors.New("connection refused")}
	}}

	var notified string
	s := NewSession(Config{
		Remote:   remote,
		Cache:    cache,
		Debounce: 25 * time.Millisecond,
		OnNotify: func(msg string) { notified = msg },
	})
	t.Cleanup(s.Close)

	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if s.Status() != StatusOffline {
		t.Fatalf("status = %s, want offline", s.Status())
	}
	if notified == "" {
		t.Fatal("expected a notification")
	}
	doc := s.Snapshot()
	if len(doc.Tasks) != 1 || doc.Tasks[0].Title != "cached" {
		t.Fatalf("expected cached document to survive, got %#v", doc.Tasks)
	}
}

func TestDebounceCoalescesMutationsIntoOneWrite(t *testing.T) {
	remote := &stubRemote{}
	cache := &memCache{}
	s := NewSession(Config{
		Remote:    remote,
		Cache:     cache,
		Debounce:  120 * time.Millisecond,
		SavedHold: 20 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	if _, err := s.AddTask(domain.TaskInput{Title: "first"}); err != nil {
		t.Fatalf("first mutation: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := s.AddTask(domain.TaskInput{Title: "second"}); err != nil {
		t.Fatalf("second mutation: %v", err)
	}

	waitFor(t, "remote write", func() bool { return remote.storeCount() > 0 })
	time.Sleep(150 * time.Millisecond)
	if got := remote.storeCount(); got != 1 {
		t.Fatalf("expected one coalesced write, got %d", got)
	}
	if stored := remote.lastStore(); len(stored.Tasks) != 2 {
		t.Fatalf("write must carry the final document, got %d tasks", len(stored.Tasks))
	}
	waitFor(t, "status to settle", func() bool { return s.Status() == StatusIdle })
}

func TestEveryMutationWritesThroughToCache(t *testing.T) {
	remote := &stubRemote{}
	cache := &memCache{}
	s := newTestSession(t, remote, cache)

	if _, err := s.AddTask(domain.TaskInput{Title: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddTask(domain.TaskInput{Title: "b"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if cache.saves != 2 {
		t.Fatalf("expected synchronous cache writes per mutation, got %d", cache.saves)
	}
}

func TestFailedSaveKeepsDocumentAndReportsError(t *testing.T) {
	remote := &stubRemote{storeFn: func(context.Context, domain.Document) error {
		return &SyncError{Op: "save", Err: errors.New("boom")}
	}}
	cache := &memCache{}
	var mu sync.Mutex
	var notified string
	s := NewSession(Config{
		Remote:   remote,
		Cache:    cache,
		Debounce: 20 * time.Millisecond,
		OnNotify: func(msg string) {
			mu.Lock()
			notified = msg
			mu.Unlock()
		},
	})
	t.Cleanup(s.Close)

	task, err := s.AddTask(domain.TaskInput{Title: "keep me"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	waitFor(t, "error status", func() bool { return s.Status() == StatusError })
	waitFor(t, "notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notified != ""
	})
	doc := s.Snapshot()
	if len(doc.Tasks) != 1 || doc.Tasks[0].ID != task.ID {
		t.Fatalf("document must not roll back, got %#v", doc.Tasks)
	}
	if cache.doc == nil || len(cache.doc.Tasks) != 1 {
		t.Fatal("offline cache must retain the document")
	}
}

func TestValidationErrorLeavesEverythingUntouched(t *testing.T) {
	remote := &stubRemote{}
	cache := &memCache{}
	s := newTestSession(t, remote, cache)

	_, err := s.AddCourse("   ", "", nil)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if cache.saves != 0 {
		t.Fatalf("refused mutation must not touch the cache, saves=%d", cache.saves)
	}
	time.Sleep(80 * time.Millisecond)
	if remote.storeCount() != 0 {
		t.Fatal("refused mutation must not schedule a remote write")
	}
}

func TestMutationsRejectedWhileLoading(t *testing.T) {
	release := make(chan struct{})
	remote := &stubRemote{fetchFn: func(context.Context) (domain.Document, error) {
		<-release
		return domain.DefaultDocument(), nil
	}}
	s := newTestSession(t, remote, &memCache{})

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	waitFor(t, "load to start", func() bool {
		_, err := s.AddTask(domain.TaskInput{Title: "too early"})
		return errors.Is(err, ErrSessionLoading)
	})
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := s.AddTask(domain.TaskInput{Title: "now fine"}); err != nil {
		t.Fatalf("mutation after load: %v", err)
	}
}

func TestImportMalformedJSONChangesNothing(t *testing.T) {
	remote := &stubRemote{}
	cache := &memCache{}
	s := newTestSession(t, remote, cache)

	if _, err := s.AddTask(domain.TaskInput{Title: "existing"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := s.Snapshot()

	err := s.Import([]byte(`{"tasks": [`))
	var perr *domain.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	after := s.Snapshot()
	if len(after.Tasks) != len(before.Tasks) {
		t.Fatalf("import failure must not alter state: %#v", after.Tasks)
	}
}

func TestImportReplacesDocumentWholesale(t *testing.T) {
	remote := &stubRemote{}
	s := newTestSession(t, remote, &memCache{})

	if _, err := s.AddTask(domain.TaskInput{Title: "old"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Import([]byte(`{"tasks":[{"id":"t9","title":"imported"}],"settings":{"weekStartsOn":"x"}}`)); err != nil {
		t.Fatalf("import: %v", err)
	}
	doc := s.Snapshot()
	if len(doc.Tasks) != 1 || doc.Tasks[0].Title != "imported" {
		t.Fatalf("expected wholesale replacement, got %#v", doc.Tasks)
	}
	if doc.Settings.WeekStartsOn != 1 {
		t.Fatalf("import must run through normalization, got %#v", doc.Settings)
	}
}

func TestFlushSavesImmediately(t *testing.T) {
	remote := &stubRemote{}
	s := NewSession(Config{
		Remote:   remote,
		Cache:    &memCache{},
		Debounce: time.Hour, // would never fire on its own
	})
	t.Cleanup(s.Close)

	if _, err := s.AddTask(domain.TaskInput{Title: "urgent"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if remote.storeCount() != 1 {
		t.Fatalf("expected one immediate write, got %d", remote.storeCount())
	}
}

package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/api/internal/logging"
	"taskboard/api/internal/store"
)

type fakeBackend struct {
	healthy  bool
	searchFn func(q Query) ([]Result, int, error)
	indexed  chan []TaskRecord
	deleted  chan []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		healthy: true,
		indexed: make(chan []TaskRecord, 4),
		deleted: make(chan []string, 4),
	}
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(_ context.Context, q Query) ([]Result, int, error) {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return nil, 0, nil
}

func (f *fakeBackend) IndexTasks(records []TaskRecord) error {
	f.indexed <- records
	return nil
}

func (f *fakeBackend) DeleteTasks(ids []string) error {
	f.deleted <- ids
	return nil
}

func seededMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	for _, task := range []store.Task{
		{ID: "t1", OwnerID: "u1", Name: "Buy milk", Description: "semi-skimmed", Priority: store.PriorityLow},
		{ID: "t2", OwnerID: "u1", Name: "Call plumber", Description: "about the MILK pipe", Priority: store.PriorityHigh, Order: 1},
		{ID: "t3", OwnerID: "u2", Name: "Milk the cow", Priority: store.PriorityMedium},
	} {
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask(%s) error = %v", task.ID, err)
		}
	}
	return s
}

func TestStoreSearchIsOwnerScopedAndCaseInsensitive(t *testing.T) {
	searcher := NewStoreSearch(seededMemoryStore(t))

	results, total, err := searcher.Search(context.Background(), Query{Text: "milk", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Search() total = %d results = %+v, want 2", total, results)
	}
	if results[0].ID != "t1" || results[1].ID != "t2" {
		t.Fatalf("unexpected result order: %s, %s", results[0].ID, results[1].ID)
	}
}

func TestStoreSearchPaginates(t *testing.T) {
	searcher := NewStoreSearch(seededMemoryStore(t))

	results, total, err := searcher.Search(context.Background(), Query{Text: "milk", OwnerID: "u1", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 1 || results[0].ID != "t2" {
		t.Fatalf("page = %+v total = %d", results, total)
	}

	results, _, err = searcher.Search(context.Background(), Query{Text: "milk", OwnerID: "u1", Offset: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("offset past end returned %d results", len(results))
	}
}

func TestServiceFallsBackWhenPrimaryFails(t *testing.T) {
	primary := newFakeBackend()
	primary.searchFn = func(Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}
	svc := NewService(primary, NewStoreSearch(seededMemoryStore(t)), logging.Discard())

	resp := svc.Search(context.Background(), Query{Text: "milk", OwnerID: "u2"})
	if resp.Total != 1 || resp.Results[0].ID != "t3" {
		t.Fatalf("fallback response = %+v", resp)
	}
}

func TestServiceUsesHealthyPrimary(t *testing.T) {
	primary := newFakeBackend()
	primary.searchFn = func(q Query) ([]Result, int, error) {
		if q.OwnerID != "u1" {
			t.Errorf("owner filter not forwarded: %+v", q)
		}
		return []Result{{ID: "from-index"}}, 1, nil
	}
	svc := NewService(primary, NewStoreSearch(seededMemoryStore(t)), logging.Discard())

	resp := svc.Search(context.Background(), Query{Text: " milk ", OwnerID: "u1"})
	if resp.Query != "milk" || len(resp.Results) != 1 || resp.Results[0].ID != "from-index" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestServiceBlankQueryReturnsEmpty(t *testing.T) {
	svc := NewService(nil, NewStoreSearch(seededMemoryStore(t)), logging.Discard())
	resp := svc.Search(context.Background(), Query{Text: "   ", OwnerID: "u1"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("blank query response = %+v", resp)
	}
}

func TestServiceIndexesInBackground(t *testing.T) {
	primary := newFakeBackend()
	svc := NewService(primary, nil, logging.Discard())

	svc.IndexTask(store.Task{ID: "t1", OwnerID: "u1", Name: "Buy milk", Priority: store.PriorityHigh})
	select {
	case records := <-primary.indexed:
		if len(records) != 1 || records[0].OwnerID != "u1" || records[0].Priority != "High" {
			t.Fatalf("indexed records = %+v", records)
		}
	case <-time.After(time.Second):
		t.Fatal("task was not indexed")
	}

	svc.DeleteTasks("t1", "t2")
	select {
	case ids := <-primary.deleted:
		if len(ids) != 2 {
			t.Fatalf("deleted ids = %v", ids)
		}
	case <-time.After(time.Second):
		t.Fatal("tasks were not deleted from index")
	}
}

func TestServiceSkipsIndexingWhenPrimaryUnhealthy(t *testing.T) {
	primary := newFakeBackend()
	primary.healthy = false
	svc := NewService(primary, nil, logging.Discard())

	svc.IndexTask(store.Task{ID: "t1"})
	select {
	case <-primary.indexed:
		t.Fatal("unhealthy primary should not be indexed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike() = %q", got)
	}
}

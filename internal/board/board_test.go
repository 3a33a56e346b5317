package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskboard/api/internal/client"
	"taskboard/api/internal/logging"
)

type fakeAPI struct {
	listFn    func(ctx context.Context, projectID string) ([]client.Task, error)
	createFn  func(ctx context.Context, in client.NewTask) (client.Task, error)
	updateFn  func(ctx context.Context, taskID string, patch client.TaskPatch) (client.Task, error)
	deleteFn  func(ctx context.Context, taskID string) error
	reorderFn func(ctx context.Context, updates []client.OrderUpdate) (client.OrderResult, error)

	listCalls    atomic.Int32
	createCalls  atomic.Int32
	reorderCalls atomic.Int32
}

func (f *fakeAPI) ListTasks(ctx context.Context, projectID string) ([]client.Task, error) {
	f.listCalls.Add(1)
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, projectID)
}

func (f *fakeAPI) CreateTask(ctx context.Context, in client.NewTask) (client.Task, error) {
	f.createCalls.Add(1)
	if f.createFn == nil {
		return client.Task{ID: "created", Name: in.Name, Priority: "Medium"}, nil
	}
	return f.createFn(ctx, in)
}

func (f *fakeAPI) UpdateTask(ctx context.Context, taskID string, patch client.TaskPatch) (client.Task, error) {
	if f.updateFn == nil {
		return client.Task{}, errors.New("update not expected")
	}
	return f.updateFn(ctx, taskID, patch)
}

func (f *fakeAPI) DeleteTask(ctx context.Context, taskID string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, taskID)
}

func (f *fakeAPI) ReorderTasks(ctx context.Context, updates []client.OrderUpdate) (client.OrderResult, error) {
	f.reorderCalls.Add(1)
	if f.reorderFn == nil {
		return client.OrderResult{OK: true, Updated: len(updates)}, nil
	}
	return f.reorderFn(ctx, updates)
}

func threeTasks() []client.Task {
	return []client.Task{
		{ID: "a", Name: "A", Priority: "Medium", Order: 0},
		{ID: "b", Name: "B", Priority: "Medium", Order: 1},
		{ID: "c", Name: "C", Priority: "Medium", Order: 2},
	}
}

func newTestBoard(api API) *Board {
	b := New(api, "project-1", logging.Discard(), WithDebounce(20*time.Millisecond))
	return b
}

func ids(tasks []client.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func equalIDs(got []client.Task, want ...string) bool {
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		return false
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRefreshEmptyShowsPlaceholders(t *testing.T) {
	board := newTestBoard(&fakeAPI{})
	defer board.Close()

	if err := board.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if board.State() != Empty {
		t.Fatalf("expected empty state, got %s", board.State())
	}
	rows := board.Tasks()
	if len(rows) != placeholderCount {
		t.Fatalf("expected %d placeholders, got %d", placeholderCount, len(rows))
	}
	for _, row := range rows {
		if !IsPlaceholder(row.ID) || row.Name != "" {
			t.Fatalf("unexpected placeholder %+v", row)
		}
	}
}

func TestRefreshPopulatedAndLoading(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{listFn: func(ctx context.Context, projectID string) ([]client.Task, error) {
		if projectID != "project-1" {
			t.Errorf("unexpected project %q", projectID)
		}
		<-release
		return threeTasks(), nil
	}}
	board := newTestBoard(api)
	defer board.Close()

	done := make(chan error, 1)
	go func() { done <- board.Refresh(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for board.State() != Loading {
		if time.Now().After(deadline) {
			t.Fatal("board never entered loading state")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if board.State() != Populated || !equalIDs(board.Tasks(), "a", "b", "c") {
		t.Fatalf("unexpected board %s %v", board.State(), ids(board.Tasks()))
	}
}

func TestRefreshFailureRestoresState(t *testing.T) {
	api := &fakeAPI{listFn: func(context.Context, string) ([]client.Task, error) {
		return nil, errors.New("offline")
	}}
	board := newTestBoard(api)
	defer board.Close()

	if err := board.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if board.State() != Empty {
		t.Fatalf("expected empty state after failure, got %s", board.State())
	}
}

func TestPlaceholderEditsStayLocalUntilNamed(t *testing.T) {
	api := &fakeAPI{}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	if _, err := board.SetCompleted(context.Background(), "mock-1", true); err != nil {
		t.Fatalf("complete placeholder: %v", err)
	}
	if _, err := board.Rename(context.Background(), "mock-1", "   "); err != nil {
		t.Fatalf("blank rename: %v", err)
	}
	if api.createCalls.Load() != 0 {
		t.Fatal("placeholder without a name must not be created")
	}

	// A refresh that still finds nothing keeps the locally edited rows.
	_ = board.Refresh(context.Background())
	if !board.Tasks()[0].Completed {
		t.Fatal("refresh discarded placeholder edits")
	}

	var sent client.NewTask
	api.createFn = func(_ context.Context, in client.NewTask) (client.Task, error) {
		sent = in
		return client.Task{ID: "real-1", Name: in.Name, Priority: in.Priority}, nil
	}
	if err := board.BeginEdit("mock-1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	created, err := board.Rename(context.Background(), "mock-1", " Write report ")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if created.ID != "real-1" || sent.Name != "Write report" || sent.Project != "project-1" {
		t.Fatalf("unexpected promotion %+v from %+v", created, sent)
	}
	if !equalIDs(board.Tasks(), "real-1", "mock-2", "mock-3") {
		t.Fatalf("unexpected rows %v", ids(board.Tasks()))
	}
	if editing, ok := board.Editing(); !ok || editing != "real-1" {
		t.Fatalf("editing should follow the promoted task, got %q", editing)
	}
	if board.State() != Populated {
		t.Fatalf("expected populated, got %s", board.State())
	}
}

func TestAddOrdersAfterRealTasksOnly(t *testing.T) {
	var sent []int
	api := &fakeAPI{createFn: func(_ context.Context, in client.NewTask) (client.Task, error) {
		sent = append(sent, *in.Order)
		return client.Task{ID: fmt.Sprintf("real-%d", len(sent)), Name: in.Name, Order: *in.Order}, nil
	}}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	if _, err := board.Add(context.Background(), "First"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := board.Add(context.Background(), "Second"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(sent) != 2 || sent[0] != 0 || sent[1] != 1 {
		t.Fatalf("unexpected orders %v", sent)
	}
	if !equalIDs(board.Tasks(), "real-1", "real-2") {
		t.Fatalf("placeholders not replaced: %v", ids(board.Tasks()))
	}
	if _, err := board.Add(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestOptimisticUpdateRollsBack(t *testing.T) {
	api := &fakeAPI{listFn: func(context.Context, string) ([]client.Task, error) { return threeTasks(), nil }}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	seen := make(chan bool, 1)
	api.updateFn = func(_ context.Context, taskID string, patch client.TaskPatch) (client.Task, error) {
		seen <- board.Tasks()[1].Completed
		return client.Task{}, errors.New("rejected")
	}
	if _, err := board.SetCompleted(context.Background(), "b", true); err == nil {
		t.Fatal("expected error")
	}
	if !<-seen {
		t.Fatal("change should be visible before the server answers")
	}
	if board.Tasks()[1].Completed {
		t.Fatal("failed update was not rolled back")
	}

	api.updateFn = func(_ context.Context, taskID string, patch client.TaskPatch) (client.Task, error) {
		return client.Task{ID: taskID, Name: patch["name"].(string), Priority: "High"}, nil
	}
	updated, err := board.Rename(context.Background(), "b", "Renamed")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if row := board.Tasks()[1]; row.Name != "Renamed" || row.Priority != "High" || updated.Priority != "High" {
		t.Fatalf("server row not adopted: %+v", row)
	}
}

func TestDeleteRollsBackAndPlaceholdersReturn(t *testing.T) {
	api := &fakeAPI{listFn: func(context.Context, string) ([]client.Task, error) {
		return threeTasks()[:1], nil
	}}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	api.deleteFn = func(context.Context, string) error { return errors.New("denied") }
	if err := board.Delete(context.Background(), "a"); err == nil {
		t.Fatal("expected error")
	}
	if !equalIDs(board.Tasks(), "a") {
		t.Fatalf("delete not rolled back: %v", ids(board.Tasks()))
	}

	api.deleteFn = nil
	if err := board.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if board.State() != Empty || len(board.Tasks()) != placeholderCount {
		t.Fatalf("expected placeholders after last delete, got %s %v", board.State(), ids(board.Tasks()))
	}
	if err := board.Delete(context.Background(), "mock-2"); err != nil {
		t.Fatalf("delete placeholder: %v", err)
	}
	if err := board.Delete(context.Background(), "missing"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestDragIsLocalAndDropSendsFullReindex(t *testing.T) {
	var sent []client.OrderUpdate
	api := &fakeAPI{
		listFn: func(context.Context, string) ([]client.Task, error) { return threeTasks(), nil },
		reorderFn: func(_ context.Context, updates []client.OrderUpdate) (client.OrderResult, error) {
			sent = updates
			return client.OrderResult{OK: true, Updated: len(updates)}, nil
		},
	}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	// Drag A over B, then over C.
	if err := board.Move(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := board.Move(1, 2); err != nil {
		t.Fatal(err)
	}
	if api.reorderCalls.Load() != 0 {
		t.Fatal("hover must not touch the network")
	}
	if !equalIDs(board.Tasks(), "b", "c", "a") {
		t.Fatalf("unexpected order %v", ids(board.Tasks()))
	}

	if err := board.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if api.reorderCalls.Load() != 1 {
		t.Fatalf("expected one reorder request, got %d", api.reorderCalls.Load())
	}
	want := []client.OrderUpdate{{ID: "b", Order: 0}, {ID: "c", Order: 1}, {ID: "a", Order: 2}}
	if len(sent) != len(want) {
		t.Fatalf("unexpected updates %+v", sent)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("unexpected updates %+v", sent)
		}
	}
	if board.Tasks()[2].Order != 2 {
		t.Fatal("local order not reindexed")
	}
}

func TestDropFailureRestoresPreDragOrder(t *testing.T) {
	api := &fakeAPI{
		listFn: func(context.Context, string) ([]client.Task, error) { return threeTasks(), nil },
		reorderFn: func(context.Context, []client.OrderUpdate) (client.OrderResult, error) {
			return client.OrderResult{}, errors.New("conflict")
		},
	}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	_ = board.Move(2, 0)
	if err := board.Drop(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !equalIDs(board.Tasks(), "a", "b", "c") {
		t.Fatalf("order not restored: %v", ids(board.Tasks()))
	}

	if err := board.Move(0, 5); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestDropSkipsPlaceholders(t *testing.T) {
	api := &fakeAPI{}
	board := newTestBoard(api)
	defer board.Close()
	_ = board.Refresh(context.Background())

	_ = board.Move(0, 2)
	if err := board.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if api.reorderCalls.Load() != 0 {
		t.Fatal("placeholders must never be sent to the server")
	}
}

func TestRequestRefreshCoalesces(t *testing.T) {
	var mu sync.Mutex
	fetched := 0
	api := &fakeAPI{listFn: func(context.Context, string) ([]client.Task, error) {
		mu.Lock()
		fetched++
		mu.Unlock()
		return threeTasks(), nil
	}}
	board := newTestBoard(api)
	defer board.Close()

	for i := 0; i < 5; i++ {
		board.RequestRefresh()
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for board.State() != Populated {
		if time.Now().After(deadline) {
			t.Fatal("debounced refresh never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fetched != 1 {
		t.Fatalf("expected one fetch, got %d", fetched)
	}
}

func TestCloseCancelsPendingRefresh(t *testing.T) {
	api := &fakeAPI{}
	board := newTestBoard(api)

	board.RequestRefresh()
	board.Close()
	time.Sleep(60 * time.Millisecond)

	if api.listCalls.Load() != 0 {
		t.Fatal("closed board must not fetch")
	}
	if err := board.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// Package board keeps a client-side view of one project's task list and
// reconciles local edits with the API.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"taskboard/api/internal/client"
)

const (
	placeholderPrefix = "mock-"
	placeholderCount  = 3

	DefaultDebounce = 300 * time.Millisecond
)

var (
	ErrUnknownTask = errors.New("task not on board")
	ErrClosed      = errors.New("board closed")
)

type State int

const (
	Empty State = iota
	Loading
	Populated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// API is the subset of the REST client the board drives.
type API interface {
	ListTasks(ctx context.Context, projectID string) ([]client.Task, error)
	CreateTask(ctx context.Context, in client.NewTask) (client.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch client.TaskPatch) (client.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	ReorderTasks(ctx context.Context, updates []client.OrderUpdate) (client.OrderResult, error)
}

// IsPlaceholder reports whether id names a local-only row.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

func newPlaceholders() []client.Task {
	rows := make([]client.Task, placeholderCount)
	for i := range rows {
		rows[i] = client.Task{
			ID:       fmt.Sprintf("%s%d", placeholderPrefix, i+1),
			Priority: "Medium",
			Order:    i,
		}
	}
	return rows
}

type Option func(*Board)

func WithDebounce(d time.Duration) Option {
	return func(b *Board) {
		b.debounce = d
	}
}

// Board is safe for concurrent use. The lock is never held across API calls.
type Board struct {
	api       API
	projectID string
	logger    *log.Logger
	debounce  time.Duration

	mu       sync.Mutex
	state    State
	rows     []client.Task
	editing  string
	dragBase []client.Task
	timer    *time.Timer
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(api API, projectID string, logger *log.Logger, opts ...Option) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		api:       api,
		projectID: projectID,
		logger:    logger,
		debounce:  DefaultDebounce,
		state:     Empty,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Tasks returns a copy of the visible rows in display order.
func (b *Board) Tasks() []client.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client.Task(nil), b.rows...)
}

func (b *Board) BeginEdit(taskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(taskID) < 0 {
		return ErrUnknownTask
	}
	b.editing = taskID
	return nil
}

func (b *Board) EndEdit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing = ""
}

// Editing returns the task currently being edited, if any.
func (b *Board) Editing() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.editing, b.editing != ""
}

// Refresh fetches the project's tasks and replaces the board contents. An
// empty result shows placeholders, keeping any that were already edited.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	previous := b.state
	b.state = Loading
	b.mu.Unlock()

	tasks, err := b.api.ListTasks(ctx, b.projectID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = previous
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		b.state = Empty
		if !b.onlyPlaceholders() {
			b.rows = newPlaceholders()
		}
	} else {
		b.state = Populated
		b.rows = tasks
	}
	b.dragBase = nil
	if b.editing != "" && b.indexOf(b.editing) < 0 {
		b.editing = ""
	}
	return nil
}

// RequestRefresh schedules a fetch after the debounce period. Calls made
// before it fires restart the wait so a burst produces one fetch.
func (b *Board) RequestRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, b.runRefresh)
}

func (b *Board) runRefresh() {
	if err := b.Refresh(b.ctx); err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
		b.logger.Warn("board refresh failed", "project", b.projectID, "err", err)
	}
}

// Close stops any pending fetch and cancels one in flight.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.cancel()
}

// Add creates a task after the existing real tasks. Placeholders are
// discarded once it succeeds.
func (b *Board) Add(ctx context.Context, name string) (client.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return client.Task{}, errors.New("task name is required")
	}
	b.mu.Lock()
	order := b.realCount()
	b.mu.Unlock()

	task, err := b.api.CreateTask(ctx, client.NewTask{Name: name, Project: b.projectID, Order: &order})
	if err != nil {
		return client.Task{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropPlaceholders()
	b.rows = append(b.rows, task)
	b.state = Populated
	return task, nil
}

// Rename sets a task's name. A placeholder that receives a non-empty name
// is created on the server and replaced by the real task.
func (b *Board) Rename(ctx context.Context, taskID, name string) (client.Task, error) {
	if IsPlaceholder(taskID) {
		return b.promote(ctx, taskID, name)
	}
	if strings.TrimSpace(name) == "" {
		return client.Task{}, errors.New("task name is required")
	}
	return b.optimistic(ctx, taskID, func(t *client.Task) { t.Name = name }, client.TaskPatch{"name": name})
}

func (b *Board) promote(ctx context.Context, taskID, name string) (client.Task, error) {
	b.mu.Lock()
	i := b.indexOf(taskID)
	if i < 0 {
		b.mu.Unlock()
		return client.Task{}, ErrUnknownTask
	}
	b.rows[i].Name = name
	row := b.rows[i]
	b.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return row, nil
	}

	order := row.Order
	created, err := b.api.CreateTask(ctx, client.NewTask{
		Name:        strings.TrimSpace(name),
		Description: row.Description,
		Priority:    row.Priority,
		DueDate:     row.DueDate,
		Project:     b.projectID,
		Order:       &order,
	})
	if err != nil {
		return row, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i = b.indexOf(taskID); i >= 0 {
		b.rows[i] = created
	} else {
		b.rows = append(b.rows, created)
	}
	if b.editing == taskID {
		b.editing = created.ID
	}
	b.state = Populated
	return created, nil
}

func (b *Board) SetCompleted(ctx context.Context, taskID string, completed bool) (client.Task, error) {
	if IsPlaceholder(taskID) {
		return b.local(taskID, func(t *client.Task) { t.Completed = completed })
	}
	return b.optimistic(ctx, taskID, func(t *client.Task) { t.Completed = completed }, client.TaskPatch{"completed": completed})
}

func (b *Board) SetPriority(ctx context.Context, taskID, priority string) (client.Task, error) {
	if IsPlaceholder(taskID) {
		return b.local(taskID, func(t *client.Task) { t.Priority = priority })
	}
	return b.optimistic(ctx, taskID, func(t *client.Task) { t.Priority = priority }, client.TaskPatch{"priority": priority})
}

// Delete removes a row. Placeholders disappear locally; real tasks are
// removed optimistically and restored if the server refuses.
func (b *Board) Delete(ctx context.Context, taskID string) error {
	b.mu.Lock()
	i := b.indexOf(taskID)
	if i < 0 {
		b.mu.Unlock()
		return ErrUnknownTask
	}
	removed := b.rows[i]
	b.rows = append(b.rows[:i:i], b.rows[i+1:]...)
	if b.editing == taskID {
		b.editing = ""
	}
	if IsPlaceholder(taskID) {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.api.DeleteTask(ctx, taskID); err != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if i > len(b.rows) {
			i = len(b.rows)
		}
		b.rows = append(b.rows[:i:i], append([]client.Task{removed}, b.rows[i:]...)...)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.rows) == 0 {
		b.state = Empty
		b.rows = newPlaceholders()
	}
	return nil
}

// Move splices the row at from to index to. It is local only; the first
// move of a drag remembers the order to restore if Drop fails.
func (b *Board) Move(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from < 0 || from >= len(b.rows) || to < 0 || to >= len(b.rows) {
		return fmt.Errorf("move %d -> %d: index out of range", from, to)
	}
	if b.dragBase == nil {
		b.dragBase = append([]client.Task(nil), b.rows...)
	}
	if from == to {
		return nil
	}
	row := b.rows[from]
	b.rows = append(b.rows[:from], b.rows[from+1:]...)
	b.rows = append(b.rows[:to], append([]client.Task{row}, b.rows[to:]...)...)
	return nil
}

// CancelDrag restores the order from before the first Move.
func (b *Board) CancelDrag() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dragBase != nil {
		b.rows = b.dragBase
		b.dragBase = nil
	}
}

// Drop assigns order = position to every real row and persists the whole
// order in one request. On failure the pre-drag order is restored.
func (b *Board) Drop(ctx context.Context) error {
	b.mu.Lock()
	base := b.dragBase
	b.dragBase = nil
	updates := make([]client.OrderUpdate, 0, len(b.rows))
	for i := range b.rows {
		b.rows[i].Order = i
		if !IsPlaceholder(b.rows[i].ID) {
			updates = append(updates, client.OrderUpdate{ID: b.rows[i].ID, Order: i})
		}
	}
	b.mu.Unlock()

	if len(updates) == 0 {
		return nil
	}
	if _, err := b.api.ReorderTasks(ctx, updates); err != nil {
		if base != nil {
			b.mu.Lock()
			b.rows = base
			b.mu.Unlock()
		}
		return fmt.Errorf("reorder tasks: %w", err)
	}
	return nil
}

func (b *Board) local(taskID string, apply func(*client.Task)) (client.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(taskID)
	if i < 0 {
		return client.Task{}, ErrUnknownTask
	}
	apply(&b.rows[i])
	return b.rows[i], nil
}

// optimistic applies the change locally, sends the patch and then either
// adopts the server's row or restores the previous one.
func (b *Board) optimistic(ctx context.Context, taskID string, apply func(*client.Task), patch client.TaskPatch) (client.Task, error) {
	b.mu.Lock()
	i := b.indexOf(taskID)
	if i < 0 {
		b.mu.Unlock()
		return client.Task{}, ErrUnknownTask
	}
	previous := b.rows[i]
	apply(&b.rows[i])
	b.mu.Unlock()

	updated, err := b.api.UpdateTask(ctx, taskID, patch)

	b.mu.Lock()
	defer b.mu.Unlock()
	i = b.indexOf(taskID)
	if err != nil {
		if i >= 0 {
			b.rows[i] = previous
		}
		return previous, err
	}
	if i >= 0 {
		b.rows[i] = updated
	}
	return updated, nil
}

func (b *Board) indexOf(taskID string) int {
	for i := range b.rows {
		if b.rows[i].ID == taskID {
			return i
		}
	}
	return -1
}

// realCount returns the number of rows backed by server tasks.
func (b *Board) realCount() int {
	n := 0
	for _, row := range b.rows {
		if !IsPlaceholder(row.ID) {
			n++
		}
	}
	return n
}

func (b *Board) onlyPlaceholders() bool {
	if len(b.rows) == 0 {
		return false
	}
	for _, row := range b.rows {
		if !IsPlaceholder(row.ID) {
			return false
		}
	}
	return true
}

func (b *Board) dropPlaceholders() {
	kept := b.rows[:0]
	for _, row := range b.rows {
		if !IsPlaceholder(row.ID) {
			kept = append(kept, row)
		}
	}
	b.rows = kept
}

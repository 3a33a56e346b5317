package search

import (
	"context"

	"taskboard/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
	ProjectID string `json:"project,omitempty"`
	Priority  string `json:"priority"`
	Completed bool   `json:"completed"`
}

// Query describes a search request. OwnerID is always set; results never
// cross owners.
type Query struct {
	Text      string
	OwnerID   string
	ProjectID string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a task search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push tasks into a search index.
type Indexer interface {
	IndexTasks(records []TaskRecord) error
	DeleteTasks(ids []string) error
}

// Backend is a search index that can be both queried and fed.
type Backend interface {
	Searcher
	Indexer
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
	Order       int    `json:"order"`
}

func RecordFromTask(task store.Task) TaskRecord {
	return TaskRecord{
		ID:          task.ID,
		OwnerID:     task.OwnerID,
		ProjectID:   task.ProjectID,
		Name:        task.Name,
		Description: task.Description,
		Priority:    string(task.Priority),
		Completed:   task.Completed,
		Order:       task.Order,
	}
}

func resultFromTask(task store.Task) Result {
	return Result{
		ID:        task.ID,
		Name:      task.Name,
		Snippet:   snippet(task.Description),
		ProjectID: task.ProjectID,
		Priority:  string(task.Priority),
		Completed: task.Completed,
	}
}

const snippetRunes = 120

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "…"
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

package search

import (
	"context"

	"taskboard/api/internal/store"
)

// TaskMatcher is implemented by stores that can filter tasks by text.
type TaskMatcher interface {
	SearchTasks(ctx context.Context, ownerID, projectID, text string) ([]store.Task, error)
}

// StoreSearch implements Searcher directly over a TaskMatcher, for runs
// without Postgres or Meilisearch.
type StoreSearch struct {
	tasks TaskMatcher
}

func NewStoreSearch(tasks TaskMatcher) *StoreSearch {
	return &StoreSearch{tasks: tasks}
}

func (s *StoreSearch) Healthy() bool {
	return true
}

func (s *StoreSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	tasks, err := s.tasks.SearchTasks(ctx, q.OwnerID, q.ProjectID, q.Text)
	if err != nil {
		return nil, 0, err
	}
	total := len(tasks)
	start := min(max(q.Offset, 0), total)
	end := min(start+normalizeLimit(q.Limit), total)

	results := make([]Result, 0, end-start)
	for _, task := range tasks[start:end] {
		results = append(results, resultFromTask(task))
	}
	return results, total, nil
}

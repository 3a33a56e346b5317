package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"taskboard/api/internal/store"
)

// RecordLoader reads every indexable task, used to seed an empty index.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]TaskRecord, error)
}

// Service is the facade that tries the primary index first and falls back to
// a store-backed searcher.
type Service struct {
	primary  Backend
	fallback Searcher
	logger   *log.Logger
}

// NewService creates a search service. primary may be nil when no index is
// configured.
func NewService(primary Backend, fallback Searcher, logger *log.Logger) *Service {
	return &Service{primary: primary, fallback: fallback, logger: logger.WithPrefix("search")}
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries the primary index if healthy, otherwise the fallback. Blank
// queries return an empty response without touching either.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	if s.primaryReady() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("primary search failed, falling back", "err", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("fallback search failed", "err", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTask pushes a created or updated task to the index (fire-and-forget).
func (s *Service) IndexTask(task store.Task) {
	if !s.primaryReady() {
		return
	}
	record := RecordFromTask(task)
	go func() {
		if err := s.primary.IndexTasks([]TaskRecord{record}); err != nil {
			s.logger.Warn("index task", "id", record.ID, "err", err)
		}
	}()
}

// DeleteTasks removes tasks from the index (fire-and-forget).
func (s *Service) DeleteTasks(ids ...string) {
	if !s.primaryReady() || len(ids) == 0 {
		return
	}
	go func() {
		if err := s.primary.DeleteTasks(ids); err != nil {
			s.logger.Warn("delete tasks from index", "count", len(ids), "err", err)
		}
	}()
}

// ReindexAll loads every task through loader and pushes it to the index.
func (s *Service) ReindexAll(ctx context.Context, loader RecordLoader) {
	if !s.primaryReady() || loader == nil {
		return
	}
	records, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", "err", err)
		return
	}
	if err := s.primary.IndexTasks(records); err != nil {
		s.logger.Error("reindex failed", "err", err)
		return
	}
	s.logger.Info("reindexed tasks", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

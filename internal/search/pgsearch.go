package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher with case-insensitive pattern matching on
// PostgreSQL. It is the fallback when Meilisearch is missing or unhealthy.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(q.Text)) + "%"
	args := []any{q.OwnerID, pattern}
	where := `owner_id = $1 AND (name ILIKE $2 OR description ILIKE $2)`
	if q.ProjectID != "" {
		args = append(args, q.ProjectID)
		where += fmt.Sprintf(" AND project_id = $%d", len(args))
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	args = append(args, normalizeLimit(q.Limit), max(q.Offset, 0))
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id::text, COALESCE(project_id::text, ''), name, description, priority, completed
		FROM tasks
		WHERE %s
		ORDER BY sort_order ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		var description string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &description, &r.Priority, &r.Completed); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		r.Snippet = snippet(description)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every task for a full reindex.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]TaskRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, owner_id::text, COALESCE(project_id::text, ''), name, description, priority, completed, sort_order
		FROM tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	records := make([]TaskRecord, 0)
	for rows.Next() {
		var r TaskRecord
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.ProjectID, &r.Name, &r.Description, &r.Priority, &r.Completed, &r.Order); err != nil {
			return nil, fmt.Errorf("scan task record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func escapeLike(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(text)
}

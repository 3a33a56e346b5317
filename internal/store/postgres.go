package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isForeignKeyViolation reports a reference to a row that does not exist,
// such as a task filed under a deleted project.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Users

const userColumns = `id::text, email, password_hash, COALESCE(reset_token, ''), reset_expires_at,
	COALESCE(default_workspace_id::text, ''), COALESCE(default_project_id::text, ''), created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	var resetExpires sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.ResetToken, &resetExpires,
		&user.DefaultWorkspaceID, &user.DefaultProjectID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, notFound(err)
	}
	user.ResetExpiresAt = timePtr(resetExpires)
	return user, nil
}

// CreateAccount writes the user, the default workspace and the default
// project in a single transaction; either all rows exist afterwards or none.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		user := account.User
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash)
			VALUES ($1, $2, $3)
		`, user.ID, user.Email, user.PasswordHash)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if err := insertWorkspace(ctx, tx, account.Workspace); err != nil {
			return err
		}
		if err := insertProject(ctx, tx, account.Project); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET default_workspace_id=$2, default_project_id=$3, updated_at=NOW()
			WHERE id=$1
		`, user.ID, account.Workspace.ID, account.Project.ID); err != nil {
			return fmt.Errorf("link defaults: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresStore) GetUserByResetToken(ctx context.Context, token string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token=$1`, token))
}

func (s *PostgresStore) SetPasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET reset_token=$2, reset_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	return expectRow(result)
}

// UpdateUserPassword stores a new hash and clears any pending reset token.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, reset_token=NULL, reset_expires_at=NULL, updated_at=NOW()
		WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectRow(result)
}

func expectRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Sessions

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id::text FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Workspaces

const workspaceColumns = `w.id::text, w.name, w.slug, w.owner_id::text, w.created_at, w.updated_at`

func insertWorkspace(ctx context.Context, q queryer, ws Workspace) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, slug, owner_id)
		VALUES ($1, $2, $3, $4)
	`, ws.ID, ws.Name, ws.Slug, ws.OwnerID); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	for _, member := range ws.Members {
		if err := upsertMember(ctx, q, "workspace_members", "workspace_id", ws.ID, member); err != nil {
			return err
		}
	}
	return nil
}

func upsertMember(ctx context.Context, q queryer, table, key, entityID string, member Member) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (%s, user_id) DO UPDATE SET role=EXCLUDED.role
	`, table, key, key)
	if _, err := q.ExecContext(ctx, query, entityID, member.UserID, member.Role); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func removeMember(ctx context.Context, q queryer, table, key, entityID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s=$1 AND user_id=$2`, table, key)
	result, err := q.ExecContext(ctx, query, entityID, userID)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", table, err)
	}
	return expectRow(result)
}

func listMembers(ctx context.Context, q queryer, table, key, entityID string) ([]Member, error) {
	query := fmt.Sprintf(`
		SELECT m.user_id::text, m.role, u.email
		FROM %s m
		JOIN users u ON u.id = m.user_id
		WHERE m.%s=$1
		ORDER BY m.created_at, u.email
	`, table, key)
	rows, err := q.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.UserID, &member.Role, &member.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return members, nil
}

func scanWorkspace(row rowScanner) (Workspace, error) {
	var ws Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return Workspace{}, notFound(err)
	}
	return ws, nil
}

func (s *PostgresStore) InsertWorkspace(ctx context.Context, ws Workspace) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertWorkspace(ctx, tx, ws)
	})
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces w WHERE w.id=$1`, workspaceID))
	if err != nil {
		return Workspace{}, err
	}
	ws.Members, err = listMembers(ctx, s.db, "workspace_members", "workspace_id", ws.ID)
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM workspaces w
		WHERE w.owner_id=$1
			OR EXISTS (SELECT 1 FROM workspace_members m WHERE m.workspace_id=w.id AND m.user_id=$1)
		ORDER BY w.created_at, w.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	items := make([]Workspace, 0)
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, ws)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	rows.Close()

	for i := range items {
		items[i].Members, err = listMembers(ctx, s.db, "workspace_members", "workspace_id", items[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, slug string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name=$2, slug=$3, updated_at=NOW() WHERE id=$1
	`, workspaceID, name, slug)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return expectRow(result)
}

// DeleteWorkspace removes the workspace with its projects and their tasks,
// returning the ids of the removed tasks.
func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) ([]string, error) {
	var taskIDs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		taskIDs, err = collectIDs(ctx, tx, `
			SELECT t.id::text FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE p.workspace_id=$1
		`, workspaceID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET
				default_workspace_id = CASE WHEN default_workspace_id=$1 THEN NULL ELSE default_workspace_id END,
				default_project_id = CASE
					WHEN default_project_id IN (SELECT id FROM projects WHERE workspace_id=$1) THEN NULL
					ELSE default_project_id END,
				updated_at=NOW()
			WHERE default_workspace_id=$1
				OR default_project_id IN (SELECT id FROM projects WHERE workspace_id=$1)
		`, workspaceID); err != nil {
			return fmt.Errorf("clear default workspace: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
		if err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
		return expectRow(result)
	})
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

func (s *PostgresStore) UpsertWorkspaceMember(ctx context.Context, workspaceID string, member Member) error {
	return upsertMember(ctx, s.db, "workspace_members", "workspace_id", workspaceID, member)
}

func (s *PostgresStore) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	return removeMember(ctx, s.db, "workspace_members", "workspace_id", workspaceID, userID)
}

func collectIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Projects

const projectColumns = `p.id::text, p.name, p.slug, p.workspace_id::text, p.created_at, p.updated_at`

func insertProject(ctx context.Context, q queryer, project Project) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, name, slug, workspace_id)
		VALUES ($1, $2, $3, $4)
	`, project.ID, project.Name, project.Slug, project.WorkspaceID); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	for _, member := range project.Members {
		if err := upsertMember(ctx, q, "project_members", "project_id", project.ID, member); err != nil {
			return err
		}
	}
	return nil
}

func scanProject(row rowScanner) (Project, error) {
	var project Project
	if err := row.Scan(&project.ID, &project.Name, &project.Slug, &project.WorkspaceID, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return Project{}, notFound(err)
	}
	return project, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertProject(ctx, tx, project)
	})
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	project, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id=$1`, projectID))
	if err != nil {
		return Project{}, err
	}
	project.Members, err = listMembers(ctx, s.db, "project_members", "project_id", project.ID)
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

// ListProjectsForUser returns projects the user belongs to directly or
// through the parent workspace, optionally limited to one workspace.
func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID, workspaceID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		JOIN workspaces w ON w.id = p.workspace_id
		WHERE ($2::text = '' OR p.workspace_id::text = $2::text)
			AND (
				w.owner_id=$1
				OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id=p.id AND pm.user_id=$1)
				OR EXISTS (SELECT 1 FROM workspace_members wm WHERE wm.workspace_id=w.id AND wm.user_id=$1)
			)
		ORDER BY p.created_at, p.id
	`, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	items := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, project)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	rows.Close()

	for i := range items {
		items[i].Members, err = listMembers(ctx, s.db, "project_members", "project_id", items[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, name, slug string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=$2, slug=$3, updated_at=NOW() WHERE id=$1
	`, projectID, name, slug)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectRow(result)
}

// DeleteProject removes the project and every task that references it,
// regardless of task owner, returning the removed task ids.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) ([]string, error) {
	var taskIDs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		taskIDs, err = collectIDs(ctx, tx, `DELETE FROM tasks WHERE project_id=$1 RETURNING id::text`, projectID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET default_project_id=NULL, updated_at=NOW() WHERE default_project_id=$1
		`, projectID); err != nil {
			return fmt.Errorf("clear default project: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return expectRow(result)
	})
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

func (s *PostgresStore) UpsertProjectMember(ctx context.Context, projectID string, member Member) error {
	return upsertMember(ctx, s.db, "project_members", "project_id", projectID, member)
}

func (s *PostgresStore) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return removeMember(ctx, s.db, "project_members", "project_id", projectID, userID)
}

// Tasks

const taskColumns = `id::text, owner_id::text, COALESCE(project_id::text, ''), name, description, priority,
	due_date, completed, sort_order, created_at, updated_at`

const taskOrdering = `ORDER BY sort_order ASC,
	CASE priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 1 ELSE 0 END DESC,
	due_date ASC NULLS LAST,
	id ASC`

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var priority string
	var due sql.NullTime
	err := row.Scan(&task.ID, &task.OwnerID, &task.ProjectID, &task.Name, &task.Description, &priority,
		&due, &task.Completed, &task.Order, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, notFound(err)
	}
	task.Priority = Priority(priority)
	task.DueDate = timePtr(due)
	return task, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, project_id, name, description, priority, due_date, completed, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, task.ID, task.OwnerID, nullIfEmpty(task.ProjectID), task.Name, task.Description, string(task.Priority),
		nullTime(task.DueDate), task.Completed, task.Order)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, ownerID, projectID string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id=$1`
	args := []any{ownerID}
	if projectID != "" {
		query += ` AND project_id=$2`
		args = append(args, projectID)
	}
	rows, err := s.db.QueryContext(ctx, query+" "+taskOrdering, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetOwnedTask(ctx context.Context, ownerID, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND owner_id=$2`, taskID, ownerID))
}

func (s *PostgresStore) UpdateTask(ctx context.Context, ownerID, taskID string, patch TaskPatch) (Task, error) {
	var task Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		task, err = scanTask(tx.QueryRowContext(ctx, `
			SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND owner_id=$2 FOR UPDATE
		`, taskID, ownerID))
		if err != nil {
			return err
		}
		patch.Apply(&task)
		err = tx.QueryRowContext(ctx, `
			UPDATE tasks
			SET project_id=$3, name=$4, description=$5, priority=$6, due_date=$7, completed=$8, sort_order=$9, updated_at=NOW()
			WHERE id=$1 AND owner_id=$2
			RETURNING updated_at
		`, task.ID, ownerID, nullIfEmpty(task.ProjectID), task.Name, task.Description, string(task.Priority),
			nullTime(task.DueDate), task.Completed, task.Order).Scan(&task.UpdatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND owner_id=$2`, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectRow(result)
}

// ApplyTaskOrder writes each (id, order) pair for tasks owned by ownerID in one
// transaction. Ids that do not belong to the owner are skipped; the count of
// updated rows is returned.
func (s *PostgresStore) ApplyTaskOrder(ctx context.Context, ownerID string, updates []OrderUpdate) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE tasks SET sort_order=$3, updated_at=NOW() WHERE id=$1 AND owner_id=$2
		`)
		if err != nil {
			return fmt.Errorf("prepare order update: %w", err)
		}
		defer stmt.Close()
		for _, update := range updates {
			result, err := stmt.ExecContext(ctx, update.ID, ownerID, update.Order)
			if err != nil {
				return fmt.Errorf("update order for %s: %w", update.ID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			applied += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

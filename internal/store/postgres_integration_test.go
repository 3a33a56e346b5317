package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, dbURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	applied, err := ApplyMigrations(ctx, db, os.DirFS(filepath.Join("..", "..", "db", "migrations")))
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("expected migrations to apply on a fresh schema")
	}
	return db
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `CREATE SCHEMA public`)
	return err
}

func newAccount(email string) Account {
	userID, wsID, projectID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	return Account{
		User: User{ID: userID, Email: email, PasswordHash: "hash"},
		Workspace: Workspace{
			ID: wsID, Name: email + "'s Workspace", Slug: "ws", OwnerID: userID,
			Members: []Member{{UserID: userID, Role: "admin"}},
		},
		Project: Project{
			ID: projectID, Name: "My First Project", Slug: "my-first-project", WorkspaceID: wsID,
			Members: []Member{{UserID: userID, Role: "admin"}},
		},
	}
}

func TestPostgresAccountTasksAndOrder(t *testing.T) {
	db := openTestDB(t)
	s := NewPostgresStore(db)
	ctx := context.Background()

	account := newAccount("alice@x.com")
	if err := s.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("alice@x.com")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate CreateAccount() error = %v, want ErrEmailTaken", err)
	}

	user, err := s.GetUserByEmail(ctx, "alice@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if user.DefaultProjectID != account.Project.ID {
		t.Fatalf("default project = %q, want %q", user.DefaultProjectID, account.Project.ID)
	}

	ids := map[string]string{"A": uuid.NewString(), "B": uuid.NewString(), "C": uuid.NewString()}
	for _, name := range []string{"A", "B", "C"} {
		err := s.InsertTask(ctx, Task{
			ID: ids[name], OwnerID: user.ID, ProjectID: account.Project.ID, Name: name, Priority: PriorityMedium,
		})
		if err != nil {
			t.Fatalf("InsertTask(%s) error = %v", name, err)
		}
	}

	applied, err := s.ApplyTaskOrder(ctx, user.ID, []OrderUpdate{
		{ID: ids["A"], Order: 2},
		{ID: ids["B"], Order: 0},
		{ID: ids["C"], Order: 1},
		{ID: uuid.NewString(), Order: 0},
	})
	if err != nil {
		t.Fatalf("ApplyTaskOrder() error = %v", err)
	}
	if applied != 3 {
		t.Fatalf("applied = %d, want 3", applied)
	}

	tasks, err := s.ListTasks(ctx, user.ID, account.Project.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 || tasks[0].Name != "B" || tasks[1].Name != "C" || tasks[2].Name != "A" {
		t.Fatalf("unexpected order: %+v", tasks)
	}

	missing := uuid.NewString()
	if _, err := s.UpdateTask(ctx, user.ID, ids["A"], TaskPatch{ProjectID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTask() into unknown project error = %v, want ErrNotFound", err)
	}
	if err := s.InsertTask(ctx, Task{
		ID: uuid.NewString(), OwnerID: user.ID, ProjectID: missing, Name: "orphan", Priority: PriorityMedium,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("InsertTask() into unknown project error = %v, want ErrNotFound", err)
	}

	removed, err := s.DeleteProject(ctx, account.Project.ID)
	if err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed %d tasks, want 3", len(removed))
	}
	if _, err := s.GetOwnedTask(ctx, user.ID, ids["A"]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOwnedTask() after cascade error = %v, want ErrNotFound", err)
	}
}

func TestPostgresRefreshSessions(t *testing.T) {
	db := openTestDB(t)
	s := NewPostgresStore(db)
	ctx := context.Background()

	account := newAccount("bob@x.com")
	if err := s.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := s.SaveRefreshSession(ctx, "hash-1", account.User.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}
	userID, err := s.LookupRefreshSession(ctx, "hash-1")
	if err != nil || userID != account.User.ID {
		t.Fatalf("LookupRefreshSession() = %q, %v", userID, err)
	}
	if err := s.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession() error = %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked lookup error = %v, want ErrNotFound", err)
	}
}

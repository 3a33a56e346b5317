package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/app"
	"taskboard/api/internal/config"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

const testPassword = "Passw0rd!"

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	memory := store.NewMemoryStore()
	logger := logging.Discard()
	cfg := config.Config{
		JWTSecret:  "client-test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		CORSOrigin: "*",
	}
	svc := app.New(cfg, memory, memory, logger).
		WithSearch(search.NewService(nil, search.NewStoreSearch(memory), logger))
	server := httptest.NewServer(app.NewHTTPServer(svc, cfg.CORSOrigin, logger).Handler())
	t.Cleanup(server.Close)
	return server
}

func signedInClient(t *testing.T, baseURL, email string) (*Client, Account) {
	t.Helper()
	c := New(baseURL, NewSession())
	account, err := c.Register(context.Background(), Registration{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.Login(context.Background(), email, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	return c, account
}

func TestClientEndToEnd(t *testing.T) {
	server := newAPIServer(t)
	c, account := signedInClient(t, server.URL, "alice@x.com")
	ctx := context.Background()

	if account.Workspace.Name != "alice@x.com's Workspace" || account.Project.Name != "My First Project" {
		t.Fatalf("unexpected account %+v", account)
	}
	if !c.Session().Authenticated() || c.Session().UserID() != account.User.ID {
		t.Fatal("login should populate the session")
	}

	me, err := c.Me(ctx)
	if err != nil || me.Email != "alice@x.com" {
		t.Fatalf("me: %+v %v", me, err)
	}

	a, err := c.CreateTask(ctx, NewTask{Name: "A", Project: account.Project.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := c.CreateTask(ctx, NewTask{Name: "B", Project: account.Project.ID})
	cTask, _ := c.CreateTask(ctx, NewTask{Name: "C", Project: account.Project.ID})

	result, err := c.ReorderTasks(ctx, []OrderUpdate{{ID: a.ID, Order: 2}, {ID: b.ID, Order: 0}, {ID: cTask.ID, Order: 1}})
	if err != nil || !result.OK || result.Updated != 3 {
		t.Fatalf("reorder: %+v %v", result, err)
	}
	tasks, err := c.ListTasks(ctx, account.Project.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Name != "B" || tasks[1].Name != "C" || tasks[2].Name != "A" {
		t.Fatalf("unexpected order %+v", tasks)
	}

	updated, err := c.UpdateTask(ctx, a.ID, TaskPatch{"completed": true, "project": nil})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed || updated.Project != nil {
		t.Fatalf("unexpected update %+v", updated)
	}

	found, err := c.SearchTasks(ctx, "b", "", 0)
	if err != nil || found.Total != 1 {
		t.Fatalf("search: %+v %v", found, err)
	}

	if err := c.DeleteTask(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteTask(ctx, a.ID); !IsAccessDenied(err) {
		t.Fatalf("second delete: expected access denied, got %v", err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.Session().Authenticated() {
		t.Fatal("logout should clear the session")
	}
	if _, err := c.Me(ctx); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	server := newAPIServer(t)
	signedInClient(t, server.URL, "alice@x.com")

	c := New(server.URL, nil)
	_, err := c.Login(context.Background(), "alice@x.com", "WrongPass1!")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid username or password" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if c.Session().Authenticated() {
		t.Fatal("failed login must not set a token")
	}
}

func TestTransportInjectsTokenAndInvalidatesOn401(t *testing.T) {
	var sawHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized"}`))
	}))
	defer server.Close()

	session := NewSession()
	session.Set("expired-token", "rft_x", "user-1")
	var invalidated atomic.Int32
	session.OnInvalidate(func() { invalidated.Add(1) })

	c := New(server.URL, session)
	_, err := c.ListTasks(context.Background(), "")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := sawHeader.Load(); got != "Bearer expired-token" {
		t.Fatalf("unexpected Authorization header %v", got)
	}
	if session.Authenticated() {
		t.Fatal("session should be invalidated on 401")
	}
	if invalidated.Load() != 1 {
		t.Fatalf("expected one invalidation callback, got %d", invalidated.Load())
	}

	_, _ = c.ListTasks(context.Background(), "")
	if got := sawHeader.Load(); got != "" {
		t.Fatalf("cleared session must not send a token, got %v", got)
	}
	if invalidated.Load() != 1 {
		t.Fatal("invalidation callback must not fire again for an empty session")
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(server.URL, nil, WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.ListTasks(context.Background(), "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

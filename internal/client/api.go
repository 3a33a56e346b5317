package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type User struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	DefaultWorkspace string    `json:"defaultWorkspace"`
	DefaultProject   string    `json:"defaultProject"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Member struct {
	User  string `json:"user"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Workspace struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Owner     string    `json:"owner"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Project struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Workspace string    `json:"workspace"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Task struct {
	ID          string     `json:"_id"`
	Owner       string     `json:"owner"`
	Project     *string    `json:"project"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   bool       `json:"completed"`
	Order       int        `json:"order"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Account struct {
	User      User      `json:"user"`
	Workspace Workspace `json:"workspace"`
	Project   Project   `json:"project"`
}

type Registration struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	WorkspaceName string `json:"workspaceName,omitempty"`
	ProjectName   string `json:"projectName,omitempty"`
}

type LoginResult struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type NewTask struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Project     string     `json:"project,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

// TaskPatch is sent as-is; a nil value clears nullable fields on the server.
type TaskPatch map[string]any

type OrderUpdate struct {
	ID    string `json:"_id"`
	Order int    `json:"order"`
}

type OrderResult struct {
	OK      bool `json:"ok"`
	Updated int  `json:"updated"`
	Skipped int  `json:"skipped"`
}

type SearchResult struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
	Project   string `json:"project"`
	Priority  string `json:"priority"`
	Completed bool   `json:"completed"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
}

func (c *Client) Register(ctx context.Context, in Registration) (Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &account)
	return account, err
}

// Login signs in and stores the credentials on the client's session.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return LoginResult{}, err
	}
	c.session.Set(result.Token, result.RefreshToken, result.UserID)
	return result, nil
}

// Logout revokes the session server-side and clears it locally, even when
// the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	body := map[string]string{"refreshToken": c.session.RefreshToken()}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", body, nil)
	c.session.Invalidate()
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	return user, err
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var items []Workspace
	err := c.do(ctx, http.MethodGet, "/api/workspaces", nil, &items)
	return items, err
}

func (c *Client) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	var ws Workspace
	err := c.do(ctx, http.MethodPost, "/api/workspaces", map[string]string{"name": name}, &ws)
	return ws, err
}

func (c *Client) ListProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	values := url.Values{}
	if workspaceID != "" {
		values.Set("workspaceId", workspaceID)
	}
	var items []Project
	err := c.do(ctx, http.MethodGet, withQuery("/api/projects", values), nil, &items)
	return items, err
}

func (c *Client) CreateProject(ctx context.Context, workspaceID, name string) (Project, error) {
	var project Project
	body := map[string]string{"name": name, "workspace": workspaceID}
	err := c.do(ctx, http.MethodPost, "/api/projects", body, &project)
	return project, err
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(projectID), nil, nil)
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	values := url.Values{}
	if projectID != "" {
		values.Set("projectId", projectID)
	}
	var items []Task
	err := c.do(ctx, http.MethodGet, withQuery("/api/tasks", values), nil, &items)
	return items, err
}

func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", in, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(taskID), patch, &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(taskID), nil, nil)
}

// ReorderTasks sends a full reindex in one request.
func (c *Client) ReorderTasks(ctx context.Context, updates []OrderUpdate) (OrderResult, error) {
	var result OrderResult
	body := map[string]any{"orderUpdates": updates}
	err := c.do(ctx, http.MethodPatch, "/api/tasks/order", body, &result)
	return result, err
}

func (c *Client) SearchTasks(ctx context.Context, query, projectID string, limit int) (SearchResponse, error) {
	values := url.Values{}
	values.Set("q", query)
	if projectID != "" {
		values.Set("projectId", projectID)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var response SearchResponse
	err := c.do(ctx, http.MethodGet, withQuery("/api/tasks/search", values), nil, &response)
	return response, err
}

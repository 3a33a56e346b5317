package store

import (
	"strings"
	"time"
)

type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	ResetToken         string
	ResetExpiresAt     *time.Time
	DefaultWorkspaceID string
	DefaultProjectID   string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Member is a (user, role) pair attached to a workspace or project. Email is
// filled in on reads so callers can render the member list.
type Member struct {
	UserID string
	Role   string
	Email  string
}

type Workspace struct {
	ID        string
	Name      string
	Slug      string
	OwnerID   string
	Members   []Member
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Project struct {
	ID          string
	Name        string
	Slug        string
	WorkspaceID string
	Members     []Member
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Account is the unit written at registration: a user plus the default
// workspace and project created for them.
type Account struct {
	User      User
	Workspace Workspace
	Project   Project
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank orders priorities for sorting; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriority(value string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	default:
		return "", false
	}
}

type Task struct {
	ID          string
	OwnerID     string
	ProjectID   string
	Name        string
	Description string
	Priority    Priority
	DueDate     *time.Time
	Completed   bool
	Order       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch is a partial update; nil fields are left unchanged. ClearDueDate
// removes the due date, and a non-nil empty ProjectID detaches the task.
type TaskPatch struct {
	Name         *string
	Description  *string
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
	Completed    *bool
	Order        *int
	ProjectID    *string
}

func (p TaskPatch) Apply(task *Task) {
	if p.Name != nil {
		task.Name = *p.Name
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.ClearDueDate {
		task.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		task.DueDate = &due
	}
	if p.Completed != nil {
		task.Completed = *p.Completed
	}
	if p.Order != nil {
		task.Order = *p.Order
	}
	if p.ProjectID != nil {
		task.ProjectID = *p.ProjectID
	}
}

type OrderUpdate struct {
	ID    string
	Order int
}

package app

import (
	"time"

	"taskboard/api/internal/store"
)

type userView struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	DefaultWorkspace string    `json:"defaultWorkspace,omitempty"`
	DefaultProject   string    `json:"defaultProject,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type memberView struct {
	User  string `json:"user"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type workspaceView struct {
	ID        string       `json:"_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Owner     string       `json:"owner"`
	Members   []memberView `json:"members"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type projectView struct {
	ID        string       `json:"_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Workspace string       `json:"workspace"`
	Members   []memberView `json:"members"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type taskView struct {
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

func toUserView(user store.User) userView {
	return userView{
		ID:               user.ID,
		Email:            user.Email,
		DefaultWorkspace: user.DefaultWorkspaceID,
		DefaultProject:   user.DefaultProjectID,
		CreatedAt:        user.CreatedAt,
	}
}

func toMemberViews(members []store.Member) []memberView {
	views := make([]memberView, 0, len(members))
	for _, member := range members {
		views = append(views, memberView{User: member.UserID, Email: member.Email, Role: member.Role})
	}
	return views
}

func toWorkspaceView(ws store.Workspace) workspaceView {
	return workspaceView{
		ID:        ws.ID,
		Name:      ws.Name,
		Slug:      ws.Slug,
		Owner:     ws.OwnerID,
		Members:   toMemberViews(ws.Members),
		CreatedAt: ws.CreatedAt,
		UpdatedAt: ws.UpdatedAt,
	}
}

func toWorkspaceViews(items []store.Workspace) []workspaceView {
	views := make([]workspaceView, 0, len(items))
	for _, ws := range items {
		views = append(views, toWorkspaceView(ws))
	}
	return views
}

func toProjectView(project store.Project) projectView {
	return projectView{
		ID:        project.ID,
		Name:      project.Name,
		Slug:      project.Slug,
		Workspace: project.WorkspaceID,
		Members:   toMemberViews(project.Members),
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

func toProjectViews(items []store.Project) []projectView {
	views := make([]projectView, 0, len(items))
	for _, project := range items {
		views = append(views, toProjectView(project))
	}
	return views
}

func toTaskView(task store.Task) taskView {
	view := taskView{
		ID:          task.ID,
		Owner:       task.OwnerID,
		Name:        task.Name,
		Description: task.Description,
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		Completed:   task.Completed,
		Order:       task.Order,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.ProjectID != "" {
		projectID := task.ProjectID
		view.Project = &projectID
	}
	return view
}

func toTaskViews(items []store.Task) []taskView {
	views := make([]taskView, 0, len(items))
	for _, task := range items {
		views = append(views, toTaskView(task))
	}
	return views
}

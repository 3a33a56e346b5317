package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type refreshSession struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore keeps every record in maps guarded by one RWMutex. It satisfies
// the same contract as PostgresStore and backs local runs and handler tests.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      map[string]User
	emails     map[string]string
	workspaces map[string]Workspace
	projects   map[string]Project
	tasks      map[string]Task
	refresh    map[string]refreshSession
	revoked    map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		users:      make(map[string]User),
		emails:     make(map[string]string),
		workspaces: make(map[string]Workspace),
		projects:   make(map[string]Project),
		tasks:      make(map[string]Task),
		refresh:    make(map[string]refreshSession),
		revoked:    make(map[string]time.Time),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) stamp() time.Time {
	return s.now().UTC()
}

func (s *MemoryStore) withEmails(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for _, member := range members {
		member.Email = s.users[member.UserID].Email
		out = append(out, member)
	}
	return out
}

// Users

// CreateAccount validates the whole account before writing so that a rejected
// registration leaves no partial records behind.
func (s *MemoryStore) CreateAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := account.User.Email
	if _, taken := s.emails[email]; taken {
		return ErrEmailTaken
	}

	now := s.stamp()
	user := account.User
	user.DefaultWorkspaceID = account.Workspace.ID
	user.DefaultProjectID = account.Project.ID
	user.CreatedAt, user.UpdatedAt = now, now

	ws := account.Workspace
	ws.Members = cloneMembers(ws.Members)
	ws.CreatedAt, ws.UpdatedAt = now, now

	project := account.Project
	project.Members = cloneMembers(project.Members)
	project.CreatedAt, project.UpdatedAt = now, now

	s.users[user.ID] = user
	s.emails[email] = user.ID
	s.workspaces[ws.ID] = ws
	s.projects[project.ID] = project
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.emails[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[userID], nil
}

func (s *MemoryStore) GetUserByResetToken(_ context.Context, token string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return User{}, ErrNotFound
	}
	for _, user := range s.users {
		if user.ResetToken == token {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) SetPasswordReset(_ context.Context, userID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	expires := expiresAt
	user.ResetToken = token
	user.ResetExpiresAt = &expires
	user.UpdatedAt = s.stamp()
	s.users[userID] = user
	return nil
}

func (s *MemoryStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetExpiresAt = nil
	user.UpdatedAt = s.stamp()
	s.users[userID] = user
	return nil
}

// Sessions

func (s *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenHash] = refreshSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.refresh[tokenHash]
	if !ok || !session.expiresAt.After(s.now()) {
		return "", ErrNotFound
	}
	return session.userID, nil
}

func (s *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenHash)
	return nil
}

func (s *MemoryStore) RevokeAccessToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

// Workspaces

func (s *MemoryStore) InsertWorkspace(_ context.Context, ws Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.stamp()
	ws.Members = cloneMembers(ws.Members)
	ws.CreatedAt, ws.UpdatedAt = now, now
	s.workspaces[ws.ID] = ws
	return nil
}

func (s *MemoryStore) GetWorkspace(_ context.Context, workspaceID string) (Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	ws.Members = s.withEmails(ws.Members)
	return ws, nil
}

func (s *MemoryStore) ListWorkspacesForUser(_ context.Context, userID string) ([]Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Workspace, 0)
	for _, ws := range s.workspaces {
		if ws.OwnerID != userID && !hasMember(ws.Members, userID) {
			continue
		}
		ws.Members = s.withEmails(ws.Members)
		items = append(items, ws)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) UpdateWorkspace(_ context.Context, workspaceID, name, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	ws.Name, ws.Slug = name, slug
	ws.UpdatedAt = s.stamp()
	s.workspaces[workspaceID] = ws
	return nil
}

func (s *MemoryStore) DeleteWorkspace(_ context.Context, workspaceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[workspaceID]; !ok {
		return nil, ErrNotFound
	}
	removed := make([]string, 0)
	for id, project := range s.projects {
		if project.WorkspaceID != workspaceID {
			continue
		}
		removed = append(removed, s.deleteProjectTasks(id)...)
		s.clearDefaults("", id)
		delete(s.projects, id)
	}
	s.clearDefaults(workspaceID, "")
	delete(s.workspaces, workspaceID)
	return removed, nil
}

func (s *MemoryStore) UpsertWorkspaceMember(_ context.Context, workspaceID string, member Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	ws.Members = upsertMemberList(ws.Members, member)
	ws.UpdatedAt = s.stamp()
	s.workspaces[workspaceID] = ws
	return nil
}

func (s *MemoryStore) RemoveWorkspaceMember(_ context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	members, removed := removeMemberList(ws.Members, userID)
	if !removed {
		return ErrNotFound
	}
	ws.Members = members
	ws.UpdatedAt = s.stamp()
	s.workspaces[workspaceID] = ws
	return nil
}

// Projects

func (s *MemoryStore) InsertProject(_ context.Context, project Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[project.WorkspaceID]; !ok {
		return ErrNotFound
	}
	now := s.stamp()
	project.Members = cloneMembers(project.Members)
	project.CreatedAt, project.UpdatedAt = now, now
	s.projects[project.ID] = project
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, projectID string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[projectID]
	if !ok {
		return Project{}, ErrNotFound
	}
	project.Members = s.withEmails(project.Members)
	return project, nil
}

func (s *MemoryStore) ListProjectsForUser(_ context.Context, userID, workspaceID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Project, 0)
	for _, project := range s.projects {
		if workspaceID != "" && project.WorkspaceID != workspaceID {
			continue
		}
		ws := s.workspaces[project.WorkspaceID]
		if !hasMember(project.Members, userID) && ws.OwnerID != userID && !hasMember(ws.Members, userID) {
			continue
		}
		project.Members = s.withEmails(project.Members)
		items = append(items, project)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, projectID, name, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	project.Name, project.Slug = name, slug
	project.UpdatedAt = s.stamp()
	s.projects[projectID] = project
	return nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	removed := s.deleteProjectTasks(projectID)
	s.clearDefaults("", projectID)
	delete(s.projects, projectID)
	return removed, nil
}

// clearDefaults unlinks users' default workspace or project ids that point at
// a deleted record. Must be called with the write lock held.
func (s *MemoryStore) clearDefaults(workspaceID, projectID string) {
	for id, user := range s.users {
		changed := false
		if workspaceID != "" && user.DefaultWorkspaceID == workspaceID {
			user.DefaultWorkspaceID = ""
			changed = true
		}
		if projectID != "" && user.DefaultProjectID == projectID {
			user.DefaultProjectID = ""
			changed = true
		}
		if changed {
			s.users[id] = user
		}
	}
}

// deleteProjectTasks must be called with the write lock held.
func (s *MemoryStore) deleteProjectTasks(projectID string) []string {
	removed := make([]string, 0)
	for id, task := range s.tasks {
		if task.ProjectID == projectID {
			removed = append(removed, id)
			delete(s.tasks, id)
		}
	}
	sort.Strings(removed)
	return removed
}

func (s *MemoryStore) UpsertProjectMember(_ context.Context, projectID string, member Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	project.Members = upsertMemberList(project.Members, member)
	project.UpdatedAt = s.stamp()
	s.projects[projectID] = project
	return nil
}

func (s *MemoryStore) RemoveProjectMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	members, removed := removeMemberList(project.Members, userID)
	if !removed {
		return ErrNotFound
	}
	project.Members = members
	project.UpdatedAt = s.stamp()
	s.projects[projectID] = project
	return nil
}

// Tasks

func (s *MemoryStore) InsertTask(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ProjectID != "" {
		if _, ok := s.projects[task.ProjectID]; !ok {
			return ErrNotFound
		}
	}
	now := s.stamp()
	task.CreatedAt, task.UpdatedAt = now, now
	s.tasks[task.ID] = task
	return nil
}

func (s *MemoryStore) ListTasks(_ context.Context, ownerID, projectID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Task, 0)
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if projectID != "" && task.ProjectID != projectID {
			continue
		}
		items = append(items, task)
	}
	SortTasks(items)
	return items, nil
}

func (s *MemoryStore) GetOwnedTask(_ context.Context, ownerID, taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, ownerID, taskID string, patch TaskPatch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	if patch.ProjectID != nil && *patch.ProjectID != "" {
		if _, ok := s.projects[*patch.ProjectID]; !ok {
			return Task{}, ErrNotFound
		}
	}
	patch.Apply(&task)
	task.UpdatedAt = s.stamp()
	s.tasks[taskID] = task
	return task, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, ownerID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *MemoryStore) ApplyTaskOrder(_ context.Context, ownerID string, updates []OrderUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.stamp()
	applied := 0
	for _, update := range updates {
		task, ok := s.tasks[update.ID]
		if !ok || task.OwnerID != ownerID {
			continue
		}
		task.Order = update.Order
		task.UpdatedAt = now
		s.tasks[update.ID] = task
		applied++
	}
	return applied, nil
}

// SearchTasks matches the query text against task names and descriptions
// case-insensitively. It is the search fallback when no index is configured.
func (s *MemoryStore) SearchTasks(_ context.Context, ownerID, projectID, text string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(text))
	items := make([]Task, 0)
	for _, task := range s.tasks {
		if task.OwnerID != ownerID || (projectID != "" && task.ProjectID != projectID) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(task.Name), needle) &&
			!strings.Contains(strings.ToLower(task.Description), needle) {
			continue
		}
		items = append(items, task)
	}
	SortTasks(items)
	return items, nil
}

func hasMember(members []Member, userID string) bool {
	for _, member := range members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

func cloneMembers(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

func upsertMemberList(members []Member, member Member) []Member {
	out := cloneMembers(members)
	for i := range out {
		if out[i].UserID == member.UserID {
			out[i].Role = member.Role
			return out
		}
	}
	return append(out, Member{UserID: member.UserID, Role: member.Role})
}

func removeMemberList(members []Member, userID string) ([]Member, bool) {
	out := make([]Member, 0, len(members))
	removed := false
	for _, member := range members {
		if member.UserID == userID {
			removed = true
			continue
		}
		out = append(out, member)
	}
	return out, removed
}

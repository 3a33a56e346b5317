package app

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type CreateProjectInput struct {
	Name        string
	WorkspaceID string
}

// ProjectUpdate carries the mutable project fields. WorkspaceSet reports that
// the client tried to move the project, which is never allowed.
type ProjectUpdate struct {
	Name         *string
	WorkspaceSet bool
}

// ListProjects returns the projects the user can see, optionally limited to a
// single workspace the user has access to.
func (s *Service) ListProjects(ctx context.Context, userID, workspaceID string) ([]store.Project, error) {
	if workspaceID != "" {
		if _, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, false); err != nil {
			return nil, err
		}
	}
	items, err := s.store.ListProjectsForUser(ctx, userID, workspaceID)
	if err != nil {
		return nil, internalError(err)
	}
	return items, nil
}

// CreateProject adds a project to a workspace the user belongs to. Without a
// workspace id the user's default workspace is used. The creator becomes the
// project's admin.
func (s *Service) CreateProject(ctx context.Context, userID string, in CreateProjectInput) (store.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Project{}, fieldError("name", "Project name is required")
	}

	workspaceID := in.WorkspaceID
	if workspaceID == "" {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Project{}, unauthorized()
			}
			return store.Project{}, internalError(err)
		}
		if user.DefaultWorkspaceID == "" {
			return store.Project{}, fieldError("workspace", "Workspace is required")
		}
		workspaceID = user.DefaultWorkspaceID
	}
	if _, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, false); err != nil {
		return store.Project{}, err
	}

	project := store.Project{
		ID:          util.NewID(),
		Name:        name,
		Slug:        slug.Make(name),
		WorkspaceID: workspaceID,
		Members:     []store.Member{{UserID: userID, Role: string(rbac.RoleAdmin)}},
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return store.Project{}, internalError(err)
	}
	return s.reloadProject(ctx, project.ID)
}

func (s *Service) UpdateProject(ctx context.Context, userID string, access ProjectAccess, in ProjectUpdate) (store.Project, error) {
	if err := s.RequireRole(access.entity(), userID, rbac.RoleAdmin); err != nil {
		return store.Project{}, err
	}
	if in.WorkspaceSet {
		return store.Project{}, fieldError("workspace", "A project cannot be moved to another workspace")
	}
	if in.Name == nil {
		return access.Project, nil
	}
	name := strings.TrimSpace(*in.Name)
	if name == "" {
		return store.Project{}, fieldError("name", "Project name is required")
	}
	if err := s.store.UpdateProject(ctx, access.Project.ID, name, slug.Make(name)); err != nil {
		return store.Project{}, internalError(err)
	}
	return s.reloadProject(ctx, access.Project.ID)
}

// DeleteProject removes the project and every task filed under it, whoever
// owns those tasks.
func (s *Service) DeleteProject(ctx context.Context, userID string, access ProjectAccess) (int, error) {
	if err := s.RequireRole(access.entity(), userID, rbac.RoleAdmin); err != nil {
		return 0, err
	}
	removed, err := s.store.DeleteProject(ctx, access.Project.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, accessDenied(rbac.NotFoundAsDenied)
		}
		return 0, internalError(err)
	}
	s.search.DeleteTasks(removed...)
	s.logger.Info("project deleted", "project_id", access.Project.ID, "tasks_removed", len(removed))
	return len(removed), nil
}

func (s *Service) AddProjectMember(ctx context.Context, userID string, access ProjectAccess, in MemberInput) (store.Project, error) {
	if err := s.RequireRole(access.entity(), userID, rbac.RoleAdmin); err != nil {
		return store.Project{}, err
	}
	member, err := s.resolveMember(ctx, in)
	if err != nil {
		return store.Project{}, err
	}
	if err := s.store.UpsertProjectMember(ctx, access.Project.ID, member); err != nil {
		return store.Project{}, internalError(err)
	}
	return s.reloadProject(ctx, access.Project.ID)
}

func (s *Service) RemoveProjectMember(ctx context.Context, userID string, access ProjectAccess, memberID string) (store.Project, error) {
	if err := s.RequireRole(access.entity(), userID, rbac.RoleAdmin); err != nil {
		return store.Project{}, err
	}
	if err := s.store.RemoveProjectMember(ctx, access.Project.ID, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Project{}, fieldError("userId", "User is not a member")
		}
		return store.Project{}, internalError(err)
	}
	return s.reloadProject(ctx, access.Project.ID)
}

func (s *Service) reloadProject(ctx context.Context, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, internalError(err)
	}
	return project, nil
}

package app

import (
	"context"
	"errors"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

// ProjectAccess is a project resolved for a user together with its parent
// workspace, so handlers can run role checks without another lookup.
type ProjectAccess struct {
	Project   store.Project
	Workspace store.Workspace
}

func (a ProjectAccess) entity() rbac.Entity {
	return rbac.Project(&a.Project, &a.Workspace)
}

// ResolveWorkspaceAccess loads the workspace and checks that userID owns it
// or, unless requireOwner is set, is one of its members. Missing workspaces
// are reported exactly like forbidden ones.
func (s *Service) ResolveWorkspaceAccess(ctx context.Context, userID, workspaceID string, requireOwner bool) (store.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Workspace{}, s.deny(userID, "workspace", workspaceID, rbac.CheckWorkspace(nil, userID, requireOwner))
		}
		return store.Workspace{}, internalError(err)
	}
	if result := rbac.CheckWorkspace(&ws, userID, requireOwner); !result.Granted() {
		return store.Workspace{}, s.deny(userID, "workspace", workspaceID, result)
	}
	return ws, nil
}

// ResolveProjectAccess grants project members plus owners and members of the
// parent workspace.
func (s *Service) ResolveProjectAccess(ctx context.Context, userID, projectID string) (ProjectAccess, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProjectAccess{}, s.deny(userID, "project", projectID, rbac.CheckProject(nil, nil, userID))
		}
		return ProjectAccess{}, internalError(err)
	}
	ws, err := s.store.GetWorkspace(ctx, project.WorkspaceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ProjectAccess{}, internalError(err)
	}
	access := ProjectAccess{Project: project, Workspace: ws}
	if result := rbac.CheckProject(&access.Project, &access.Workspace, userID); !result.Granted() {
		return ProjectAccess{}, s.deny(userID, "project", projectID, result)
	}
	return access, nil
}

// RequireRole fails with InsufficientPermissions when userID ranks below want
// on entity.
func (s *Service) RequireRole(entity rbac.Entity, userID string, want rbac.Role) error {
	if !rbac.RequireRole(entity, userID, want) {
		return insufficientPermissions(want)
	}
	return nil
}

func (s *Service) deny(userID, kind, id string, result rbac.AccessResult) error {
	s.logger.Debug("access denied", "user_id", userID, "kind", kind, "id", id, "result", result.String())
	return accessDenied(result)
}

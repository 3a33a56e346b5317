package app

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"

	"taskboard/api/internal/authpw"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type MemberInput struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (s *Service) ListWorkspaces(ctx context.Context, userID string) ([]store.Workspace, error) {
	items, err := s.store.ListWorkspacesForUser(ctx, userID)
	if err != nil {
		return nil, internalError(err)
	}
	return items, nil
}

func (s *Service) CreateWorkspace(ctx context.Context, userID, name string) (store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Workspace{}, fieldError("name", "Workspace name is required")
	}
	ws := store.Workspace{
		ID:      util.NewID(),
		Name:    name,
		Slug:    slug.Make(name),
		OwnerID: userID,
		Members: []store.Member{{UserID: userID, Role: string(rbac.RoleAdmin)}},
	}
	if err := s.store.InsertWorkspace(ctx, ws); err != nil {
		return store.Workspace{}, internalError(err)
	}
	return s.reloadWorkspace(ctx, ws.ID)
}

func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (store.Workspace, error) {
	return s.ResolveWorkspaceAccess(ctx, userID, workspaceID, false)
}

func (s *Service) UpdateWorkspace(ctx context.Context, userID, workspaceID, name string) (store.Workspace, error) {
	if _, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, true); err != nil {
		return store.Workspace{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Workspace{}, fieldError("name", "Workspace name is required")
	}
	if err := s.store.UpdateWorkspace(ctx, workspaceID, name, slug.Make(name)); err != nil {
		return store.Workspace{}, internalError(err)
	}
	return s.reloadWorkspace(ctx, workspaceID)
}

// DeleteWorkspace removes the workspace with all of its projects and their
// tasks. Only the owner may do this.
func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) (int, error) {
	if _, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, true); err != nil {
		return 0, err
	}
	removed, err := s.store.DeleteWorkspace(ctx, workspaceID)
	if err != nil {
		return 0, internalError(err)
	}
	s.search.DeleteTasks(removed...)
	s.logger.Info("workspace deleted", "workspace_id", workspaceID, "tasks_removed", len(removed))
	return len(removed), nil
}

func (s *Service) AddWorkspaceMember(ctx context.Context, userID, workspaceID string, in MemberInput) (store.Workspace, error) {
	ws, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, true)
	if err != nil {
		return store.Workspace{}, err
	}
	member, err := s.resolveMember(ctx, in)
	if err != nil {
		return store.Workspace{}, err
	}
	if member.UserID == ws.OwnerID {
		return store.Workspace{}, fieldError("userId", "The workspace owner is always an admin")
	}
	if err := s.store.UpsertWorkspaceMember(ctx, workspaceID, member); err != nil {
		return store.Workspace{}, internalError(err)
	}
	return s.reloadWorkspace(ctx, workspaceID)
}

func (s *Service) RemoveWorkspaceMember(ctx context.Context, userID, workspaceID, memberID string) (store.Workspace, error) {
	ws, err := s.ResolveWorkspaceAccess(ctx, userID, workspaceID, true)
	if err != nil {
		return store.Workspace{}, err
	}
	if memberID == ws.OwnerID {
		return store.Workspace{}, fieldError("userId", "The workspace owner cannot be removed")
	}
	if err := s.store.RemoveWorkspaceMember(ctx, workspaceID, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Workspace{}, fieldError("userId", "User is not a member")
		}
		return store.Workspace{}, internalError(err)
	}
	return s.reloadWorkspace(ctx, workspaceID)
}

func (s *Service) reloadWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, internalError(err)
	}
	return ws, nil
}

// resolveMember turns a member request into a (user, role) pair. The user
// is looked up by id when given, otherwise by email.
func (s *Service) resolveMember(ctx context.Context, in MemberInput) (store.Member, error) {
	roleName := strings.TrimSpace(in.Role)
	if roleName == "" {
		roleName = string(rbac.RoleMember)
	}
	role, ok := rbac.ParseRole(roleName)
	if !ok {
		return store.Member{}, fieldError("role", "Role must be admin or member")
	}

	var (
		user store.User
		err  error
	)
	switch {
	case strings.TrimSpace(in.UserID) != "":
		id, parseErr := util.ParseID(in.UserID)
		if parseErr != nil {
			return store.Member{}, malformedID("userId")
		}
		user, err = s.store.GetUserByID(ctx, id)
	case strings.TrimSpace(in.Email) != "":
		user, err = s.store.GetUserByEmail(ctx, authpw.NormalizeEmail(in.Email))
	default:
		return store.Member{}, fieldError("userId", "userId or email is required")
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Member{}, fieldError("userId", "User not found")
		}
		return store.Member{}, internalError(err)
	}
	return store.Member{UserID: user.ID, Role: string(role), Email: user.Email}, nil
}

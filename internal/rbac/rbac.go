package rbac

import "taskboard/api/internal/store"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func rank(role Role) int {
	switch role {
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether have ranks at or above want (member < admin).
func AtLeast(have, want Role) bool {
	return rank(have) > 0 && rank(have) >= rank(want)
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}

// ParseRole accepts exactly the two membership roles.
func ParseRole(role string) (Role, bool) {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role), true
	default:
		return "", false
	}
}

type AccessResult int

const (
	Denied AccessResult = iota
	NotFoundAsDenied
	Granted
)

func (r AccessResult) Granted() bool {
	return r == Granted
}

func (r AccessResult) String() string {
	switch r {
	case Granted:
		return "granted"
	case NotFoundAsDenied:
		return "not_found"
	default:
		return "denied"
	}
}

// Entity is anything that carries a membership list.
type Entity interface {
	RoleOf(userID string) (Role, bool)
}

type workspaceEntity struct {
	ws *store.Workspace
}

func Workspace(ws *store.Workspace) Entity {
	return workspaceEntity{ws: ws}
}

func (e workspaceEntity) RoleOf(userID string) (Role, bool) {
	if e.ws == nil || userID == "" {
		return "", false
	}
	if e.ws.OwnerID == userID {
		return RoleAdmin, true
	}
	return memberRole(e.ws.Members, userID)
}

type projectEntity struct {
	project *store.Project
	parent  *store.Workspace
}

// Project resolves roles from the project's own members first, then falls
// back to the parent workspace when one is given.
func Project(project *store.Project, parent *store.Workspace) Entity {
	return projectEntity{project: project, parent: parent}
}

func (e projectEntity) RoleOf(userID string) (Role, bool) {
	if e.project == nil || userID == "" {
		return "", false
	}
	projectRole, inProject := memberRole(e.project.Members, userID)
	if e.parent != nil && e.parent.OwnerID == userID {
		return RoleAdmin, true
	}
	if inProject {
		return projectRole, true
	}
	if e.parent != nil && e.parent.ID == e.project.WorkspaceID {
		if _, ok := memberRole(e.parent.Members, userID); ok {
			return RoleMember, true
		}
	}
	return "", false
}

func memberRole(members []store.Member, userID string) (Role, bool) {
	for _, member := range members {
		if member.UserID == userID {
			return Normalize(member.Role), true
		}
	}
	return "", false
}

func RequireRole(e Entity, userID string, want Role) bool {
	have, ok := e.RoleOf(userID)
	return ok && AtLeast(have, want)
}

// CheckWorkspace grants owners and members; requireOwner restricts to the owner.
func CheckWorkspace(ws *store.Workspace, userID string, requireOwner bool) AccessResult {
	if ws == nil {
		return NotFoundAsDenied
	}
	if ws.OwnerID == userID {
		return Granted
	}
	if requireOwner {
		return Denied
	}
	if _, ok := memberRole(ws.Members, userID); ok {
		return Granted
	}
	return Denied
}

// CheckProject grants project members and anyone who owns or belongs to the
// parent workspace.
func CheckProject(project *store.Project, parent *store.Workspace, userID string) AccessResult {
	if project == nil {
		return NotFoundAsDenied
	}
	if _, ok := Project(project, parent).RoleOf(userID); ok {
		return Granted
	}
	return Denied
}

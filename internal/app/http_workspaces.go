package app

import (
	"net/http"

	"taskboard/api/internal/store"
)

func (s *HTTPServer) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	items, err := s.service.ListWorkspaces(r.Context(), session.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceViews(items))
}

func (s *HTTPServer) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	ws, err := s.service.CreateWorkspace(r.Context(), session.UserID, body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkspaceView(ws))
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	s.withWorkspaceID(w, r, func(userID, workspaceID string) (store.Workspace, error) {
		return s.service.GetWorkspace(r.Context(), userID, workspaceID)
	})
}

func (s *HTTPServer) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withWorkspaceID(w, r, func(userID, workspaceID string) (store.Workspace, error) {
		return s.service.UpdateWorkspace(r.Context(), userID, workspaceID, body.Name)
	})
}

func (s *HTTPServer) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := pathID(r, "workspaceID", "workspaceId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	removed, err := s.service.DeleteWorkspace(r.Context(), session.UserID, workspaceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tasksRemoved": removed})
}

func (s *HTTPServer) handleAddWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	var body MemberInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withWorkspaceID(w, r, func(userID, workspaceID string) (store.Workspace, error) {
		return s.service.AddWorkspaceMember(r.Context(), userID, workspaceID, body)
	})
}

func (s *HTTPServer) handleRemoveWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "userID", "userId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.withWorkspaceID(w, r, func(userID, workspaceID string) (store.Workspace, error) {
		return s.service.RemoveWorkspaceMember(r.Context(), userID, workspaceID, memberID)
	})
}

// withWorkspaceID parses the {workspaceID} parameter, runs fn and renders the
// resulting workspace.
func (s *HTTPServer) withWorkspaceID(w http.ResponseWriter, r *http.Request, fn func(userID, workspaceID string) (store.Workspace, error)) {
	workspaceID, err := pathID(r, "workspaceID", "workspaceId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	ws, err := fn(session.UserID, workspaceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceView(ws))
}

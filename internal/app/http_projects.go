package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"taskboard/api/internal/util"
)

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	workspaceID := ""
	if raw := strings.TrimSpace(r.URL.Query().Get("workspaceId")); raw != "" {
		parsed, err := util.ParseID(raw)
		if err != nil {
			s.fail(w, r, malformedID("workspaceId"))
			return
		}
		workspaceID = parsed
	}
	session := sessionFromContext(r.Context())
	items, err := s.service.ListProjects(r.Context(), session.UserID, workspaceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectViews(items))
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Workspace   string `json:"workspace"`
		WorkspaceID string `json:"workspaceId"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	workspaceID := ""
	if raw := strings.TrimSpace(firstNonEmpty(body.Workspace, body.WorkspaceID)); raw != "" {
		parsed, err := util.ParseID(raw)
		if err != nil {
			s.fail(w, r, malformedID("workspace"))
			return
		}
		workspaceID = parsed
	}

	session := sessionFromContext(r.Context())
	project, err := s.service.CreateProject(r.Context(), session.UserID, CreateProjectInput{
		Name:        body.Name,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(project))
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	access, _ := projectFromContext(r.Context())
	writeJSON(w, http.StatusOK, toProjectView(access.Project))
}

func (s *HTTPServer) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		s.fail(w, r, err)
		return
	}

	var update ProjectUpdate
	if value, ok := raw["name"]; ok {
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			s.fail(w, r, fieldError("name", "name must be a string"))
			return
		}
		update.Name = &name
	}
	_, hasWorkspace := raw["workspace"]
	_, hasWorkspaceID := raw["workspaceId"]
	update.WorkspaceSet = hasWorkspace || hasWorkspaceID

	access, _ := projectFromContext(r.Context())
	session := sessionFromContext(r.Context())
	project, err := s.service.UpdateProject(r.Context(), session.UserID, access, update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(project))
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	access, _ := projectFromContext(r.Context())
	session := sessionFromContext(r.Context())
	removed, err := s.service.DeleteProject(r.Context(), session.UserID, access)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tasksRemoved": removed})
}

func (s *HTTPServer) handleAddProjectMember(w http.ResponseWriter, r *http.Request) {
	var body MemberInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	access, _ := projectFromContext(r.Context())
	session := sessionFromContext(r.Context())
	project, err := s.service.AddProjectMember(r.Context(), session.UserID, access, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(project))
}

func (s *HTTPServer) handleRemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "userID", "userId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	access, _ := projectFromContext(r.Context())
	session := sessionFromContext(r.Context())
	project, err := s.service.RemoveProjectMember(r.Context(), session.UserID, access, memberID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(project))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

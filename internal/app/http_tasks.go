package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"taskboard/api/internal/search"
)

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := ""
	if access, ok := projectFromContext(r.Context()); ok {
		projectID = access.Project.ID
	}
	session := sessionFromContext(r.Context())
	items, err := s.service.ListTasks(r.Context(), session.UserID, projectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskViews(items))
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := parseTaskFields(raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	projectID := ""
	if access, ok := projectFromContext(r.Context()); ok {
		projectID = access.Project.ID
	}
	session := sessionFromContext(r.Context())
	task, err := s.service.CreateTask(r.Context(), session.UserID, projectID, fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskView(task))
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID", "taskId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	task, err := s.service.GetTask(r.Context(), session.UserID, taskID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(task))
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID", "taskId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var raw map[string]json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		s.fail(w, r, err)
		return
	}
	patch, err := parseTaskFields(raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Moving a task is only allowed into the project projectScope resolved.
	if patch.ProjectID != nil && *patch.ProjectID != "" {
		access, ok := projectFromContext(r.Context())
		if !ok || access.Project.ID != *patch.ProjectID {
			s.fail(w, r, badRequest("project does not match the request scope"))
			return
		}
		patch.ProjectID = &access.Project.ID
	}

	session := sessionFromContext(r.Context())
	task, err := s.service.UpdateTask(r.Context(), session.UserID, taskID, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(task))
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID", "taskId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	if err := s.service.DeleteTask(r.Context(), session.UserID, taskID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleOrderTasks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderUpdates []OrderInput `json:"orderUpdates"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	session := sessionFromContext(r.Context())
	result, err := s.service.ApplyTaskOrder(r.Context(), session.UserID, body.OrderUpdates)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	query := search.Query{Text: strings.TrimSpace(r.URL.Query().Get("q"))}
	if access, ok := projectFromContext(r.Context()); ok {
		query.ProjectID = access.Project.ID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, r, fieldError("limit", "limit must be an integer"))
			return
		}
		query.Limit = limit
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			s.fail(w, r, fieldError("offset", "offset must be a non-negative integer"))
			return
		}
		query.Offset = offset
	}

	session := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, s.service.SearchTasks(r.Context(), session.UserID, query))
}

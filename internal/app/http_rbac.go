package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"taskboard/api/internal/util"
)

// projectScope resolves the project a task request is scoped to. The id comes
// from the projectId query parameter or the project/projectId body field; a
// request without one passes through unscoped. A malformed id, or a query id
// that disagrees with the body, is rejected before any store access.
func (s *HTTPServer) projectScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromQuery, err := parseOptionalID(r.URL.Query().Get("projectId"), "projectId")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rawBody, err := projectIDFromBody(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		fromBody, err := parseOptionalID(rawBody, "project")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if fromQuery != "" && fromBody != "" && fromQuery != fromBody {
			s.fail(w, r, badRequest("projectId query parameter does not match the body project"))
			return
		}

		projectID := fromQuery
		if projectID == "" {
			projectID = fromBody
		}
		if projectID == "" {
			next.ServeHTTP(w, r)
			return
		}
		session := sessionFromContext(r.Context())
		access, err := s.service.ResolveProjectAccess(r.Context(), session.UserID, projectID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, withProject(r, access))
	})
}

// projectFromPath resolves the {projectID} route parameter.
func (s *HTTPServer) projectFromPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, err := pathID(r, "projectID", "projectId")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		session := sessionFromContext(r.Context())
		access, err := s.service.ResolveProjectAccess(r.Context(), session.UserID, projectID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, withProject(r, access))
	})
}

// projectIDFromBody peeks at a JSON body for a project reference and puts the
// bytes back for the handler. Bodies that are not JSON objects are left for
// the handler to reject.
func projectIDFromBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Method == http.MethodGet {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		return "", badRequest("Invalid JSON body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", nil
	}
	for _, key := range []string{"project", "projectId"} {
		value, ok := fields[key]
		if !ok || isNull(value) {
			continue
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return "", malformedID(key)
		}
		return strings.TrimSpace(text), nil
	}
	return "", nil
}

func parseOptionalID(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	id, err := util.ParseID(raw)
	if err != nil {
		return "", malformedID(field)
	}
	return id, nil
}

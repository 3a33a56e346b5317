package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// Task order is stored as a 32-bit integer.
const (
	minTaskOrder = math.MinInt32
	maxTaskOrder = math.MaxInt32
)

func validOrder(order int) bool {
	return order >= minTaskOrder && order <= maxTaskOrder
}

type OrderInput struct {
	ID    string `json:"_id"`
	Order int    `json:"order"`
}

type OrderResult struct {
	OK      bool `json:"ok"`
	Updated int  `json:"updated"`
	Skipped int  `json:"skipped"`
}

func (s *Service) ListTasks(ctx context.Context, userID, projectID string) ([]store.Task, error) {
	items, err := s.store.ListTasks(ctx, userID, projectID)
	if err != nil {
		return nil, internalError(err)
	}
	return items, nil
}

// CreateTask stores a new task for userID. projectID is empty for tasks that
// are not filed under a project; callers have already checked access to it.
func (s *Service) CreateTask(ctx context.Context, userID, projectID string, fields store.TaskPatch) (store.Task, error) {
	if fields.Name == nil || strings.TrimSpace(*fields.Name) == "" {
		return store.Task{}, fieldError("name", "Task name is required")
	}
	task := store.Task{
		ID:        util.NewID(),
		OwnerID:   userID,
		ProjectID: projectID,
		Priority:  store.PriorityMedium,
	}
	fields.ProjectID = nil
	fields.Apply(&task)
	task.Name = strings.TrimSpace(task.Name)

	if err := s.store.InsertTask(ctx, task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Task{}, accessDenied(rbac.NotFoundAsDenied)
		}
		return store.Task{}, internalError(err)
	}
	created, err := s.store.GetOwnedTask(ctx, userID, task.ID)
	if err != nil {
		return store.Task{}, internalError(err)
	}
	s.search.IndexTask(created)
	return created, nil
}

func (s *Service) GetTask(ctx context.Context, userID, taskID string) (store.Task, error) {
	task, err := s.store.GetOwnedTask(ctx, userID, taskID)
	if err != nil {
		return store.Task{}, taskError(err)
	}
	return task, nil
}

func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, patch store.TaskPatch) (store.Task, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return store.Task{}, fieldError("name", "Task name is required")
		}
		patch.Name = &name
	}
	task, err := s.store.UpdateTask(ctx, userID, taskID, patch)
	if err != nil {
		return store.Task{}, taskError(err)
	}
	s.search.IndexTask(task)
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.store.DeleteTask(ctx, userID, taskID); err != nil {
		return taskError(err)
	}
	s.search.DeleteTasks(taskID)
	return nil
}

// ApplyTaskOrder writes a full client-side reindex in one batch. Tasks the
// caller does not own are skipped and counted.
func (s *Service) ApplyTaskOrder(ctx context.Context, userID string, updates []OrderInput) (OrderResult, error) {
	if len(updates) == 0 {
		return OrderResult{}, fieldError("orderUpdates", "orderUpdates must not be empty")
	}
	batch := make([]store.OrderUpdate, 0, len(updates))
	for _, update := range updates {
		id, err := util.ParseID(update.ID)
		if err != nil {
			return OrderResult{}, malformedID("_id")
		}
		if !validOrder(update.Order) {
			return OrderResult{}, fieldError("order", "order is out of range")
		}
		batch = append(batch, store.OrderUpdate{ID: id, Order: update.Order})
	}
	applied, err := s.store.ApplyTaskOrder(ctx, userID, batch)
	if err != nil {
		return OrderResult{}, internalError(err)
	}
	if skipped := len(batch) - applied; skipped > 0 {
		s.logger.Debug("order batch skipped tasks", "user_id", userID, "skipped", skipped)
	}
	return OrderResult{OK: true, Updated: applied, Skipped: len(batch) - applied}, nil
}

func (s *Service) SearchTasks(ctx context.Context, userID string, q search.Query) search.Response {
	q.OwnerID = userID
	return s.search.Search(ctx, q)
}

func taskError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return accessDenied(rbac.NotFoundAsDenied)
	}
	return internalError(err)
}

// parseTaskFields reads the task fields present in a JSON object. An explicit
// null clears description, dueDate and project; absent keys stay untouched.
func parseTaskFields(raw map[string]json.RawMessage) (store.TaskPatch, error) {
	var patch store.TaskPatch

	if value, ok := raw["name"]; ok {
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			return patch, fieldError("name", "name must be a string")
		}
		patch.Name = &name
	}
	if value, ok := raw["description"]; ok {
		description := ""
		if !isNull(value) {
			if err := json.Unmarshal(value, &description); err != nil {
				return patch, fieldError("description", "description must be a string")
			}
		}
		patch.Description = &description
	}
	if value, ok := raw["priority"]; ok && !isNull(value) {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return patch, fieldError("priority", "priority must be High, Medium or Low")
		}
		priority, valid := store.ParsePriority(text)
		if !valid {
			return patch, fieldError("priority", "priority must be High, Medium or Low")
		}
		patch.Priority = &priority
	}
	if value, ok := raw["dueDate"]; ok {
		if isNull(value) {
			patch.ClearDueDate = true
		} else {
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return patch, fieldError("dueDate", "dueDate must be a date string")
			}
			if strings.TrimSpace(text) == "" {
				patch.ClearDueDate = true
			} else {
				due, err := parseDueDate(text)
				if err != nil {
					return patch, fieldError("dueDate", "dueDate must be a date string")
				}
				patch.DueDate = &due
			}
		}
	}
	if value, ok := raw["completed"]; ok {
		var completed bool
		if err := json.Unmarshal(value, &completed); err != nil {
			return patch, fieldError("completed", "completed must be a boolean")
		}
		patch.Completed = &completed
	}
	if value, ok := raw["order"]; ok {
		var order int
		if err := json.Unmarshal(value, &order); err != nil {
			return patch, fieldError("order", "order must be an integer")
		}
		if !validOrder(order) {
			return patch, fieldError("order", "order is out of range")
		}
		patch.Order = &order
	}
	for _, key := range []string{"project", "projectId"} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		projectID := ""
		if !isNull(value) {
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return patch, malformedID(key)
			}
			if strings.TrimSpace(text) != "" {
				parsed, err := util.ParseID(text)
				if err != nil {
					return patch, malformedID(key)
				}
				projectID = parsed
			}
		}
		patch.ProjectID = &projectID
		break
	}
	return patch, nil
}

func parseDueDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if due, err := time.Parse(time.RFC3339, text); err == nil {
		return due.UTC(), nil
	}
	due, err := time.Parse(time.DateOnly, text)
	if err != nil {
		return time.Time{}, err
	}
	return due.UTC(), nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

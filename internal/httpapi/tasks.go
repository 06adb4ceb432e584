package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"kanbanlite-backend/internal/analytics"
	"kanbanlite-backend/internal/board"
	"kanbanlite-backend/internal/model"
)

type createTaskRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Deadline    string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Status      string `json:"status"`
	Priority    string `json:"priority" validate:"omitempty,oneof=Low Medium High"`
}

type moveTaskRequest struct {
	Status string `json:"status" validate:"required"`
}

type reorderRequest struct {
	SourceIndex      *int `json:"sourceIndex" validate:"required"`
	DestinationIndex *int `json:"destinationIndex" validate:"required"`
}

func (s *Server) listProjectTasks(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id := r.PathValue("id")
	if _, ok := s.state.ProjectByID(id); !ok {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	tasks := s.state.TasksForProject(id)
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	t, ok := s.state.TaskByID(r.PathValue("id"))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	var req createTaskRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.svc.CreateTask(r.Context(), projectID, req.Title, req.Description, req.Deadline,
		model.Status(req.Status), model.Priority(req.Priority))
	if err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "task_created", map[string]any{
		"project_id": projectID,
		"task_id":    t.ID,
		"status":     string(t.Status),
		"priority":   string(t.Priority),
	}, analytics.SourceEventKeyFromRequest(r))

	writeJSON(w, http.StatusCreated, t)
}

// updateTask is the one endpoint with three-way field semantics: a key that
// is absent stays unchanged, present-and-null clears, present-and-set
// overwrites. The body is decoded to raw messages first so "absent" and
// "null" stay distinguishable.
func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	u, err := taskUpdateFromJSON(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.svc.UpdateTask(r.Context(), id, u); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "task_updated", map[string]any{
		"task_id": id,
		"fields":  rawKeys(raw),
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

var jsonNull = []byte("null")

func taskUpdateFromJSON(raw map[string]json.RawMessage) (board.TaskUpdate, error) {
	var u board.TaskUpdate
	for key, val := range raw {
		cleared := bytes.Equal(bytes.TrimSpace(val), jsonNull)
		switch key {
		case "title":
			if cleared {
				u.Title = board.Clear[string]()
				continue
			}
			var v string
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Title = board.Set(v)
		case "description":
			if cleared {
				u.Description = board.Clear[string]()
				continue
			}
			var v string
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Description = board.Set(v)
		case "status":
			if cleared {
				u.Status = board.Clear[model.Status]()
				continue
			}
			var v model.Status
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Status = board.Set(v)
		case "priority":
			if cleared {
				u.Priority = board.Clear[model.Priority]()
				continue
			}
			var v model.Priority
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Priority = board.Set(v)
		case "deadline":
			if cleared {
				u.Deadline = board.Clear[string]()
				continue
			}
			var v string
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Deadline = board.Set(v)
		case "order":
			if cleared {
				u.Order = board.Clear[int64]()
				continue
			}
			var v int64
			if err := json.Unmarshal(val, &v); err != nil {
				return u, err
			}
			u.Order = board.Set(v)
		}
	}
	return u, nil
}

func rawKeys(raw map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	return keys
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.DeleteTask(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "task_deleted", map[string]any{
		"task_id": id,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var req moveTaskRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.svc.MoveTask(r.Context(), taskID, model.Status(req.Status)); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "task_moved", map[string]any{
		"task_id": taskID,
		"status":  req.Status,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	var req reorderRequest
	if !s.decode(w, r, &req) {
		return
	}

	assignments, err := s.svc.ReorderTasks(r.Context(), projectID, *req.SourceIndex, *req.DestinationIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "tasks_reordered", map[string]any{
		"project_id": projectID,
		"from":       *req.SourceIndex,
		"to":         *req.DestinationIndex,
		"task_count": len(assignments),
	}, analytics.SourceEventKeyFromRequest(r))

	writeJSON(w, http.StatusOK, assignments)
}

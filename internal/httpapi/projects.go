package httpapi

import (
	"net/http"

	"kanbanlite-backend/internal/analytics"
)

type projectRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=200"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.state.Projects())
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	p, ok := s.state.ProjectByID(r.PathValue("id"))
	if !ok {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.svc.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "project_created", map[string]any{
		"project_id": p.ID,
		"name_len":   len(req.Name),
	}, analytics.SourceEventKeyFromRequest(r))

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req projectRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.svc.UpdateProject(r.Context(), id, req.Name, req.Description); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "project_updated", map[string]any{
		"project_id": id,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	taskCount := len(s.state.TasksForProject(id))

	if err := s.svc.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "project_deleted", map[string]any{
		"project_id": id,
		"task_count": taskCount,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

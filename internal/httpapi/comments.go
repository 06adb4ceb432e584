package httpapi

import (
	"net/http"

	"kanbanlite-backend/internal/analytics"
	"kanbanlite-backend/internal/board"
	"kanbanlite-backend/internal/model"
)

type addCommentRequest struct {
	Text     string `json:"text" validate:"required,max=500"`
	FileURL  string `json:"fileURL"`
	FileName string `json:"fileName"`
}

type updateCommentRequest struct {
	Text             *string `json:"text" validate:"omitempty,max=500"`
	AttachmentAction string  `json:"attachmentAction" validate:"omitempty,oneof=keep remove replace"`
	FileURL          string  `json:"fileURL"`
	FileName         string  `json:"fileName"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	t, ok := s.state.TaskByID(r.PathValue("id"))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	comments := board.CommentsForDisplay(t)
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var req addCommentRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.svc.AddComment(r.Context(), taskID, req.Text, req.FileURL, req.FileName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "comment_added", map[string]any{
		"task_id":        taskID,
		"comment_id":     c.ID,
		"text_len":       len(req.Text),
		"has_attachment": c.HasAttachment(),
	}, analytics.SourceEventKeyFromRequest(r))

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	commentID := r.PathValue("commentID")
	var req updateCommentRequest
	if !s.decode(w, r, &req) {
		return
	}

	u := board.CommentUpdate{
		Attachment: board.AttachmentAction(req.AttachmentAction),
		FileURL:    req.FileURL,
		FileName:   req.FileName,
	}
	if req.Text != nil {
		u.Text = board.Set(*req.Text)
	}

	if err := s.svc.UpdateComment(r.Context(), taskID, commentID, u); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "comment_updated", map[string]any{
		"task_id":           taskID,
		"comment_id":        commentID,
		"attachment_action": req.AttachmentAction,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	commentID := r.PathValue("commentID")

	if err := s.svc.DeleteComment(r.Context(), taskID, commentID); err != nil {
		s.writeError(w, err)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "comment_deleted", map[string]any{
		"task_id":    taskID,
		"comment_id": commentID,
	}, analytics.SourceEventKeyFromRequest(r))

	w.WriteHeader(http.StatusNoContent)
}

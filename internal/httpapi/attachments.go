package httpapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"kanbanlite-backend/internal/analytics"
)

const maxAttachmentSize = 20 << 20 // 20 MiB

// uploadAttachment stores a blob and returns the reference pair the client
// records on a comment afterwards. Upload-then-reference ordering means a
// comment save that fails leaves an orphaned blob, which the comment path
// cleans up best-effort; the reverse (a reference to a missing blob) can
// never happen.
func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	taskID := r.FormValue("taskId")
	if taskID == "" {
		http.Error(w, "taskId is required", http.StatusBadRequest)
		return
	}
	// The id goes into the storage path, so only ids of live tasks are
	// accepted; anything else could smuggle path segments.
	if _, ok := s.state.TaskByID(taskID); !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	name := filepath.Base(header.Filename)
	path := fmt.Sprintf("task_attachments/%s/%d_%s", taskID, time.Now().UnixMilli(), name)

	url, err := s.blobs.Upload(r.Context(), path, file)
	if err != nil {
		s.log.WithError(err).Error("attachment upload failed")
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	env := analytics.FromRequest(r)
	_ = analytics.Log(r.Context(), s.analyticsDB, env, "attachment_uploaded", map[string]any{
		"task_id":  taskID,
		"size":     header.Size,
		"name_len": len(name),
	}, analytics.SourceEventKeyFromRequest(r))

	writeJSON(w, http.StatusCreated, map[string]string{
		"fileURL":  url,
		"fileName": name,
	})
}

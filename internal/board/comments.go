package board

import (
	"context"
	"sort"
	"unicode/utf8"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/docstore"
	"kanbanlite-backend/internal/model"
)

// AttachmentAction says what an update does with a comment's attachment.
type AttachmentAction string

const (
	AttachmentKeep    AttachmentAction = "keep"
	AttachmentRemove  AttachmentAction = "remove"
	AttachmentReplace AttachmentAction = "replace"
)

func (a AttachmentAction) Valid() bool {
	return a == AttachmentKeep || a == AttachmentRemove || a == AttachmentReplace
}

func validateCommentText(text string) error {
	if text == "" {
		return apperr.Validation("comment text is required")
	}
	if utf8.RuneCountInString(text) > model.MaxCommentTextLen {
		return apperr.Validation("comment text exceeds %d characters", model.MaxCommentTextLen)
	}
	return nil
}

// AddComment appends a comment to the task. An attachment must already be in
// the blob store; the caller passes the resulting reference pair and this
// method only records it. If recording fails, the freshly-uploaded blob is
// orphaned, so it gets a best-effort cleanup delete.
func (s *Service) AddComment(ctx context.Context, taskID, text, fileURL, fileName string) (model.Comment, error) {
	if err := validateCommentText(text); err != nil {
		return model.Comment{}, err
	}
	if (fileURL == "") != (fileName == "") {
		return model.Comment{}, apperr.Validation("fileURL and fileName must both be present or both absent")
	}
	t, ok := s.state.TaskByID(taskID)
	if !ok {
		return model.Comment{}, apperr.NotFound("task %s", taskID)
	}

	c := model.Comment{
		ID:        s.newID(),
		Text:      text,
		CreatedAt: s.now().UTC(),
		FileURL:   fileURL,
		FileName:  fileName,
	}
	comments := append(append([]model.Comment(nil), t.Comments...), c)
	if err := s.store.UpdateTask(ctx, taskID, docstore.Fields{"comments": comments}); err != nil {
		if fileURL != "" {
			s.deleteBlobsAndSettle(ctx, []string{fileURL})
		}
		return model.Comment{}, s.storeErr(err, "add comment")
	}
	return c, nil
}

// CommentUpdate is a partial change to one comment.
type CommentUpdate struct {
	Text       Opt[string]
	Attachment AttachmentAction
	// FileURL/FileName carry the replacement reference when Attachment is
	// AttachmentReplace; the new blob is already uploaded at this point.
	FileURL  string
	FileName string
}

// UpdateComment edits text and/or attachment. The superseded blob is
// scheduled for deletion only after the new state of the comment is durably
// recorded: a failed write must never cost the old attachment, and a failed
// old-blob delete must never dangle the record. UpdatedAt is set on any
// successful update.
func (s *Service) UpdateComment(ctx context.Context, taskID, commentID string, u CommentUpdate) error {
	if u.Attachment == "" {
		u.Attachment = AttachmentKeep
	}
	if !u.Attachment.Valid() {
		return apperr.Validation("unknown attachment action %q", u.Attachment)
	}
	if v, ok := u.Text.Get(); ok {
		if err := validateCommentText(v); err != nil {
			return err
		}
	} else if u.Text.IsClear() {
		return apperr.Validation("comment text cannot be cleared")
	}
	if u.Attachment == AttachmentReplace && (u.FileURL == "" || u.FileName == "") {
		return apperr.Validation("replace requires fileURL and fileName")
	}

	t, ok := s.state.TaskByID(taskID)
	if !ok {
		return apperr.NotFound("task %s", taskID)
	}
	old, idx, ok := t.CommentByID(commentID)
	if !ok {
		return apperr.NotFound("comment %s on task %s", commentID, taskID)
	}

	updated := old
	if v, ok := u.Text.Get(); ok {
		updated.Text = v
	}
	var supersededURL string
	switch u.Attachment {
	case AttachmentRemove:
		supersededURL = old.FileURL
		updated.FileURL = ""
		updated.FileName = ""
	case AttachmentReplace:
		supersededURL = old.FileURL
		updated.FileURL = u.FileURL
		updated.FileName = u.FileName
	}
	now := s.now().UTC()
	updated.UpdatedAt = &now

	comments := append([]model.Comment(nil), t.Comments...)
	comments[idx] = updated
	if err := s.store.UpdateTask(ctx, taskID, docstore.Fields{"comments": comments}); err != nil {
		return s.storeErr(err, "update comment")
	}

	if supersededURL != "" {
		s.deleteBlobsAndSettle(ctx, []string{supersededURL})
	}
	return nil
}

// DeleteComment removes a comment and then best-effort deletes its
// attachment blob.
func (s *Service) DeleteComment(ctx context.Context, taskID, commentID string) error {
	t, ok := s.state.TaskByID(taskID)
	if !ok {
		return apperr.NotFound("task %s", taskID)
	}
	old, idx, ok := t.CommentByID(commentID)
	if !ok {
		return apperr.NotFound("comment %s on task %s", commentID, taskID)
	}

	comments := append([]model.Comment(nil), t.Comments...)
	comments = append(comments[:idx], comments[idx+1:]...)
	if err := s.store.UpdateTask(ctx, taskID, docstore.Fields{"comments": comments}); err != nil {
		return s.storeErr(err, "delete comment")
	}

	if old.HasAttachment() {
		s.deleteBlobsAndSettle(ctx, []string{old.FileURL})
	}
	return nil
}

// CommentsForDisplay returns a task's comments newest first. Storage keeps
// insertion order; recency ordering is derived here, never persisted.
func CommentsForDisplay(t model.Task) []model.Comment {
	out := append([]model.Comment(nil), t.Comments...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

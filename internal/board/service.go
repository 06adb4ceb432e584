package board

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/blob"
	"kanbanlite-backend/internal/docstore"
	"kanbanlite-backend/internal/model"
)

const idLen = 16

// Service is the mutation surface of the board. Reads come from the local
// State mirror; writes go to the document store and become visible only when
// the next snapshot arrives (no optimistic local reflection, so every
// mutation has a visible round trip). Field-level last-write-wins is the
// accepted concurrency model; there are no version tokens.
type Service struct {
	store docstore.Store
	blobs blob.Store
	state *State
	log   *logrus.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store docstore.Store, blobs blob.Store, state *State, log *logrus.Logger) *Service {
	return &Service{
		store: store,
		blobs: blobs,
		state: state,
		log:   log,
		now:   time.Now,
		newID: func() string { return gonanoid.Must(idLen) },
	}
}

func (s *Service) storeErr(err error, msg string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("%s: %v", msg, err)
	}
	return apperr.Store(err, msg)
}

// CreateProject validates and writes a new project record.
func (s *Service) CreateProject(ctx context.Context, name, description string) (model.Project, error) {
	if name == "" {
		return model.Project{}, apperr.Validation("project name is required")
	}
	if utf8.RuneCountInString(name) > model.MaxProjectNameLen {
		return model.Project{}, apperr.Validation("project name exceeds %d characters", model.MaxProjectNameLen)
	}
	if utf8.RuneCountInString(description) > model.MaxProjectDescLen {
		return model.Project{}, apperr.Validation("project description exceeds %d characters", model.MaxProjectDescLen)
	}

	p := model.Project{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return model.Project{}, s.storeErr(err, "create project")
	}
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, id, name, description string) error {
	if name == "" {
		return apperr.Validation("project name is required")
	}
	if utf8.RuneCountInString(name) > model.MaxProjectNameLen {
		return apperr.Validation("project name exceeds %d characters", model.MaxProjectNameLen)
	}
	if utf8.RuneCountInString(description) > model.MaxProjectDescLen {
		return apperr.Validation("project description exceeds %d characters", model.MaxProjectDescLen)
	}
	if _, ok := s.state.ProjectByID(id); !ok {
		return apperr.NotFound("project %s", id)
	}

	f := docstore.Fields{"name": name}
	if description == "" {
		f["description"] = nil
	} else {
		f["description"] = description
	}
	if err := s.store.UpdateProject(ctx, id, f); err != nil {
		return s.storeErr(err, "update project")
	}
	return nil
}

// DeleteProject cascades: every comment attachment under the project gets a
// best-effort blob delete, then all task records and the project record go
// in a single all-or-nothing batch. Blob deletion failures are logged and
// swallowed; the method waits for all attempts to settle before returning,
// so "delete finished" means cleanup was at least attempted.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, ok := s.state.ProjectByID(id); !ok {
		return apperr.NotFound("project %s", id)
	}

	tasks := OrderedForProject(s.state.Tasks(), id)

	var urls []string
	for _, t := range tasks {
		urls = append(urls, t.AttachmentURLs()...)
	}
	s.deleteBlobsAndSettle(ctx, urls)

	ops := make([]docstore.Op, 0, len(tasks)+1)
	for _, t := range tasks {
		ops = append(ops, docstore.DeleteOp(docstore.CollectionTasks, t.ID))
	}
	ops = append(ops, docstore.DeleteOp(docstore.CollectionProjects, id))
	if err := s.store.Batch(ctx, ops); err != nil {
		return s.storeErr(err, "delete project")
	}
	return nil
}

// CreateTask writes a new task. Status defaults to the first column and
// priority to Medium when omitted. Order stays absent: new tasks sink to
// their creation-time slot until the first reorder assigns dense values.
func (s *Service) CreateTask(ctx context.Context, projectID, title, description, deadline string, status model.Status, priority model.Priority) (model.Task, error) {
	if title == "" {
		return model.Task{}, apperr.Validation("task title is required")
	}
	if utf8.RuneCountInString(title) > model.MaxTaskTitleLen {
		return model.Task{}, apperr.Validation("task title exceeds %d characters", model.MaxTaskTitleLen)
	}
	if utf8.RuneCountInString(description) > model.MaxTaskDescLen {
		return model.Task{}, apperr.Validation("task description exceeds %d characters", model.MaxTaskDescLen)
	}
	if deadline != "" && !model.ValidDeadline(deadline) {
		return model.Task{}, apperr.Validation("deadline must be a %s date", model.DeadlineLayout)
	}
	if status == "" {
		status = model.DefaultStatus
	} else if !status.Valid() {
		return model.Task{}, apperr.Validation("unknown status %q", status)
	}
	if priority == "" {
		priority = model.DefaultPriority
	} else if !priority.Valid() {
		return model.Task{}, apperr.Validation("unknown priority %q", priority)
	}
	if _, ok := s.state.ProjectByID(projectID); !ok {
		return model.Task{}, apperr.NotFound("project %s", projectID)
	}

	t := model.Task{
		ID:          s.newID(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		Deadline:    deadline,
		CreatedAt:   s.now().UTC(),
		Comments:    []model.Comment{},
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return model.Task{}, s.storeErr(err, "create task")
	}
	return t, nil
}

// UpdateTask applies a partial update. Only the fields present in u are
// written; cleared fields are unset in the store.
func (s *Service) UpdateTask(ctx context.Context, id string, u TaskUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if _, ok := s.state.TaskByID(id); !ok {
		return apperr.NotFound("task %s", id)
	}

	f := updateFields(u)
	if len(f) == 0 {
		return nil
	}
	if err := s.store.UpdateTask(ctx, id, f); err != nil {
		return s.storeErr(err, "update task")
	}
	return nil
}

// updateFields maps a TaskUpdate onto the store's merge-write shape.
func updateFields(u TaskUpdate) docstore.Fields {
	f := docstore.Fields{}
	if v, ok := u.Title.Get(); ok {
		f["title"] = v
	}
	if v, ok := u.Description.Get(); ok {
		if v == "" {
			f["description"] = nil
		} else {
			f["description"] = v
		}
	} else if u.Description.IsClear() {
		f["description"] = nil
	}
	if v, ok := u.Status.Get(); ok {
		f["status"] = v
	}
	if v, ok := u.Priority.Get(); ok {
		f["priority"] = v
	} else if u.Priority.IsClear() {
		f["priority"] = nil
	}
	if v, ok := u.Deadline.Get(); ok {
		f["deadline"] = v
	} else if u.Deadline.IsClear() {
		f["deadline"] = nil
	}
	if v, ok := u.Order.Get(); ok {
		f["order"] = v
	} else if u.Order.IsClear() {
		f["order"] = nil
	}
	return f
}

// DeleteTask removes one task after settling best-effort deletion of its
// comment attachments.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	t, ok := s.state.TaskByID(id)
	if !ok {
		return apperr.NotFound("task %s", id)
	}
	s.deleteBlobsAndSettle(ctx, t.AttachmentURLs())
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return s.storeErr(err, "delete task")
	}
	return nil
}

// MoveTask sets the task's column. The swap guard runs before the task is
// even looked up, so a column name arriving as the id keeps its transition
// error all the way out. Order is deliberately untouched: the order field
// models the flat list view only, so cross-column moves never renumber
// anything.
func (s *Service) MoveTask(ctx context.Context, taskID string, newStatus model.Status) error {
	if err := ValidateMove(taskID, newStatus); err != nil {
		return err
	}
	if _, ok := s.state.TaskByID(taskID); !ok {
		return apperr.NotFound("task %s", taskID)
	}
	if err := s.store.UpdateTask(ctx, taskID, docstore.Fields{"status": newStatus}); err != nil {
		return s.storeErr(err, "move task")
	}
	return nil
}

// ReorderTasks moves one entry of the project's ordered sequence and writes
// the dense renumbering of every task as one atomic batch, so no partial
// reorder is ever visible. Two clients racing here last-write-win whole
// batches; that limitation is accepted.
func (s *Service) ReorderTasks(ctx context.Context, projectID string, src, dst int) ([]OrderAssignment, error) {
	if _, ok := s.state.ProjectByID(projectID); !ok {
		return nil, apperr.NotFound("project %s", projectID)
	}
	ordered := s.state.TasksForProject(projectID)
	assignments, err := Reorder(ordered, src, dst)
	if err != nil {
		return nil, err
	}

	ops := make([]docstore.Op, len(assignments))
	for i, a := range assignments {
		ops[i] = docstore.UpdateOp(docstore.CollectionTasks, a.TaskID, docstore.Fields{"order": a.Order})
	}
	if err := s.store.Batch(ctx, ops); err != nil {
		return nil, s.storeErr(err, "reorder tasks")
	}
	return assignments, nil
}

// deleteBlobsAndSettle fires one delete per URL and waits for every attempt
// to finish. Failures are logged, never propagated: one stuck blob must not
// block or fail the surrounding record mutation.
func (s *Service) deleteBlobsAndSettle(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := s.blobs.Delete(ctx, u); err != nil {
				s.log.WithError(err).WithField("url", u).Warn("attachment delete failed")
			}
		}(url)
	}
	wg.Wait()
}

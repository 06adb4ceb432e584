package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/blob"
	"kanbanlite-backend/internal/docstore"
	"kanbanlite-backend/internal/logging"
	"kanbanlite-backend/internal/model"
)

// harness wires a Service to the in-process store and pumps store snapshots
// into the state mirror on demand, so tests control exactly when writes
// become visible.
type harness struct {
	svc    *Service
	store  *docstore.Memory
	blobs  *blob.Memory
	state  *State
	projCh <-chan []model.Project
	taskCh <-chan []model.Task
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := docstore.NewMemory()
	blobs := blob.NewMemory()
	state := NewState()
	svc := NewService(store, blobs, state, logging.New("error"))

	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	projCh, _, err := store.WatchProjects(context.Background())
	require.NoError(t, err)
	taskCh, _, err := store.WatchTasks(context.Background())
	require.NoError(t, err)

	h := &harness{svc: svc, store: store, blobs: blobs, state: state, projCh: projCh, taskCh: taskCh}
	h.pump()
	return h
}

// pump drains pending snapshots into the state mirror.
func (h *harness) pump() {
	for {
		select {
		case p := <-h.projCh:
			h.state.ReplaceProjects(p)
		case tk := <-h.taskCh:
			h.state.ReplaceTasks(tk)
		default:
			return
		}
	}
}

func (h *harness) mustProject(t *testing.T, name string) model.Project {
	t.Helper()
	p, err := h.svc.CreateProject(context.Background(), name, "")
	require.NoError(t, err)
	h.pump()
	return p
}

func (h *harness) mustTask(t *testing.T, projectID, title string) model.Task {
	t.Helper()
	task, err := h.svc.CreateTask(context.Background(), projectID, title, "", "", "", "")
	require.NoError(t, err)
	h.pump()
	return task
}

func (h *harness) mustComment(t *testing.T, taskID, text, fileURL, fileName string) model.Comment {
	t.Helper()
	c, err := h.svc.AddComment(context.Background(), taskID, text, fileURL, fileName)
	require.NoError(t, err)
	h.pump()
	return c
}

func TestCreateTaskDefaults(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")

	task := h.mustTask(t, p.ID, "First")

	assert.Equal(t, model.DefaultStatus, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Nil(t, task.Order, "new tasks carry no order until the first reorder")
	assert.NotNil(t, task.Comments)

	got, ok := h.state.TaskByID(task.ID)
	require.True(t, ok)
	assert.Equal(t, task.Title, got.Title)
}

func TestCreateTaskUnknownProject(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateTask(context.Background(), "nope", "First", "", "", "", "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestWritesInvisibleUntilSnapshotArrives(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")

	task, err := h.svc.CreateTask(context.Background(), p.ID, "First", "", "", "", "")
	require.NoError(t, err)

	// no pump yet: the mirror must not reflect the write optimistically
	_, ok := h.state.TaskByID(task.ID)
	assert.False(t, ok)

	h.pump()
	_, ok = h.state.TaskByID(task.ID)
	assert.True(t, ok)
}

func TestUpdateTaskPartialWrite(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "First")

	err := h.svc.UpdateTask(context.Background(), task.ID, TaskUpdate{
		Status:   Set(model.StatusInProgress),
		Deadline: Set("2024-06-01"),
	})
	require.NoError(t, err)
	h.pump()

	got, ok := h.state.TaskByID(task.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, "2024-06-01", got.Deadline)
	assert.Equal(t, "First", got.Title, "untouched field survives")
}

func TestUpdateTaskClearsFields(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "First")
	require.NoError(t, h.svc.UpdateTask(context.Background(), task.ID, TaskUpdate{Deadline: Set("2024-06-01")}))
	h.pump()

	require.NoError(t, h.svc.UpdateTask(context.Background(), task.ID, TaskUpdate{Deadline: Clear[string]()}))
	h.pump()

	got, _ := h.state.TaskByID(task.ID)
	assert.Empty(t, got.Deadline)
}

func TestMoveTaskRejectsSwappedArgsWithoutMutation(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "First")

	// column name where the task id belongs
	err := h.svc.MoveTask(context.Background(), string(model.StatusDone), model.StatusToDo)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))

	h.pump()
	got, _ := h.state.TaskByID(task.ID)
	assert.Equal(t, model.DefaultStatus, got.Status, "no record was touched")
}

func TestMoveTaskChangesColumnOnly(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	a := h.mustTask(t, p.ID, "A")
	b := h.mustTask(t, p.ID, "B")
	_, err := h.svc.ReorderTasks(context.Background(), p.ID, 0, 1)
	require.NoError(t, err)
	h.pump()

	require.NoError(t, h.svc.MoveTask(context.Background(), a.ID, model.StatusDone))
	h.pump()

	got, _ := h.state.TaskByID(a.ID)
	assert.Equal(t, model.StatusDone, got.Status)
	require.NotNil(t, got.Order)
	assert.Equal(t, int64(1), *got.Order, "order untouched by a column move")
	_ = b
}

func TestMoveTaskUnknownTask(t *testing.T) {
	h := newHarness(t)
	h.mustProject(t, "Board")

	err := h.svc.MoveTask(context.Background(), "ghost", model.StatusDone)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLengthLimitsCountRunes(t *testing.T) {
	h := newHarness(t)

	// multibyte names at the limit pass even though their byte length is
	// twice the rune count
	name := strings.Repeat("é", model.MaxProjectNameLen)
	p, err := h.svc.CreateProject(context.Background(), name, "")
	require.NoError(t, err)
	h.pump()

	_, err = h.svc.CreateProject(context.Background(), name+"é", "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	title := strings.Repeat("ü", model.MaxTaskTitleLen)
	_, err = h.svc.CreateTask(context.Background(), p.ID, title, "", "", "", "")
	require.NoError(t, err)
	_, err = h.svc.CreateTask(context.Background(), p.ID, title+"ü", "", "", "", "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReorderTasksWritesDenseBatch(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	a := h.mustTask(t, p.ID, "A")
	b := h.mustTask(t, p.ID, "B")
	c := h.mustTask(t, p.ID, "C")

	got, err := h.svc.ReorderTasks(context.Background(), p.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []OrderAssignment{
		{TaskID: b.ID, Order: 0},
		{TaskID: c.ID, Order: 1},
		{TaskID: a.ID, Order: 2},
	}, got)

	h.pump()
	ordered := h.state.TasksForProject(p.ID)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	for i, task := range ordered {
		require.NotNil(t, task.Order)
		assert.Equal(t, int64(i), *task.Order)
	}
}

func TestReorderTasksInvalidIndex(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	h.mustTask(t, p.ID, "A")

	_, err := h.svc.ReorderTasks(context.Background(), p.ID, 0, 5)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidIndex))
}

func TestDeleteProjectCascades(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	t1 := h.mustTask(t, p.ID, "One")
	t2 := h.mustTask(t, p.ID, "Two")
	h.mustComment(t, t1.ID, "see attachment", "memory://a1.png", "a1.png")
	h.mustComment(t, t2.ID, "see attachment", "memory://a2.png", "a2.png")
	h.mustComment(t, t2.ID, "no file here", "", "")

	require.NoError(t, h.svc.DeleteProject(context.Background(), p.ID))
	h.pump()

	// exactly one delete attempt per referenced attachment
	assert.ElementsMatch(t, []string{"memory://a1.png", "memory://a2.png"}, h.blobs.Deletes())

	_, ok := h.state.ProjectByID(p.ID)
	assert.False(t, ok)
	assert.Empty(t, h.state.TasksForProject(p.ID))
}

func TestDeleteProjectSurvivesBlobFailures(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	h.mustComment(t, task.ID, "see attachment", "memory://a1.png", "a1.png")

	h.blobs.FailDeletes(errors.New("bucket unreachable"))

	require.NoError(t, h.svc.DeleteProject(context.Background(), p.ID))
	h.pump()

	_, ok := h.state.ProjectByID(p.ID)
	assert.False(t, ok, "record delete proceeds even when blob cleanup fails")
	assert.Equal(t, []string{"memory://a1.png"}, h.blobs.Deletes(), "cleanup was attempted")
}

func TestDeleteTaskCleansAttachments(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	h.mustComment(t, task.ID, "see attachment", "memory://a1.png", "a1.png")

	require.NoError(t, h.svc.DeleteTask(context.Background(), task.ID))
	h.pump()

	assert.Equal(t, []string{"memory://a1.png"}, h.blobs.Deletes())
	_, ok := h.state.TaskByID(task.ID)
	assert.False(t, ok)
}

func TestAddCommentCleansOrphanUploadOnStoreFailure(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")

	h.store.FailNextTaskUpdate(errors.New("write rejected"))

	_, err := h.svc.AddComment(context.Background(), task.ID, "see attachment", "memory://orphan.png", "orphan.png")
	assert.True(t, apperr.IsKind(err, apperr.KindStore))

	// the already-uploaded blob would otherwise leak
	assert.Equal(t, []string{"memory://orphan.png"}, h.blobs.Deletes())
}

func TestAddCommentRequiresPairedReference(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")

	_, err := h.svc.AddComment(context.Background(), task.ID, "text", "memory://a.png", "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = h.svc.AddComment(context.Background(), task.ID, "text", "", "a.png")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdateCommentReplaceDeletesOldBlobAfterWrite(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	c := h.mustComment(t, task.ID, "v1", "memory://old.png", "old.png")

	err := h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{
		Text:       Set("v2"),
		Attachment: AttachmentReplace,
		FileURL:    "memory://new.png",
		FileName:   "new.png",
	})
	require.NoError(t, err)
	h.pump()

	got, _ := h.state.TaskByID(task.ID)
	updated, _, ok := got.CommentByID(c.ID)
	require.True(t, ok)
	assert.Equal(t, "v2", updated.Text)
	assert.Equal(t, "memory://new.png", updated.FileURL)
	assert.Equal(t, "new.png", updated.FileName)
	require.NotNil(t, updated.UpdatedAt)

	assert.Equal(t, []string{"memory://old.png"}, h.blobs.Deletes())
}

func TestUpdateCommentFailedWriteKeepsOldBlob(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	c := h.mustComment(t, task.ID, "v1", "memory://old.png", "old.png")

	h.store.FailNextTaskUpdate(errors.New("write rejected"))

	err := h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{
		Attachment: AttachmentReplace,
		FileURL:    "memory://new.png",
		FileName:   "new.png",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindStore))

	// delete only after the record is durable: the old reference is still
	// live, so its blob must survive a failed write
	assert.Empty(t, h.blobs.Deletes())

	h.pump()
	got, _ := h.state.TaskByID(task.ID)
	still, _, ok := got.CommentByID(c.ID)
	require.True(t, ok)
	assert.Equal(t, "memory://old.png", still.FileURL)
}

func TestUpdateCommentRemoveAttachment(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	c := h.mustComment(t, task.ID, "v1", "memory://old.png", "old.png")

	require.NoError(t, h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{
		Attachment: AttachmentRemove,
	}))
	h.pump()

	got, _ := h.state.TaskByID(task.ID)
	updated, _, _ := got.CommentByID(c.ID)
	assert.False(t, updated.HasAttachment())
	assert.Equal(t, "v1", updated.Text, "text untouched")
	assert.Equal(t, []string{"memory://old.png"}, h.blobs.Deletes())
}

func TestUpdateCommentValidation(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	c := h.mustComment(t, task.ID, "v1", "", "")

	err := h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{Text: Clear[string]()})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{Attachment: AttachmentReplace})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = h.svc.UpdateComment(context.Background(), task.ID, c.ID, CommentUpdate{Attachment: "detach"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDeleteCommentCleansBlob(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	keep := h.mustComment(t, task.ID, "keep me", "", "")
	c := h.mustComment(t, task.ID, "drop me", "memory://drop.png", "drop.png")

	require.NoError(t, h.svc.DeleteComment(context.Background(), task.ID, c.ID))
	h.pump()

	got, _ := h.state.TaskByID(task.ID)
	_, _, ok := got.CommentByID(c.ID)
	assert.False(t, ok)
	_, _, ok = got.CommentByID(keep.ID)
	assert.True(t, ok)
	assert.Equal(t, []string{"memory://drop.png"}, h.blobs.Deletes())
}

func TestCommentsForDisplayNewestFirst(t *testing.T) {
	h := newHarness(t)
	p := h.mustProject(t, "Board")
	task := h.mustTask(t, p.ID, "One")
	first := h.mustComment(t, task.ID, "first", "", "")
	second := h.mustComment(t, task.ID, "second", "", "")

	got, _ := h.state.TaskByID(task.ID)
	// stored oldest first
	assert.Equal(t, first.ID, got.Comments[0].ID)

	display := CommentsForDisplay(got)
	require.Len(t, display, 2)
	assert.Equal(t, second.ID, display[0].ID)
	assert.Equal(t, first.ID, display[1].ID)
}

func TestUpdateProjectClearsDescription(t *testing.T) {
	h := newHarness(t)
	p, err := h.svc.CreateProject(context.Background(), "Board", "old words")
	require.NoError(t, err)
	h.pump()

	require.NoError(t, h.svc.UpdateProject(context.Background(), p.ID, "Board", ""))
	h.pump()

	got, ok := h.state.ProjectByID(p.ID)
	require.True(t, ok)
	assert.Empty(t, got.Description)
}

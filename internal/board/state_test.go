package board

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanbanlite-backend/internal/model"
)

func TestStateLoadingUntilBothStreams(t *testing.T) {
	st := NewState()
	assert.True(t, st.Loading())

	st.ReplaceProjects([]model.Project{{ID: "p1", Name: "One"}})
	assert.True(t, st.Loading(), "tasks snapshot not yet received")

	st.ReplaceTasks(nil)
	assert.False(t, st.Loading(), "an empty snapshot still counts as received")
}

func TestStateReplaceIsWholesale(t *testing.T) {
	st := NewState()
	st.ReplaceTasks([]model.Task{
		{ID: "t1", ProjectID: "p1", Title: "one"},
		{ID: "t2", ProjectID: "p1", Title: "two"},
	})
	st.ReplaceTasks([]model.Task{
		{ID: "t3", ProjectID: "p1", Title: "three"},
	})

	tasks := st.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "t3", tasks[0].ID)
}

func TestStateReadsAreCopies(t *testing.T) {
	st := NewState()
	st.ReplaceTasks([]model.Task{{ID: "t1", ProjectID: "p1", Title: "one",
		Comments: []model.Comment{{ID: "c1", Text: "hi"}}}})

	got, ok := st.TaskByID("t1")
	require.True(t, ok)
	got.Comments[0].Text = "changed"

	again, _ := st.TaskByID("t1")
	assert.Equal(t, "hi", again.Comments[0].Text)
}

func TestStateFailIsTerminal(t *testing.T) {
	st := NewState()
	first := errors.New("stream broken")
	st.Fail(first)
	st.Fail(errors.New("later"))
	assert.Equal(t, first, st.Err())
}

func TestStateTasksForProjectOrdered(t *testing.T) {
	st := NewState()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	o0, o1 := int64(0), int64(1)
	st.ReplaceTasks([]model.Task{
		{ID: "b", ProjectID: "p1", Order: &o1, CreatedAt: base},
		{ID: "legacy", ProjectID: "p1", CreatedAt: base.Add(time.Hour)},
		{ID: "a", ProjectID: "p1", Order: &o0, CreatedAt: base},
		{ID: "elsewhere", ProjectID: "p2", Order: &o0, CreatedAt: base},
	})

	got := st.TasksForProject("p1")
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "legacy", got[2].ID)
}

func TestStateSubscribeReceivesSnapshots(t *testing.T) {
	st := NewState()
	id, ch := st.Subscribe()
	defer st.Unsubscribe(id)

	st.ReplaceProjects([]model.Project{{ID: "p1", Name: "One"}})

	select {
	case snap := <-ch:
		require.Len(t, snap.Projects, 1)
		assert.True(t, snap.Loading)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStateSlowSubscriberGetsLatest(t *testing.T) {
	st := NewState()
	id, ch := st.Subscribe()
	defer st.Unsubscribe(id)

	st.ReplaceProjects([]model.Project{{ID: "p1"}})
	st.ReplaceProjects([]model.Project{{ID: "p1"}, {ID: "p2"}})

	// the pending stale snapshot was replaced, not queued behind
	snap := <-ch
	assert.Len(t, snap.Projects, 2)
}

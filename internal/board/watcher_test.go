package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanbanlite-backend/internal/docstore"
	"kanbanlite-backend/internal/logging"
	"kanbanlite-backend/internal/model"
)

func TestRunSyncMirrorsMutations(t *testing.T) {
	store := docstore.NewMemory()
	state := NewState()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunSync(ctx, store, state, logging.New("error")) }()

	require.NoError(t, store.CreateProject(ctx, model.Project{ID: "p1", Name: "Board"}))
	require.NoError(t, store.CreateTask(ctx, model.Task{ID: "t1", ProjectID: "p1", Title: "First"}))

	require.Eventually(t, func() bool {
		_, ok := state.TaskByID("t1")
		return ok && !state.Loading()
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// errStore lets a test inject a stream failure.
type errStore struct {
	*docstore.Memory
	taskErrs chan error
}

func (s *errStore) WatchTasks(ctx context.Context) (<-chan []model.Task, <-chan error, error) {
	ch, _, err := s.Memory.WatchTasks(ctx)
	return ch, s.taskErrs, err
}

func TestRunSyncStreamFailureIsTerminal(t *testing.T) {
	store := &errStore{Memory: docstore.NewMemory(), taskErrs: make(chan error, 1)}
	state := NewState()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunSync(ctx, store, state, logging.New("error")) }()

	boom := errors.New("stream torn down")
	store.taskErrs <- boom

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("RunSync kept running after a stream error")
	}
	assert.ErrorIs(t, state.Err(), boom)
}

package board

import (
	"context"

	"github.com/sirupsen/logrus"

	"kanbanlite-backend/internal/docstore"
)

// RunSync pumps both snapshot streams into the state mirror until ctx is
// done or a stream fails. A stream error is terminal: the state flips into
// its failed condition and RunSync returns instead of retrying forever.
func RunSync(ctx context.Context, store docstore.Store, state *State, log *logrus.Logger) error {
	projects, projectErrs, err := store.WatchProjects(ctx)
	if err != nil {
		state.Fail(err)
		return err
	}
	tasks, taskErrs, err := store.WatchTasks(ctx)
	if err != nil {
		state.Fail(err)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-projects:
			if !ok {
				projects = nil
				continue
			}
			state.ReplaceProjects(snap)
			log.WithField("projects", len(snap)).Debug("projects snapshot applied")
		case snap, ok := <-tasks:
			if !ok {
				tasks = nil
				continue
			}
			state.ReplaceTasks(snap)
			log.WithField("tasks", len(snap)).Debug("tasks snapshot applied")
		case err := <-projectErrs:
			state.Fail(err)
			log.WithError(err).Error("projects subscription failed")
			return err
		case err := <-taskErrs:
			state.Fail(err)
			log.WithError(err).Error("tasks subscription failed")
			return err
		}
	}
}

package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kanbanlite-backend/internal/model"
)

// Memory implements Store and UserStore in process. It backs tests and the
// zero-dependency development mode, and mirrors the remote contract exactly:
// every mutation is followed by a full-collection push to all watchers.
type Memory struct {
	mu       sync.Mutex
	projects map[string]model.Project
	tasks    map[string]model.Task
	users    map[string]model.User

	projectWatchers []chan []model.Project
	taskWatchers    []chan []model.Task

	// failUpdateTask, when set, fails the next UpdateTask call and clears
	// itself. Lets tests simulate a store write rejection.
	failUpdateTask error
}

func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]model.Project),
		tasks:    make(map[string]model.Task),
		users:    make(map[string]model.User),
	}
}

// FailNextTaskUpdate arms a one-shot write failure.
func (m *Memory) FailNextTaskUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdateTask = err
}

func (m *Memory) CreateProject(_ context.Context, p model.Project) error {
	m.mu.Lock()
	m.projects[p.ID] = p
	snaps := m.projectSnapshotLocked()
	watchers := append([]chan []model.Project(nil), m.projectWatchers...)
	m.mu.Unlock()
	pushAll(watchers, snaps)
	return nil
}

func (m *Memory) UpdateProject(_ context.Context, id string, f Fields) error {
	m.mu.Lock()
	p, ok := m.projects[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	applyProjectFields(&p, f)
	m.projects[id] = p
	snaps := m.projectSnapshotLocked()
	watchers := append([]chan []model.Project(nil), m.projectWatchers...)
	m.mu.Unlock()
	pushAll(watchers, snaps)
	return nil
}

func (m *Memory) CreateTask(_ context.Context, t model.Task) error {
	m.mu.Lock()
	m.tasks[t.ID] = t.Clone()
	snaps := m.taskSnapshotLocked()
	watchers := append([]chan []model.Task(nil), m.taskWatchers...)
	m.mu.Unlock()
	pushAll(watchers, snaps)
	return nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, f Fields) error {
	m.mu.Lock()
	if err := m.failUpdateTask; err != nil {
		m.failUpdateTask = nil
		m.mu.Unlock()
		return err
	}
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if err := applyTaskFields(&t, f); err != nil {
		m.mu.Unlock()
		return err
	}
	m.tasks[id] = t
	snaps := m.taskSnapshotLocked()
	watchers := append([]chan []model.Task(nil), m.taskWatchers...)
	m.mu.Unlock()
	pushAll(watchers, snaps)
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.tasks, id)
	snaps := m.taskSnapshotLocked()
	watchers := append([]chan []model.Task(nil), m.taskWatchers...)
	m.mu.Unlock()
	pushAll(watchers, snaps)
	return nil
}

// Batch applies all ops under one lock so watchers observe either the whole
// batch or none of it. Ops are validated up front; a bad op aborts before
// anything is applied.
func (m *Memory) Batch(_ context.Context, ops []Op) error {
	m.mu.Lock()
	for _, op := range ops {
		if op.Kind < OpCreate || op.Kind > OpDelete {
			m.mu.Unlock()
			return fmt.Errorf("unknown batch op kind %d", op.Kind)
		}
	}
	for _, op := range ops {
		switch op.Collection {
		case CollectionProjects:
			switch op.Kind {
			case OpCreate:
				p := op.Doc.(model.Project)
				m.projects[p.ID] = p
			case OpUpdate:
				if p, ok := m.projects[op.ID]; ok {
					applyProjectFields(&p, op.Fields)
					m.projects[op.ID] = p
				}
			case OpDelete:
				delete(m.projects, op.ID)
			}
		case CollectionTasks:
			switch op.Kind {
			case OpCreate:
				t := op.Doc.(model.Task)
				m.tasks[t.ID] = t.Clone()
			case OpUpdate:
				if t, ok := m.tasks[op.ID]; ok {
					_ = applyTaskFields(&t, op.Fields)
					m.tasks[op.ID] = t
				}
			case OpDelete:
				delete(m.tasks, op.ID)
			}
		}
	}
	projSnap := m.projectSnapshotLocked()
	taskSnap := m.taskSnapshotLocked()
	projWatchers := append([]chan []model.Project(nil), m.projectWatchers...)
	taskWatchers := append([]chan []model.Task(nil), m.taskWatchers...)
	m.mu.Unlock()
	pushAll(projWatchers, projSnap)
	pushAll(taskWatchers, taskSnap)
	return nil
}

func (m *Memory) WatchProjects(_ context.Context) (<-chan []model.Project, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []model.Project, 1)
	ch <- m.projectSnapshotLocked()
	m.projectWatchers = append(m.projectWatchers, ch)
	return ch, make(chan error, 1), nil
}

func (m *Memory) WatchTasks(_ context.Context) (<-chan []model.Task, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []model.Task, 1)
	ch <- m.taskSnapshotLocked()
	m.taskWatchers = append(m.taskWatchers, ch)
	return ch, make(chan error, 1), nil
}

func (m *Memory) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email already exists")
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) projectSnapshotLocked() []model.Project {
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) taskSnapshotLocked() []model.Task {
	out := make([]model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// pushAll delivers a snapshot to every watcher, replacing any stale pending
// one so a slow consumer only ever lags by a single refresh.
func pushAll[T any](watchers []chan []T, snap []T) {
	for _, ch := range watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func applyProjectFields(p *model.Project, f Fields) {
	for k, v := range f {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				p.Name = s
			}
		case "description":
			if v == nil {
				p.Description = ""
			} else if s, ok := v.(string); ok {
				p.Description = s
			}
		}
	}
}

func applyTaskFields(t *model.Task, f Fields) error {
	for k, v := range f {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				t.Title = s
			}
		case "description":
			if v == nil {
				t.Description = ""
			} else if s, ok := v.(string); ok {
				t.Description = s
			}
		case "status":
			switch s := v.(type) {
			case model.Status:
				t.Status = s
			case string:
				t.Status = model.Status(s)
			}
		case "priority":
			if v == nil {
				t.Priority = ""
				continue
			}
			switch s := v.(type) {
			case model.Priority:
				t.Priority = s
			case string:
				t.Priority = model.Priority(s)
			}
		case "deadline":
			if v == nil {
				t.Deadline = ""
			} else if s, ok := v.(string); ok {
				t.Deadline = s
			}
		case "order":
			if v == nil {
				t.Order = nil
				continue
			}
			switch n := v.(type) {
			case int64:
				t.Order = &n
			case int:
				o := int64(n)
				t.Order = &o
			}
		case "comments":
			if v == nil {
				t.Comments = nil
				continue
			}
			if cs, ok := v.([]model.Comment); ok {
				t.Comments = append([]model.Comment(nil), cs...)
			}
		default:
			return fmt.Errorf("unknown task field %q", k)
		}
	}
	return nil
}

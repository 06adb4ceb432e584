package board

import (
	"sync"

	"kanbanlite-backend/internal/model"
)

// Snapshot is a full, self-consistent view of both collections. Consumers
// must treat reads as provisional while Loading is true.
type Snapshot struct {
	Projects []model.Project `json:"projects"`
	Tasks    []model.Task    `json:"tasks"`
	Loading  bool            `json:"loading"`
}

// State mirrors the remote collections in memory. Each push from the store
// replaces a whole collection; there is no incremental patching, which keeps
// the mirror failure-resistant against out-of-order or missed deltas at the
// cost of a full refresh on every change from any client.
//
// State is constructed once per process in main and injected; there is no
// package-level instance.
type State struct {
	mu           sync.RWMutex
	projects     []model.Project
	tasks        []model.Task
	haveProjects bool
	haveTasks    bool
	failed       error

	nextSub int
	subs    map[int]chan Snapshot
}

func NewState() *State {
	return &State{subs: make(map[int]chan Snapshot)}
}

// Loading is true until at least one snapshot of each stream has arrived.
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !(s.haveProjects && s.haveTasks)
}

// Err returns the terminal subscription failure, if any.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// Fail records a terminal loading failure. The state does not retry; callers
// surface the condition instead of serving silently stale reads forever.
func (s *State) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = err
	}
}

// ReplaceProjects swaps in a full projects snapshot.
func (s *State) ReplaceProjects(projects []model.Project) {
	s.mu.Lock()
	s.projects = make([]model.Project, len(projects))
	copy(s.projects, projects)
	s.haveProjects = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.broadcast(snap)
}

// ReplaceTasks swaps in a full tasks snapshot.
func (s *State) ReplaceTasks(tasks []model.Task) {
	s.mu.Lock()
	s.tasks = make([]model.Task, len(tasks))
	for i, t := range tasks {
		s.tasks[i] = t.Clone()
	}
	s.haveTasks = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.broadcast(snap)
}

func (s *State) Projects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *State) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// TasksForProject returns the project's tasks in display order.
func (s *State) TasksForProject(projectID string) []model.Task {
	return OrderedForProject(s.Tasks(), projectID)
}

func (s *State) ProjectByID(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

func (s *State) TaskByID(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		Projects: make([]model.Project, len(s.projects)),
		Tasks:    make([]model.Task, len(s.tasks)),
		Loading:  !(s.haveProjects && s.haveTasks),
	}
	copy(snap.Projects, s.projects)
	for i, t := range s.tasks {
		snap.Tasks[i] = t.Clone()
	}
	return snap
}

// Subscribe registers a snapshot listener (used by the websocket push). The
// channel is buffered; a consumer that falls behind misses intermediate
// snapshots, never the latest one it can still drain.
func (s *State) Subscribe() (int, <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	return id, ch
}

func (s *State) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *State) broadcast(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		// Replace a pending stale snapshot instead of blocking.
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

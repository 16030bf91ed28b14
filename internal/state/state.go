// Package state owns the authoritative in-memory Task table shared
// between the request-facing API and the task handler. All access goes
// through the exported methods, each of which holds the package's single
// mutex only as long as it takes to read or mutate the table.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/task"
)

// Settings mirrors spec.md §3's daemon settings.
type Settings struct {
	Groups              map[string]uint
	DefaultParallelTasks uint
	PauseOnFailure      bool
	Callback            string
	PueueDirectory      string
}

// MaxParallel returns the configured parallelism for a group, falling
// back to DefaultParallelTasks for the implicit default group.
func (s Settings) MaxParallel(group string) (uint, bool) {
	if group == task.DefaultGroup {
		if s.DefaultParallelTasks == 0 {
			return 1, true
		}
		return s.DefaultParallelTasks, true
	}
	max, ok := s.Groups[group]
	return max, ok
}

// State is the process-wide shared store described in spec.md §3.
// Invariant 1 (child handle exists iff status is Running/Paused) is
// enforced by the children table, not here; State only tracks the
// persisted Task fields.
type State struct {
	mu       sync.Mutex
	tasks    map[int]*task.Task
	running  bool
	settings Settings
	nextID   int
	store    Store
}

// Store persists State to durable storage. A nil Store makes Save a
// no-op, useful in tests that don't care about the on-disk format.
type Store interface {
	Save(snapshot *Snapshot) error
}

// Snapshot is the serializable view of State handed to a Store.
type Snapshot struct {
	Tasks    map[int]*task.Task
	Running  bool
	Settings Settings
}

// New creates an empty State with the given settings and optional
// persistence backend.
func New(settings Settings, store Store) *State {
	return &State{
		tasks:    make(map[int]*task.Task),
		running:  true,
		settings: settings,
		store:    store,
	}
}

// Restore rebuilds a State from a previously saved snapshot. Per
// spec.md's non-goal on restart recovery, any task left Running or
// Paused in the snapshot is forced to Done(Killed): the daemon that
// owned its child process is gone.
func Restore(snapshot *Snapshot, store Store) *State {
	s := New(snapshot.Settings, store)
	s.running = snapshot.Running
	now := time.Now()
	for id, t := range snapshot.Tasks {
		if t.Status.Alive() {
			t.Status = task.StatusDone
			t.Result = &task.Result{Kind: task.ResultKilled}
			t.End = &now
			taskLog := logger.WithTask(id)
			taskLog.Warn().Msg("found running task on restart, marking killed")
		}
		s.tasks[id] = t
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	return s
}

// Lock exposes the state mutex to callers (the task handler) that need
// to perform several operations atomically, e.g. the scheduler's scan
// of the task table. Prefer the narrow methods below when one
// operation suffices.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

// Settings returns a copy of the current settings.
func (s *State) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SettingsLocked returns the current settings for callers (the
// scheduler) that already hold s.mu via Lock/Unlock. Calling this
// without holding the lock is a bug, same contract as TaskRef.
func (s *State) SettingsLocked() Settings {
	return s.settings
}

// UpdateSettings replaces the settings, e.g. after a config hot-reload.
func (s *State) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Running reports the daemon's running flag.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetRunning sets the running flag and persists.
func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
	s.Save()
}

// Add inserts a newly submitted task, assigning it the next dense id.
func (s *State) Add(t *task.Task) int {
	s.mu.Lock()
	t.ID = s.nextID
	s.nextID++
	s.tasks[t.ID] = t
	s.mu.Unlock()
	s.Save()
	return t.ID
}

// Get returns a clone of the task, safe to read outside the mutex.
func (s *State) Get(id int) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Mutate runs fn with the task's live pointer under the state mutex,
// returning false if the id doesn't exist. fn must not retain the
// pointer past its call.
func (s *State) Mutate(id int, fn func(*task.Task)) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		fn(t)
	}
	s.mu.Unlock()
	return ok
}

// IDsAscending returns every task id in ascending order, the iteration
// order spec.md requires for deterministic scheduling tie-breaks.
func (s *State) IDsAscending() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsAscendingLocked()
}

// IDsAscendingLocked is IDsAscending for callers that already hold s.mu
// via Lock/Unlock, same contract as TaskRef/TasksLocked.
func (s *State) IDsAscendingLocked() []int {
	return s.idsAscendingLocked()
}

func (s *State) idsAscendingLocked() []int {
	ids := make([]int, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// All returns clones of every task, ordered by ascending id.
func (s *State) All() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.idsAscendingLocked()
	out := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// TaskRef returns the live pointer for internal packages (scheduler,
// handler) that already hold s.mu via Lock/Unlock. Calling this without
// holding the lock is a bug; it exists to avoid re-locking inside
// call sites that iterate under a single held lock.
func (s *State) TaskRef(id int) (*task.Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// TasksLocked exposes the raw map for callers already holding the lock
// (the scheduler's group-occupancy scan). It must not be mutated other
// than through Mutate/Add.
func (s *State) TasksLocked() map[int]*task.Task {
	return s.tasks
}

// Remove deletes a single task entirely. It does not persist; Reset uses
// ResetAll instead.
func (s *State) Remove(id int) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// ResetAll wipes every task and resets the id counter, used when the
// handler completes a deferred Reset once no children remain.
func (s *State) ResetAll() {
	s.mu.Lock()
	s.tasks = make(map[int]*task.Task)
	s.nextID = 0
	s.running = true
	s.mu.Unlock()
	s.Save()
}

// Save persists the current snapshot. Add, SetRunning and ResetAll call
// this themselves; Mutate, Remove and UpdateSettings do not, so callers
// of Mutate and of multi-step mutations under Lock/Unlock must call Save
// explicitly afterwards (spec.md invariant 7).
func (s *State) Save() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snap := &Snapshot{
		Tasks:    make(map[int]*task.Task, len(s.tasks)),
		Running:  s.running,
		Settings: s.settings,
	}
	for id, t := range s.tasks {
		snap.Tasks[id] = t.Clone()
	}
	s.mu.Unlock()

	if err := s.store.Save(snap); err != nil {
		logger.Error().Err(err).Msg("failed to persist state")
	}
}

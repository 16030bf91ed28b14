package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskd-project/taskd/internal/task"
)

// FileStore persists Snapshots as a single JSON document, the concrete
// serialization format spec.md leaves to the external state component
// (§6: "this spec requires only that save() be called"). It writes to a
// temp file and renames over the target so a crash mid-write never
// leaves a truncated state file behind.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore rooted at <pueueDirectory>/state.json.
func NewFileStore(pueueDirectory string) *FileStore {
	return &FileStore{path: filepath.Join(pueueDirectory, "state.json")}
}

type onDiskSnapshot struct {
	Tasks    map[int]*task.Task `json:"tasks"`
	Running  bool               `json:"running"`
	Settings onDiskSettings     `json:"settings"`
}

type onDiskSettings struct {
	Groups               map[string]uint `json:"groups"`
	DefaultParallelTasks uint            `json:"default_parallel_tasks"`
	PauseOnFailure       bool            `json:"pause_on_failure"`
	Callback             string          `json:"callback,omitempty"`
	PueueDirectory       string          `json:"pueue_directory"`
}

func (f *FileStore) Save(snapshot *Snapshot) error {
	disk := onDiskSnapshot{
		Tasks:   snapshot.Tasks,
		Running: snapshot.Running,
		Settings: onDiskSettings{
			Groups:               snapshot.Settings.Groups,
			DefaultParallelTasks: snapshot.Settings.DefaultParallelTasks,
			PauseOnFailure:       snapshot.Settings.PauseOnFailure,
			Callback:             snapshot.Settings.Callback,
			PueueDirectory:       snapshot.Settings.PueueDirectory,
		},
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Load reads a previously saved snapshot. A missing file is not an
// error: it means a fresh daemon with no prior state.
func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &Snapshot{Tasks: make(map[int]*task.Task), Running: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var disk onDiskSnapshot
	if err := json.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if disk.Tasks == nil {
		disk.Tasks = make(map[int]*task.Task)
	}

	return &Snapshot{
		Tasks:   disk.Tasks,
		Running: disk.Running,
		Settings: Settings{
			Groups:               disk.Settings.Groups,
			DefaultParallelTasks: disk.Settings.DefaultParallelTasks,
			PauseOnFailure:       disk.Settings.PauseOnFailure,
			Callback:             disk.Settings.Callback,
			PueueDirectory:       disk.Settings.PueueDirectory,
		},
	}, nil
}

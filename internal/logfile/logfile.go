// Package logfile implements the per-task stdout/stderr log file helpers
// spec.md §6 describes: "<pueue_directory>/logs/<task_id>.stdout" and
// ".stderr", opened at spawn, closed on process exit, deleted on reset
// or on spawn failure.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the log directory rooted at the pueue directory.
func Dir(pueueDirectory string) string {
	return filepath.Join(pueueDirectory, "logs")
}

func stdoutPath(pueueDirectory string, taskID int) string {
	return filepath.Join(Dir(pueueDirectory), fmt.Sprintf("%d.stdout", taskID))
}

func stderrPath(pueueDirectory string, taskID int) string {
	return filepath.Join(Dir(pueueDirectory), fmt.Sprintf("%d.stderr", taskID))
}

// Create opens (append-mode, creating if necessary) the stdout/stderr
// log files for a task. Callers must close both handles themselves once
// the child using them has exited.
func Create(pueueDirectory string, taskID int) (stdout, stderr *os.File, err error) {
	if err := os.MkdirAll(Dir(pueueDirectory), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	stdout, err = os.OpenFile(stdoutPath(pueueDirectory, taskID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open stdout log: %w", err)
	}

	stderr, err = os.OpenFile(stderrPath(pueueDirectory, taskID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		stdout.Close()
		os.Remove(stdoutPath(pueueDirectory, taskID))
		return nil, nil, fmt.Errorf("open stderr log: %w", err)
	}

	return stdout, stderr, nil
}

// Clean removes both log files for a task, ignoring missing files. Used
// when a spawn fails (the freshly created files must not linger) and
// when a reset discards a finished task's output.
func Clean(pueueDirectory string, taskID int) {
	os.Remove(stdoutPath(pueueDirectory, taskID))
	os.Remove(stderrPath(pueueDirectory, taskID))
}

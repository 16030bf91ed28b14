// Package spawner launches a task's command as a child OS process
// (spec.md §4.3). It owns the platform-specific shell invocation, wires
// up the per-task log files, and hands the live process to the children
// table the reaper later drains.
package spawner

import (
	"fmt"
	"os/exec"

	"github.com/taskd-project/taskd/internal/children"
	"github.com/taskd-project/taskd/internal/logfile"
	"github.com/taskd-project/taskd/internal/task"
)

// Spawn starts t.Command in t.Path, wiring its stdout/stderr to the task's
// log files and registering the resulting child in table. It returns nil
// on success; recording the start time and the task's new status is the
// caller's responsibility. Spawn only owns process creation and log-file
// plumbing.
func Spawn(table *children.Table, pueueDirectory string, t *task.Task) error {
	stdout, stderr, err := logfile.Create(pueueDirectory, t.ID)
	if err != nil {
		return fmt.Errorf("create log files: %w", err)
	}

	name, args := shellCommand(t.Command)
	cmd := exec.Command(name, args...)
	cmd.Dir = t.Path
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// The command never reads stdin in normal operation, but `send`
	// (spec.md §4.5) writes to it, so every child gets a pipe.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		stdout.Close()
		stderr.Close()
		logfile.Clean(pueueDirectory, t.ID)
		return fmt.Errorf("open stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		logfile.Clean(pueueDirectory, t.ID)
		return fmt.Errorf("start process: %w", err)
	}

	done := make(chan children.WaitResult, 1)
	go func() {
		waitErr := cmd.Wait()
		stdout.Close()
		stderr.Close()
		result := children.WaitResult{}
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
				result.Signaled = signaled(exitErr)
			} else {
				result.Err = waitErr
			}
		}
		done <- result
	}()

	table.Insert(t.ID, &children.Handle{Cmd: cmd, Done: done, Stdin: stdin})
	return nil
}

// shellCommand is implemented per-OS in spawner_unix.go / spawner_windows.go.

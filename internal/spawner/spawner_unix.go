//go:build !windows

package spawner

import (
	"os/exec"
	"syscall"
)

// shellCommand wraps command in the platform shell, mirroring how a
// user's interactive shell would interpret it (pipes, redirects,
// globbing all work as typed).
func shellCommand(command string) (string, []string) {
	return "sh", []string{"-c", command}
}

// signaled reports whether the child died from a signal (kill sends
// SIGKILL via internal/procsignal) rather than exiting on its own with a
// nonzero status. A signal-terminated process reports ExitCode() == -1,
// which must map to Killed rather than Failed(-1).
func signaled(exitErr *exec.ExitError) bool {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

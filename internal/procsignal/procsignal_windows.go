//go:build windows

package procsignal

import "os"

// Pause is unsupported on Windows: there is no job-control stop signal
// reachable through os.Process. The task's status is left unchanged by
// the caller when this error is returned.
func Pause(p *os.Process) error {
	return ErrUnsupported
}

// Resume is unsupported for the same reason as Pause.
func Resume(p *os.Process) error {
	return ErrUnsupported
}

// Kill terminates the process unconditionally; it is always supported.
func Kill(p *os.Process) error {
	return p.Kill()
}

//go:build !windows

package procsignal

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPauseResume(t *testing.T) {
	cmd := exec.Command("sleep", "2")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	require.NoError(t, Pause(cmd.Process))
	require.NoError(t, Resume(cmd.Process))
}

func TestKill(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	require.NoError(t, Kill(cmd.Process))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process was not killed")
	}
}

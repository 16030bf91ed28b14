package spawner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskd-project/taskd/internal/children"
	"github.com/taskd-project/taskd/internal/task"
)

func TestSpawn_Success(t *testing.T) {
	dir := t.TempDir()
	table := children.NewTable()
	tk := task.New(1, "echo hello", dir)

	require.NoError(t, Spawn(table, dir, tk))

	handle, ok := table.Get(1)
	require.True(t, ok)
	require.NotNil(t, handle.Stdin)

	select {
	case result := <-handle.Done:
		assert.NoError(t, result.Err)
		assert.Equal(t, 0, result.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestSpawn_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	table := children.NewTable()
	tk := task.New(2, "exit 7", dir)

	require.NoError(t, Spawn(table, dir, tk))

	handle, _ := table.Get(2)
	select {
	case result := <-handle.Done:
		assert.NoError(t, result.Err)
		assert.Equal(t, 7, result.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestSpawn_InvalidWorkingDirectory(t *testing.T) {
	table := children.NewTable()
	tk := task.New(3, "echo hi", "/nonexistent/path/taskd-test")

	err := Spawn(table, t.TempDir(), tk)
	assert.Error(t, err)
}

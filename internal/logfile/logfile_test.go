package logfile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndClean(t *testing.T) {
	dir := t.TempDir()

	stdout, stderr, err := Create(dir, 7)
	require.NoError(t, err)
	defer stdout.Close()
	defer stderr.Close()

	assert.FileExists(t, stdoutPath(dir, 7))
	assert.FileExists(t, stderrPath(dir, 7))

	stdout.Close()
	stderr.Close()
	Clean(dir, 7)

	_, err = os.Stat(stdoutPath(dir, 7))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(stderrPath(dir, 7))
	assert.True(t, os.IsNotExist(err))
}

func TestClean_MissingFilesAreFine(t *testing.T) {
	dir := t.TempDir()
	Clean(dir, 99)
}

package bash

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_CapturesStdout(t *testing.T) {
	result, err := RunCommand(context.Background(), "echo hello", Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunCommand_CapturesStderr(t *testing.T) {
	result, err := RunCommand(context.Background(), "echo oops >&2", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Stdout)
	assert.Equal(t, "oops\n", result.Stderr)
}

func TestRunCommand_ExitCode(t *testing.T) {
	result, err := RunCommand(context.Background(), "echo partial; exit 3", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "partial\n", result.Stdout)
}

func TestRunCommand_MultipleStatements(t *testing.T) {
	result, err := RunCommand(context.Background(), "echo one\necho two && echo three", Options{})
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", result.Stdout)
}

func TestRunCommand_ParseError(t *testing.T) {
	result, err := RunCommand(context.Background(), "echo 'unterminated", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse command")
	assert.Equal(t, 1, result.ExitCode)
}

func TestRunCommand_Dir(t *testing.T) {
	dir := t.TempDir()
	result, err := RunCommand(context.Background(), "pwd", Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(result.Stdout))
}

func TestRunCommand_LiveEcho(t *testing.T) {
	var stdout, stderr bytes.Buffer
	result, err := RunCommand(context.Background(), "echo out; echo err >&2", Options{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, result.Stdout, stdout.String())
	assert.Equal(t, result.Stderr, stderr.String())
}

func TestRunCommand_ExternalProgram(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX sh")
	}

	result, err := RunCommand(context.Background(), "sh -c 'echo external; exit 4'", Options{})
	require.NoError(t, err)
	assert.Equal(t, "external\n", result.Stdout)
	assert.Equal(t, 4, result.ExitCode)
}

func TestRunCommand_CommandNotFound(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix exec handler only")
	}

	result, err := RunCommand(context.Background(), "definitely-not-a-real-command-halp", Options{})
	require.NoError(t, err)
	assert.Equal(t, 127, result.ExitCode)
	assert.NotEmpty(t, result.Stderr)
}

func TestRunCommand_Cancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix exec handler only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := RunCommand(ctx, "sleep 10", Options{KillTimeout: 500 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

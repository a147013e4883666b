package bash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultKillTimeout is how long a cancelled command gets between SIGINT and SIGKILL.
const DefaultKillTimeout = 2 * time.Second

// Options configures a single RunCommand call.
type Options struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env defaults to the current process environment.
	Env []string
	// Stdout and Stderr, when set, receive a live copy of the command's output.
	Stdout io.Writer
	Stderr io.Writer
	// KillTimeout of zero means DefaultKillTimeout; negative kills immediately.
	KillTimeout time.Duration
}

// Result is the fully captured outcome of one command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunCommand parses command as a POSIX shell program and runs it in a fresh interpreter.
// A non-zero exit code is NOT treated as an error - check Result.ExitCode separately.
// Errors are returned for parse failures, interpreter setup failures and cancellation.
func RunCommand(ctx context.Context, command string, opts Options) (Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("failed to parse command: %w", err)
	}

	outBuf := &threadSafeBuffer{}
	errBuf := &threadSafeBuffer{}

	killTimeout := opts.KillTimeout
	if killTimeout == 0 {
		killTimeout = DefaultKillTimeout
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, tee(outBuf, opts.Stdout), tee(errBuf, opts.Stderr)),
		interp.ExecHandlers(func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return NewProcessGroupExecHandler(killTimeout)
		}),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	err = runner.Run(ctx, prog)

	result := Result{
		Stdout: outBuf.String(),
		Stderr: errBuf.String(),
	}
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			// Non-zero exit code is not an execution error
			result.ExitCode = int(exitStatus)
			return result, nil
		}
		// Real execution error
		result.ExitCode = 1
		return result, err
	}

	return result, nil
}

func tee(buf *threadSafeBuffer, live io.Writer) io.Writer {
	if live == nil {
		return buf
	}
	return &lockedWriter{w: io.MultiWriter(buf, live)}
}

// threadSafeBuffer guards a bytes.Buffer; pipelines write from several goroutines.
type threadSafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *threadSafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *threadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

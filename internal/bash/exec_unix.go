//go:build !windows

package bash

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// NewProcessGroupExecHandler returns an ExecHandlerFunc that runs each external
// program in its own process group, so that cancelling the context takes down the
// program together with anything it spawned.
//
// halp keeps the terminal's foreground group: Ctrl+C reaches halp, which cancels
// the context, and the handler forwards SIGINT to the child's group. If the group
// is still alive after killTimeout it receives SIGKILL. A negative killTimeout
// kills immediately.
func NewProcessGroupExecHandler(killTimeout time.Duration) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		path, err := interp.LookPathDir(hc.Dir, hc.Env, args[0])
		if err != nil {
			fmt.Fprintln(hc.Stderr, err)
			return interp.ExitStatus(127)
		}

		cmd := exec.Cmd{
			Path:   path,
			Args:   args,
			Dir:    hc.Dir,
			Env:    execEnv(hc.Env),
			Stdin:  hc.Stdin,
			Stdout: hc.Stdout,
			Stderr: hc.Stderr,
			SysProcAttr: &syscall.SysProcAttr{
				Setpgid: true,
			},
		}

		if err := cmd.Start(); err != nil {
			fmt.Fprintln(hc.Stderr, err)
			return interp.ExitStatus(126)
		}

		childPgid := cmd.Process.Pid

		waitDone := make(chan error, 1)
		go func() {
			waitDone <- cmd.Wait()
		}()

		select {
		case err := <-waitDone:
			return exitStatus(ctx, err)
		case <-ctx.Done():
			_ = syscall.Kill(-childPgid, syscall.SIGINT)

			if killTimeout >= 0 {
				select {
				case <-waitDone:
					return ctx.Err()
				case <-time.After(killTimeout):
					_ = syscall.Kill(-childPgid, syscall.SIGKILL)
				}
			} else {
				_ = syscall.Kill(-childPgid, syscall.SIGKILL)
			}

			<-waitDone
			return ctx.Err()
		}
	}
}

// exitStatus maps the error from cmd.Wait onto the interpreter's exit status.
func exitStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return interp.ExitStatus(128 + uint8(status.Signal()))
	}
	return interp.ExitStatus(uint8(exitErr.ExitCode()))
}

// execEnv converts expand.Environ to []string for exec.Cmd.Env
func execEnv(env expand.Environ) []string {
	var result []string
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.Exported {
			result = append(result, name+"="+vr.String())
		}
		return true
	})
	return result
}

//go:build windows

package bash

import (
	"time"

	"mvdan.cc/sh/v3/interp"
)

// NewProcessGroupExecHandler uses the interpreter's stock handler on Windows.
// There is no process group to interrupt there, so when a shell tool call is
// cancelled the program itself is killed once killTimeout has passed.
func NewProcessGroupExecHandler(killTimeout time.Duration) interp.ExecHandlerFunc {
	return interp.DefaultExecHandler(killTimeout)
}

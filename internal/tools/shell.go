package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinylittleshell/halp/internal/bash"
	"github.com/atinylittleshell/halp/internal/history"
	"github.com/atinylittleshell/halp/internal/policy"
)

const ShellToolName = "shell"

const shellDescription = "Execute shell commands on the local system. Input is a single string. " +
	"Use responsibly. Commands will require confirmation unless --unsafe_exec is set."

// LineReader asks the user a question and returns their answer.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Display shows shell executions as they happen.
type Display interface {
	RenderExecStart(command string)
	ExecOutput() (stdout io.Writer, stderr io.Writer)
	RenderExecEnd(exitCode int, duration time.Duration, outputBytes int)
	RenderRefusal(command string, reason string)
}

// Journal records every command the shell tool was asked to run.
type Journal interface {
	StartCommand(command string, directory string) (*history.HistoryEntry, error)
	FinishCommand(entry *history.HistoryEntry, outcome history.Outcome, exitCode int) (*history.HistoryEntry, error)
	RecordRefusal(command string, directory string, outcome history.Outcome) (*history.HistoryEntry, error)
}

type ShellOptions struct {
	Gate *policy.Gate
	// Confirm is nil when there is no way to ask the user.
	Confirm LineReader
	Display Display
	Journal Journal
	Logger  *zap.Logger
	// Dir defaults to the working directory at the time of each call.
	Dir        string
	UnsafeExec bool
	DryRun     bool
}

// ShellTool runs one command line through the embedded POSIX interpreter after
// the policy gate and, unless unsafeExec is set, the user have approved it.
type ShellTool struct {
	gate       *policy.Gate
	confirm    LineReader
	display    Display
	journal    Journal
	logger     *zap.Logger
	dir        string
	unsafeExec bool
	dryRun     bool
}

func NewShellTool(opts ShellOptions) *ShellTool {
	gate := opts.Gate
	if gate == nil {
		gate = policy.NewGate()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShellTool{
		gate:       gate,
		confirm:    opts.Confirm,
		display:    opts.Display,
		journal:    opts.Journal,
		logger:     logger,
		dir:        opts.Dir,
		unsafeExec: opts.UnsafeExec,
		dryRun:     opts.DryRun,
	}
}

func (t *ShellTool) Name() string { return ShellToolName }

func (t *ShellTool) Description() string { return shellDescription }

func (t *ShellTool) SetUnsafeExec(enabled bool) { t.unsafeExec = enabled }

func (t *ShellTool) UnsafeExec() bool { return t.unsafeExec }

func (t *ShellTool) Run(ctx context.Context, input string) Observation {
	command := strings.TrimSpace(input)
	if command == "" {
		return Observation{OK: false, ReturnCode: ReturnCodeEmptyCommand, Stderr: "Empty command", Refused: true}
	}

	dir := t.workingDir()

	decision := t.gate.Decide(command, t.unsafeExec)
	if !decision.Allowed {
		t.logger.Info("shell command blocked", zap.String("command", command), zap.String("reason", decision.Reason))
		t.refuse(command, dir, history.OutcomeBlocked, "blocked by policy")
		return blockedObservation()
	}

	if t.dryRun {
		t.recordRefusal(command, dir, history.OutcomeDryRun)
		return Observation{
			OK:     true,
			Stdout: fmt.Sprintf("DRY RUN: would execute -> %s", command),
		}
	}

	if decision.Flagged {
		t.logger.Info("shell command flagged", zap.String("command", command), zap.Strings("rules", decision.Matched))
	}

	if decision.RequiresConfirmation {
		if obs, approved := t.askApproval(ctx, command, dir, decision.Flagged); !approved {
			return obs
		}
	}

	return t.execute(ctx, command, dir)
}

func (t *ShellTool) askApproval(ctx context.Context, command string, dir string, flagged bool) (Observation, bool) {
	noChannel := Observation{
		OK:         false,
		ReturnCode: ReturnCodeNoConfirmation,
		Stderr:     "Command not executed: interactive confirmation required but no TTY available.",
		Refused:    true,
	}
	if t.confirm == nil {
		t.refuse(command, dir, history.OutcomeDeclined, "no confirmation channel")
		return noChannel, false
	}

	warn := ""
	if flagged {
		warn = " [WARNING: potentially unsafe]"
	}
	prompt := fmt.Sprintf("Approve shell command? [y/N]%s\n  %s\n-> ", warn, command)

	answer, err := t.confirm.ReadLine(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Observation{
				OK:         false,
				ReturnCode: ReturnCodeDeclined,
				Stderr:     "Command not executed: confirmation interrupted.",
				Refused:    true,
			}, false
		}
		t.logger.Debug("confirmation unavailable", zap.Error(err))
		t.refuse(command, dir, history.OutcomeDeclined, "no confirmation channel")
		return noChannel, false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return Observation{}, true
	default:
		t.refuse(command, dir, history.OutcomeDeclined, "declined")
		return Observation{
			OK:         false,
			ReturnCode: ReturnCodeDeclined,
			Stderr:     "Command not executed: user declined.",
			Refused:    true,
		}, false
	}
}

func (t *ShellTool) execute(ctx context.Context, command string, dir string) Observation {
	opts := bash.Options{Dir: dir}
	if t.display != nil {
		t.display.RenderExecStart(command)
		opts.Stdout, opts.Stderr = t.display.ExecOutput()
	}

	var entry *history.HistoryEntry
	if t.journal != nil {
		var err error
		if entry, err = t.journal.StartCommand(command, dir); err != nil {
			t.logger.Warn("failed to journal command", zap.Error(err))
		}
	}

	start := time.Now()
	result, err := bash.RunCommand(ctx, command, opts)
	duration := time.Since(start)

	if err != nil {
		t.logger.Warn("shell command failed to run", zap.String("command", command), zap.Error(err))
		t.finish(entry, history.OutcomeFailed, ReturnCodeExecError)
		return Observation{
			OK:         false,
			ReturnCode: ReturnCodeExecError,
			Stdout:     result.Stdout,
			Stderr:     fmt.Sprintf("Execution error: %v", err),
		}
	}

	t.finish(entry, history.OutcomeExecuted, result.ExitCode)
	if t.display != nil {
		t.display.RenderExecEnd(result.ExitCode, duration, len(result.Stdout)+len(result.Stderr))
	}
	t.logger.Debug("shell command finished",
		zap.String("command", command),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", duration))

	return Observation{
		OK:         result.ExitCode == 0,
		ReturnCode: result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
	}
}

func (t *ShellTool) workingDir() string {
	if t.dir != "" {
		return t.dir
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return dir
}

func (t *ShellTool) refuse(command string, dir string, outcome history.Outcome, reason string) {
	if t.display != nil {
		t.display.RenderRefusal(command, reason)
	}
	t.recordRefusal(command, dir, outcome)
}

func (t *ShellTool) recordRefusal(command string, dir string, outcome history.Outcome) {
	if t.journal == nil {
		return
	}
	if _, err := t.journal.RecordRefusal(command, dir, outcome); err != nil {
		t.logger.Warn("failed to journal refusal", zap.Error(err))
	}
}

func (t *ShellTool) finish(entry *history.HistoryEntry, outcome history.Outcome, exitCode int) {
	if t.journal == nil || entry == nil {
		return
	}
	if _, err := t.journal.FinishCommand(entry, outcome, exitCode); err != nil {
		t.logger.Warn("failed to journal command result", zap.Error(err))
	}
}

package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/termenv"
)

const (
	malformedBanner = "<MALFORMED TOOL CALL - RETRYING>"

	// Command output is echoed indented under the command line
	execOutputIndent = 2
)

// Renderer handles all agent-related output for one halp session.
// Answers and command output go to out; status, notices and the spinner go to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer

	outTerm *termenv.Output
	spinner bool
}

// New creates a new Renderer instance
func New(out, errOut io.Writer) *Renderer {
	return &Renderer{
		out:     out,
		errOut:  errOut,
		outTerm: termenv.NewOutput(out),
	}
}

// EnableSpinner turns the thinking spinner on or off. It should only be on when
// errOut is a terminal.
func (r *Renderer) EnableSpinner(enabled bool) {
	r.spinner = enabled
}

// StartThinkingSpinner animates message on errOut until the returned function is called.
func (r *Renderer) StartThinkingSpinner(ctx context.Context, message string) func() {
	if !r.spinner {
		return func() {}
	}
	return NewSpinner(r.errOut, DimStyle.Render(message)).Start(ctx)
}

// RenderFinal prints the model's answer in green.
func (r *Renderer) RenderFinal(text string) {
	styled := r.outTerm.String(text).Foreground(r.outTerm.Color("10"))
	fmt.Fprintln(r.out, styled.String())
}

// RenderMalformed shows a reply that did not parse as a tool call before it is retried.
func (r *Renderer) RenderMalformed(reply string) {
	fmt.Fprintln(r.out, MalformedHeaderStyle.Render(malformedBanner))
	body := r.outTerm.String(reply).Foreground(r.outTerm.Color("11"))
	fmt.Fprintln(r.out, body.String())
}

// RenderExecStart renders the command line of a shell execution
func (r *Renderer) RenderExecStart(command string) {
	fmt.Fprintf(r.out, "%s %s\n", StyledSymbol(SymbolExec), command)
}

// ExecOutput returns writers that echo a running command's output, indented
// under its command line.
func (r *Renderer) ExecOutput() (stdout io.Writer, stderr io.Writer) {
	return indent.NewWriterPipe(r.out, execOutputIndent, nil),
		indent.NewWriterPipe(r.errOut, execOutputIndent, nil)
}

// RenderExecEnd renders the completion line of a shell execution
func (r *Renderer) RenderExecEnd(exitCode int, duration time.Duration, outputBytes int) {
	meta := fmt.Sprintf("(%.1fs, %s)", duration.Seconds(), humanize.Bytes(uint64(outputBytes)))
	if exitCode == 0 {
		fmt.Fprintf(r.out, "%s %s\n", StyledSymbol(SymbolSuccess), DimStyle.Render(meta))
		return
	}
	fmt.Fprintf(r.out, "%s exit code %d %s\n", StyledSymbol(SymbolError), exitCode, DimStyle.Render(meta))
}

// RenderRefusal reports a command the shell tool did not run.
func (r *Renderer) RenderRefusal(command string, reason string) {
	fmt.Fprintf(r.errOut, "%s %s: %s\n", StyledSymbol(SymbolError), ErrorStyle.Render(reason), command)
}

// RenderNotice prints a one-line status message
func (r *Renderer) RenderNotice(message string) {
	fmt.Fprintf(r.errOut, "%s %s\n", StyledSymbol(SymbolSystemMessage), NoticeStyle.Render(message))
}

// RenderError prints an error message in red
func (r *Renderer) RenderError(message string) {
	fmt.Fprintln(r.errOut, ErrorStyle.Render(strings.TrimRight(message, "\n")))
}

// Reset restores the default terminal style, e.g. after an interrupted colored prompt.
func (r *Renderer) Reset() {
	if r.outTerm.Profile == termenv.Ascii {
		return
	}
	r.outTerm.Reset()
}

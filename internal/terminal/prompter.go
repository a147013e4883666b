// Package terminal reads interactive lines from the user, even when stdin is a pipe.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ErrNoInput means there is no interactive channel to read from at all.
var ErrNoInput = errors.New("no interactive input available")

const ttyPath = "/dev/tty"

type lineResult struct {
	line string
	err  error
}

// Prompter prints a colored prompt and reads one line at a time.
// Reads honor context cancellation; a read abandoned by cancellation is picked
// up by the next ReadLine call instead of racing it.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	term   *termenv.Output
	fd     int
	closer io.Closer

	pending chan lineResult
}

// Open returns a Prompter on stdin/stdout when stdin is a terminal, otherwise on
// /dev/tty. When neither is available the Prompter reports ErrNoInput.
func Open() *Prompter {
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		p := New(os.Stdin, os.Stdout)
		p.fd = stdinFd
		return p
	}

	tty, err := os.OpenFile(ttyPath, os.O_RDWR, 0)
	if err != nil {
		return Unavailable()
	}
	p := New(tty, tty)
	p.fd = int(tty.Fd())
	p.closer = tty
	return p
}

// New returns a Prompter over arbitrary streams.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:   bufio.NewReader(in),
		out:  out,
		term: termenv.NewOutput(out),
		fd:   -1,
	}
}

// Unavailable returns a Prompter whose reads always fail with ErrNoInput.
func Unavailable() *Prompter {
	return &Prompter{fd: -1}
}

// Available reports whether the Prompter has an input channel.
func (p *Prompter) Available() bool {
	return p != nil && p.in != nil
}

// ReadLine prints prompt and returns the next line without its line terminator.
// It returns io.EOF at end of input, ErrNoInput when there is no channel, and
// ctx.Err() when cancelled.
func (p *Prompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	if !p.Available() {
		return "", ErrNoInput
	}

	p.writePrompt(prompt)
	line, err := p.readLine(ctx)
	p.resetColor()

	if err != nil {
		return "", err
	}
	return line, nil
}

// ReadSecret reads a line without echo when the channel is a terminal.
func (p *Prompter) ReadSecret(ctx context.Context, prompt string) (string, error) {
	if !p.Available() {
		return "", ErrNoInput
	}
	if p.fd < 0 || !term.IsTerminal(p.fd) {
		return p.ReadLine(ctx, prompt)
	}

	fmt.Fprint(p.out, p.term.String(prompt).Foreground(p.term.Color("12")).String())
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(secret), "\r\n"), nil
}

// Writer is where prompts are printed.
func (p *Prompter) Writer() io.Writer {
	if p.out == nil {
		return io.Discard
	}
	return p.out
}

func (p *Prompter) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case res := <-p.pending:
		p.pending = nil
		line := strings.TrimRight(res.line, "\r\n")
		if res.err != nil {
			// A final unterminated line still counts
			if errors.Is(res.err, io.EOF) && res.line != "" {
				return line, nil
			}
			return "", res.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Prompter) writePrompt(prompt string) {
	fmt.Fprint(p.out, p.term.String(prompt).Foreground(p.term.Color("12")).String())
	if p.term.Profile != termenv.Ascii {
		if seq := p.term.Color("13").Sequence(false); seq != "" {
			fmt.Fprint(p.out, termenv.CSI+seq+"m")
		}
	}
}

func (p *Prompter) resetColor() {
	if p.term.Profile != termenv.Ascii {
		p.term.Reset()
	}
}

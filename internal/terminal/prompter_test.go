package terminal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("hello\r\nworld"), &out)

	line, err := p.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = p.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "world", line)

	_, err = p.ReadLine(context.Background(), "> ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "> > > ", out.String())
}

func TestReadLine_BlankLineIsNotEOF(t *testing.T) {
	p := New(strings.NewReader("\n"), io.Discard)

	line, err := p.ReadLine(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", line)
}

func TestReadLine_Unavailable(t *testing.T) {
	p := Unavailable()

	assert.False(t, p.Available())
	_, err := p.ReadLine(context.Background(), "> ")
	assert.ErrorIs(t, err, ErrNoInput)
	_, err = p.ReadSecret(context.Background(), "key: ")
	assert.ErrorIs(t, err, ErrNoInput)
	assert.NoError(t, p.Close())
}

func TestReadLine_CancelThenResume(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	p := New(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.ReadLine(ctx, "> ")
	assert.ErrorIs(t, err, context.Canceled)

	go func() {
		_, _ = w.Write([]byte("late\n"))
	}()

	line, err := p.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "late", line)
}

func TestReadSecret_FallsBackToLineForNonTerminal(t *testing.T) {
	p := New(strings.NewReader("sk-123\n"), io.Discard)

	secret, err := p.ReadSecret(context.Background(), "API key: ")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", secret)
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinylittleshell/halp/internal/core"
	"github.com/atinylittleshell/halp/internal/history"
	"github.com/atinylittleshell/halp/internal/terminal"
)

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	home   string
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("HISTFILE", "")
	for _, key := range []string{"HALP_BASE_URL", "HALP_API_KEY", "HALP_DEFAULT_MODEL"} {
		t.Setenv(key, "")
	}
	core.ResetPaths()
	t.Cleanup(core.ResetPaths)

	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, home: home}
	h.app = &app{
		stdin:           strings.NewReader(stdin),
		stdout:          h.stdout,
		stderr:          h.stderr,
		stdinIsTerminal: stdin == "",
		openPrompter:    terminal.Unavailable,
	}
	return h
}

func (h *harness) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.home, ".halp.env"), []byte(content), 0600))
}

func (h *harness) execute(args ...string) int {
	return h.app.execute(context.Background(), args)
}

// chatServer streams replies in order, repeating the last one, and records each request.
type chatServer struct {
	mu      sync.Mutex
	replies []string
	paths   []string
	bodies  []string
}

func newChatServer(t *testing.T, replies ...string) (*chatServer, string) {
	t.Helper()
	c := &chatServer{replies: replies}
	server := httptest.NewServer(c)
	t.Cleanup(server.Close)
	return c, server.URL
}

func (c *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.bodies = append(c.bodies, string(raw))
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	c.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", reply)
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (c *chatServer) requests() (paths []string, bodies []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...), append([]string(nil), c.bodies...)
}

func TestEnvFlagMasksKey(t *testing.T) {
	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL=https://api.example.com\nAPI_KEY=sk-1234567890abcdef\nDEFAULT_MODEL=gpt-4o\n")

	code := h.execute("--env")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "BASE_URL: https://api.example.com")
	assert.Contains(t, h.stdout.String(), "API_KEY: sk-...cdef")
	assert.Contains(t, h.stdout.String(), "DEFAULT_MODEL: gpt-4o")
	assert.NotContains(t, h.stdout.String(), "1234567890")
}

func TestEnvFlagAppliesOverrides(t *testing.T) {
	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL=https://api.example.com\nDEFAULT_MODEL=gpt-4o\n")

	code := h.execute("--env", "-m", "llama3", "--base_url", "http://localhost:11434")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "BASE_URL: http://localhost:11434")
	assert.Contains(t, h.stdout.String(), "DEFAULT_MODEL: llama3")
}

func TestMissingConfigWithoutTerminal(t *testing.T) {
	h := newHarness(t, "")

	code := h.execute("what time is it")

	assert.Equal(t, 2, code)
	assert.Contains(t, h.stderr.String(), "Error:")
	assert.NoFileExists(t, filepath.Join(h.home, ".halp.env"))
}

func TestIncompleteConfig(t *testing.T) {
	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL=https://api.example.com\n")

	code := h.execute("hello")

	assert.Equal(t, 2, code)
	assert.Contains(t, h.stderr.String(), "BASE_URL and DEFAULT_MODEL are required")
}

func TestUnknownFlag(t *testing.T) {
	h := newHarness(t, "")

	code := h.execute("--no-such-flag")

	assert.Equal(t, 2, code)
	assert.Contains(t, h.stderr.String(), "unknown flag")
}

func TestMaxStepsMustBePositive(t *testing.T) {
	for _, value := range []string{"0", "-3"} {
		t.Run(value, func(t *testing.T) {
			chat, url := newChatServer(t, `{"final": "unreachable"}`)
			h := newHarness(t, "")
			h.writeConfig(t, "BASE_URL="+url+"\nDEFAULT_MODEL=test-model\n")

			code := h.execute("-q", "--max_steps="+value, "hello")

			assert.Equal(t, 2, code)
			assert.Contains(t, h.stderr.String(), "--max_steps must be at least 1")
			paths, _ := chat.requests()
			assert.Empty(t, paths)
		})
	}
}

func TestVersionFlag(t *testing.T) {
	h := newHarness(t, "")

	code := h.execute("--version")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), BUILD_VERSION)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o"},{"id":"llama3-70b"},{"id":"gpt-4o-mini"}]}`)
	}))
	t.Cleanup(server.Close)

	t.Run("all", func(t *testing.T) {
		h := newHarness(t, "")
		code := h.execute("-l", "-u", server.URL)

		assert.Equal(t, 0, code)
		assert.Equal(t, "gpt-4o\nllama3-70b\ngpt-4o-mini\n", h.stdout.String())
	})

	t.Run("fuzzy filter", func(t *testing.T) {
		h := newHarness(t, "")
		code := h.execute("--list_models", "--base_url", server.URL, "llama")

		assert.Equal(t, 0, code)
		assert.Equal(t, "llama3-70b\n", h.stdout.String())
	})

	t.Run("no match", func(t *testing.T) {
		h := newHarness(t, "")
		code := h.execute("-l", "-u", server.URL, "zzz")

		assert.Equal(t, 1, code)
		assert.Contains(t, h.stderr.String(), "No models found or request failed.")
	})
}

func TestListModelsWithoutBaseURL(t *testing.T) {
	h := newHarness(t, "")

	code := h.execute("-l", "-m", "gpt-4o")

	assert.Equal(t, 2, code)
	assert.Contains(t, h.stderr.String(), "BASE_URL is required to list models")
}

func TestHistoryFlag(t *testing.T) {
	h := newHarness(t, "")

	journal, err := history.NewHistoryManager(core.HistoryFile())
	require.NoError(t, err)
	entry, err := journal.StartCommand("ls -la", "/tmp")
	require.NoError(t, err)
	_, err = journal.FinishCommand(entry, history.OutcomeExecuted, 0)
	require.NoError(t, err)
	_, err = journal.RecordRefusal("rm -rf /", "/tmp", history.OutcomeDeclined)
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	code := h.execute("--history", "5")

	assert.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "executed")
	assert.Contains(t, lines[0], "ls -la")
	assert.Contains(t, lines[1], "declined")
	assert.Contains(t, lines[1], "rm -rf /")
}

func TestAgentFinalAnswer(t *testing.T) {
	chat, url := newChatServer(t, `{"final": "It is noon."}`)

	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL="+url+"\nDEFAULT_MODEL=test-model\n")

	code := h.execute("-q", "what", "time", "is", "it")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "It is noon.")
	paths, _ := chat.requests()
	assert.Equal(t, []string{"/v1/chat/completions"}, paths)
}

func TestAgentPromptFromStdin(t *testing.T) {
	chat, url := newChatServer(t, "piped ok")

	h := newHarness(t, "summarize this log\n")

	code := h.execute("-u", url, "-m", "test-model")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "piped ok")
	_, bodies := chat.requests()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "summarize this log")
	assert.Contains(t, bodies[0], `"model":"test-model"`)
}

func TestAgentToolWithoutConfirmationChannel(t *testing.T) {
	chat, url := newChatServer(t,
		`{"tool": "shell", "input": "echo hi"}`,
		`{"final": "could not run it"}`,
	)

	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL="+url+"\nDEFAULT_MODEL=test-model\n")

	code := h.execute("-q", "say hi")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "could not run it")
	_, bodies := chat.requests()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], `\"returncode\":4`)
}

func TestAgentRequestFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL="+server.URL+"\nDEFAULT_MODEL=test-model\n")

	code := h.execute("-q", "hello")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "Request failed")
}

func TestAgentCancelled(t *testing.T) {
	h := newHarness(t, "")
	h.writeConfig(t, "BASE_URL=http://127.0.0.1:1\nDEFAULT_MODEL=test-model\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := h.app.execute(ctx, []string{"-q", "hello"})

	assert.Equal(t, 130, code)
}

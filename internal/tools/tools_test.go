package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name       string
	calls      []string
	unsafeExec bool
	panicWith  any
	result     Observation
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }

func (f *fakeTool) Run(_ context.Context, input string) Observation {
	f.calls = append(f.calls, input)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result
}

func (f *fakeTool) SetUnsafeExec(enabled bool) { f.unsafeExec = enabled }

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	registry := NewRegistry(nil)

	obs := registry.Dispatch(context.Background(), "python", "print(1)")

	assert.False(t, obs.OK)
	assert.Equal(t, ReturnCodeUnknownTool, obs.ReturnCode)
	assert.True(t, obs.Refused)
	assert.Equal(t, "Unknown tool: python", obs.Error)
}

func TestRegistry_DispatchRunsTool(t *testing.T) {
	tool := &fakeTool{name: "echo", result: Observation{OK: true, Stdout: "hi"}}
	registry := NewRegistry(nil, tool)

	obs := registry.Dispatch(context.Background(), "echo", "hi")

	assert.Equal(t, Observation{OK: true, Stdout: "hi"}, obs)
	assert.Equal(t, []string{"hi"}, tool.calls)
}

func TestRegistry_SudoBlockedBeforeDispatch(t *testing.T) {
	shell := &fakeTool{name: ShellToolName}
	registry := NewRegistry(nil, shell)

	obs := registry.Dispatch(context.Background(), ShellToolName, "SUDO systemctl restart nginx")

	assert.False(t, obs.OK)
	assert.Equal(t, ReturnCodePolicyBlocked, obs.ReturnCode)
	assert.True(t, obs.Refused)
	assert.Contains(t, obs.Stderr, "sudo")
	assert.Empty(t, shell.calls)
}

func TestRegistry_RecoversFromPanics(t *testing.T) {
	registry := NewRegistry(nil, &fakeTool{name: "boom", panicWith: "kaboom"})

	obs := registry.Dispatch(context.Background(), "boom", "")

	assert.False(t, obs.OK)
	assert.Equal(t, ReturnCodeExecError, obs.ReturnCode)
	assert.Equal(t, "Tool execution error: kaboom", obs.Error)
}

func TestRegistry_EnableUnsafeExec(t *testing.T) {
	first := &fakeTool{name: "a"}
	second := &fakeTool{name: "b"}
	registry := NewRegistry(nil, first, second)

	registry.EnableUnsafeExec()

	assert.True(t, first.unsafeExec)
	assert.True(t, second.unsafeExec)
}

func TestRegistry_OrderAndDescribe(t *testing.T) {
	registry := NewRegistry(nil, &fakeTool{name: "shell"}, &fakeTool{name: "alpha"})
	registry.Register(&fakeTool{name: "shell"})

	names := make([]string, 0)
	for _, tool := range registry.Tools() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"shell", "alpha"}, names)
	assert.Equal(t, "- shell: fake shell\n- alpha: fake alpha", registry.Describe())

	tool, ok := registry.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", tool.Name())

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

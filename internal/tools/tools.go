// Package tools defines the capabilities the agent can invoke and the registry that dispatches them.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/atinylittleshell/halp/internal/policy"
)

// Reserved return codes for outcomes that never reached the command interpreter.
const (
	ReturnCodeExecError      = 1
	ReturnCodeEmptyCommand   = 2
	ReturnCodeNoConfirmation = 4
	ReturnCodeDeclined       = 5
	ReturnCodePolicyBlocked  = 13
	ReturnCodeUnknownTool    = 127
)

const sudoBlockedMessage = "Blocked by policy: 'sudo' is not allowed in tool calls. " +
	"Recommend the sudo command to the user instead, or retry without sudo."

// Observation is the result of one tool invocation as reported back to the model.
type Observation struct {
	OK         bool   `json:"ok"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Error      string `json:"error,omitempty"`
	// Refused marks observations for commands that never ran, so a reserved
	// return code cannot be mistaken for the same exit status of a real command.
	Refused    bool   `json:"refused,omitempty"`
}

// Tool is a named capability. Run never panics on bad input and reports every
// failure inside the Observation.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) Observation
}

// UnsafeExecSetter is implemented by tools that ask for confirmation before acting.
type UnsafeExecSetter interface {
	SetUnsafeExec(enabled bool)
}

// Registry maps tool names to tools. It is built once per run; afterwards only
// the unsafeExec setting of its tools may change.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger, tools ...Tool) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
	for _, tool := range tools {
		r.Register(tool)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return lo.Map(r.order, func(name string, _ int) Tool {
		return r.tools[name]
	})
}

// Describe renders one "- name: description" line per tool.
func (r *Registry) Describe() string {
	lines := lo.Map(r.Tools(), func(tool Tool, _ int) string {
		return fmt.Sprintf("- %s: %s", tool.Name(), tool.Description())
	})
	return strings.Join(lines, "\n")
}

// EnableUnsafeExec lets every tool that supports it act without confirmation.
func (r *Registry) EnableUnsafeExec() {
	for _, tool := range r.Tools() {
		if setter, ok := tool.(UnsafeExecSetter); ok {
			setter.SetUnsafeExec(true)
		}
	}
	r.logger.Info("unsafe execution enabled for all tools")
}

// Dispatch runs the named tool. Unknown names, forbidden shell commands and
// panicking tools all come back as failed observations.
func (r *Registry) Dispatch(ctx context.Context, name string, input string) (obs Observation) {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", zap.String("tool", name))
		return Observation{
			OK:         false,
			ReturnCode: ReturnCodeUnknownTool,
			Error:      fmt.Sprintf("Unknown tool: %s", name),
			Refused:    true,
		}
	}

	if name == ShellToolName && policy.Forbidden(input) {
		r.logger.Info("tool call blocked before dispatch", zap.String("tool", name), zap.String("input", input))
		return blockedObservation()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", zap.String("tool", name), zap.Any("panic", rec))
			obs = Observation{
				OK:         false,
				ReturnCode: ReturnCodeExecError,
				Error:      fmt.Sprintf("Tool execution error: %v", rec),
			}
		}
	}()

	return tool.Run(ctx, input)
}

func blockedObservation() Observation {
	return Observation{
		OK:         false,
		ReturnCode: ReturnCodePolicyBlocked,
		Stderr:     sudoBlockedMessage,
		Refused:    true,
	}
}

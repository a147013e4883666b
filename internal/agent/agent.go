// Package agent runs the reason-act loop between the model, the user and the tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atinylittleshell/halp/internal/llm"
	"github.com/atinylittleshell/halp/internal/payload"
	"github.com/atinylittleshell/halp/internal/render"
	"github.com/atinylittleshell/halp/internal/tools"
)

// DefaultMaxSteps bounds the model requests spent on one user turn.
const DefaultMaxSteps = 10

const (
	userPrompt = "How can I halp? |  "

	requestFailedMessage = "Request failed. See logs for details."
	budgetMessage        = "Agent reached max steps without finishing."
	thinkingMessage      = "Thinking..."

	observationPrefix = "Observation:\n"
	correctiveMessage = observationPrefix +
		`{"error": "Malformed tool JSON. Emit ONLY a JSON object like {\"tool\": \"shell\", \"input\": \"...\"} or a final {\"final\": \"...\"}. No extra text."}`
)

// timeNow is a variable that can be overridden for testing.
var timeNow = time.Now

// Model produces the assistant's next reply to a transcript.
type Model interface {
	Reply(ctx context.Context, messages []llm.Message) (string, error)
}

// Input reads the user's next turn.
type Input interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Model        Model
	Tools        *tools.Registry
	Input        Input
	Renderer     *render.Renderer
	Logger       *zap.Logger
	SystemPrompt string
	// MaxSteps is reset at every user turn. Values below 1 mean DefaultMaxSteps.
	MaxSteps int
	// Continuous keeps asking for new turns after a final answer.
	Continuous bool
}

// Agent owns one session transcript. It is not safe for concurrent use.
type Agent struct {
	model      Model
	tools      *tools.Registry
	input      Input
	renderer   *render.Renderer
	logger     *zap.Logger
	system     string
	maxSteps   int
	continuous bool

	messages []llm.Message
}

func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New(io.Discard, io.Discard)
	}
	registry := opts.Tools
	if registry == nil {
		registry = tools.NewRegistry(logger)
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Agent{
		model:      opts.Model,
		tools:      registry,
		input:      opts.Input,
		renderer:   renderer,
		logger:     logger,
		system:     opts.SystemPrompt,
		maxSteps:   maxSteps,
		continuous: opts.Continuous,
	}
}

// Messages returns the transcript so far.
func (a *Agent) Messages() []llm.Message {
	return a.messages
}

// Run drives one session. initialPrompt may be empty, in which case the first
// task is read from Input. A leading "yolo" on the first task turns on unsafe
// execution for every tool.
func (a *Agent) Run(ctx context.Context, initialPrompt string) Status {
	a.messages = []llm.Message{{Role: openai.ChatMessageRoleSystem, Content: a.system}}

	task := a.applyDirective(initialPrompt)
	for task == "" {
		line, done, status := a.readTurn(ctx)
		if done {
			return status
		}
		task = a.applyDirective(line)
	}

	for {
		a.append(openai.ChatMessageRoleUser, task)

		status, answered := a.episode(ctx)
		if !answered {
			return status
		}
		if !a.continuous {
			return StatusOK
		}

		line, done, status := a.readTurn(ctx)
		if done {
			return status
		}
		task = line
	}
}

func (a *Agent) applyDirective(text string) string {
	task, yolo := ParseDirective(text)
	if yolo {
		a.logger.Info("yolo directive detected, enabling unsafe execution")
		a.tools.EnableUnsafeExec()
	}
	return task
}

// readTurn asks for the next user turn. done is set when the session should end.
func (a *Agent) readTurn(ctx context.Context) (line string, done bool, status Status) {
	if a.input == nil {
		return "", true, StatusOK
	}

	line, err := a.input.ReadLine(ctx, userPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", true, a.cancelled()
		}
		a.logger.Debug("input ended", zap.Error(err))
		return "", true, StatusOK
	}

	line = strings.TrimSpace(line)
	switch line {
	case "", "/exit", "/quit", "/q":
		return "", true, StatusOK
	}
	return line, false, StatusOK
}

// episode runs steps until the model answers or the budget runs out.
// answered is false when the session must end with status.
func (a *Agent) episode(ctx context.Context) (status Status, answered bool) {
	start := timeNow()

	for step := 1; step <= a.maxSteps; step++ {
		a.logger.Debug("agent step", zap.Int("step", step), zap.Int("max_steps", a.maxSteps))

		stopSpinner := a.renderer.StartThinkingSpinner(ctx, thinkingMessage)
		reply, err := a.model.Reply(ctx, a.messages)
		stopSpinner()

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return a.cancelled(), false
		}

		reply = strings.TrimSpace(reply)
		if err != nil || reply == "" {
			a.logger.Warn("model request failed", zap.Int("step", step), zap.Error(err))
			a.renderer.RenderError(requestFailedMessage)
			return StatusRequestFailed, false
		}

		classified := payload.Classify(reply)
		a.logger.Debug("model reply",
			zap.Int("chars", len(reply)),
			zap.Stringer("kind", classified.Kind))

		switch classified.Kind {
		case payload.KindFinal, payload.KindPlainText:
			a.renderer.RenderFinal(classified.Text)
			a.append(openai.ChatMessageRoleAssistant, classified.Text)
			a.logger.Debug("episode answered",
				zap.Int("steps", step),
				zap.Duration("duration", timeNow().Sub(start)))
			return StatusOK, true

		case payload.KindMalformed:
			a.logger.Debug("malformed tool JSON, asking the model to re-emit")
			a.renderer.RenderMalformed(reply)
			a.append(openai.ChatMessageRoleAssistant, reply)
			a.append(openai.ChatMessageRoleUser, correctiveMessage)

		case payload.KindToolCall:
			call := classified.Call
			a.logger.Info("tool call", zap.String("tool", call.Tool), zap.String("input", call.Input))

			obs := a.tools.Dispatch(ctx, call.Tool, call.Input)
			if ctx.Err() != nil {
				return a.cancelled(), false
			}
			a.logger.Info("tool observation",
				zap.String("tool", call.Tool),
				zap.Bool("ok", obs.OK),
				zap.Int("returncode", obs.ReturnCode))

			a.append(openai.ChatMessageRoleAssistant, reply)
			a.append(openai.ChatMessageRoleUser, observationMessage(call.Tool, obs))
		}
	}

	a.renderer.RenderError(budgetMessage)
	return StatusStepBudgetExceeded, false
}

func (a *Agent) cancelled() Status {
	a.renderer.Reset()
	a.logger.Info("interrupted by user")
	return StatusCancelled
}

func (a *Agent) append(role string, content string) {
	a.messages = append(a.messages, llm.Message{Role: role, Content: content})
}

type observationEnvelope struct {
	Tool   string            `json:"tool"`
	Result tools.Observation `json:"result"`
}

func observationMessage(tool string, obs tools.Observation) string {
	// Only strings, ints and bools; Marshal cannot fail.
	data, _ := json.Marshal(observationEnvelope{Tool: tool, Result: obs})
	return observationPrefix + string(data)
}

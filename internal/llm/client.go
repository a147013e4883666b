// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/atinylittleshell/halp/internal/stream"
)

const (
	DefaultTemperature float32 = 0.2

	chatTimeout   = 60 * time.Second
	modelsTimeout = 15 * time.Second

	// Cap on how much of an error body ends up in the log.
	maxErrorBody = 2048
)

// ErrEmptyReply means neither the streaming call nor its fallback produced any text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// ErrStalled means the endpoint sent nothing for longer than the read timeout.
var ErrStalled = errors.New("chat endpoint stopped responding")

// Message is one transcript entry.
type Message = openai.ChatCompletionMessage

type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// ReadTimeout bounds the wait for response headers and every gap between
	// body reads, not the whole reply. Zero means 60s.
	ReadTimeout time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client sends the whole transcript on every call; it keeps no conversation state.
type Client struct {
	baseURL    string
	apiKey     string
	model       string
	readTimeout time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = chatTimeout
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		readTimeout: readTimeout,
		httpClient:  httpClient,
		logger:      logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// V1Base normalizes a configured base URL so that API paths can be appended to it.
// "https://host" and "https://host/" become "https://host/v1"; "https://host/v1" is kept.
func V1Base(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func ChatCompletionsURL(baseURL string) string {
	return V1Base(baseURL) + "/chat/completions"
}

func ModelsURL(baseURL string) string {
	return V1Base(baseURL) + "/models"
}

// Reply returns the assistant's full reply to messages. It streams first; when the
// stream yields no text at all, the same request is repeated with streaming off.
// Cancellation is reported as ctx.Err() and a stream that stalls part way through
// as ErrStalled; both discard any partial text.
func (c *Client) Reply(ctx context.Context, messages []Message) (string, error) {
	text, err := c.streamReply(ctx, messages)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, ErrStalled) && text != "" {
		c.logger.Warn("chat stream stalled, discarding partial reply",
			zap.Int("chars", len(text)),
			zap.Duration("read_timeout", c.readTimeout))
		return "", err
	}
	if err != nil {
		c.logger.Debug("streaming request failed", zap.Error(err))
	}
	if text != "" {
		return text, nil
	}

	c.logger.Debug("no stream chunks received")

	text, err = c.completeReply(ctx, messages)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// streamReply returns whatever text arrived. The error is ErrStalled when the
// watchdog cut the stream short, in which case the text is incomplete.
func (c *Client) streamReply(ctx context.Context, messages []Message) (string, error) {
	ctx, body, stop := c.watch(ctx)
	defer stop()

	resp, err := c.post(ctx, messages, true)
	if err != nil {
		return "", stalled(ctx, err)
	}
	defer resp.Body.Close()

	decoder := stream.NewDecoder(body(resp.Body), c.logger)
	text, fragments := stream.Collect(decoder.Fragments())
	c.logger.Debug("stream finished",
		zap.Int("fragments", fragments),
		zap.Int("chars", len(text)),
		zap.NamedError("cause", decoder.Err()))

	if errors.Is(context.Cause(ctx), ErrStalled) {
		return text, ErrStalled
	}
	return text, nil
}

func (c *Client) completeReply(ctx context.Context, messages []Message) (string, error) {
	ctx, body, stop := c.watch(ctx)
	defer stop()

	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", stalled(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(body(resp.Body))
	if err != nil {
		return "", stalled(ctx, fmt.Errorf("failed to read chat completion response: %w", err))
	}
	return extractCompletion(data), nil
}

// watch derives a context that is cancelled with ErrStalled once readTimeout
// passes without a response or without a single byte read through the body
// wrapper it returns.
func (c *Client) watch(ctx context.Context) (context.Context, func(io.Reader) io.Reader, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(c.readTimeout, func() { cancel(ErrStalled) })

	body := func(r io.Reader) io.Reader {
		return &idleReader{r: r, timer: timer, timeout: c.readTimeout}
	}
	stop := func() {
		timer.Stop()
		cancel(nil)
	}
	return ctx, body, stop
}

func stalled(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return ErrStalled
	}
	return err
}

// idleReader pushes the watchdog back every time bytes arrive.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

// extractCompletion reads choices[0].message.content, or choices[0].text for
// legacy completion shapes.
func extractCompletion(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	choice := gjson.GetBytes(body, "choices.0")
	if content := choice.Get("message.content"); content.Type == gjson.String {
		return content.Str
	}
	if text := choice.Get("text"); text.Type == gjson.String {
		return text.Str
	}
	return ""
}

func (c *Client) post(ctx context.Context, messages []Message, streaming bool) (*http.Response, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: DefaultTemperature,
		Stream:      streaming,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	apiURL := ChatCompletionsURL(c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("sending chat request",
		zap.String("url", apiURL),
		zap.Bool("stream", streaming),
		zap.Int("messages", len(messages)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("chat request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(errBody)))
		return nil, fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}

	return resp, nil
}

// ListModels returns the model IDs served by the endpoint, in server order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = V1Base(c.baseURL)
	cfg.HTTPClient = c.httpClient

	c.logger.Debug("listing models", zap.String("url", ModelsURL(c.baseURL)))

	list, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, model := range list.Models {
		if model.ID != "" {
			ids = append(ids, model.ID)
		}
	}
	return ids, nil
}

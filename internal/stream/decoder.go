// Package stream decodes server-sent-event chat completion bodies into text fragments.
package stream

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"

	// Individual SSE lines can carry large deltas; bufio's default of 64KiB is too small.
	maxLineSize = 4 * 1024 * 1024
)

// ErrNoDone is reported by Decoder.Err when the body ended without a [DONE] line.
var ErrNoDone = errors.New("stream ended without [DONE]")

// Decoder turns an SSE body into a lazy sequence of non-empty text fragments.
// Protocol drift and read failures end the sequence quietly; the cause is
// available from Err once iteration has finished.
type Decoder struct {
	r      io.Reader
	logger *zap.Logger
	err    error
}

func NewDecoder(r io.Reader, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{r: r, logger: logger}
}

// Fragments yields text fragments in arrival order. It must be ranged over at most once.
func (d *Decoder) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(d.r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
			if data == doneSentinel {
				return
			}

			fragment, ok := ExtractFragment(data)
			if !ok {
				continue
			}
			if !yield(fragment) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			d.err = err
			d.logger.Debug("stream read terminated", zap.Error(err))
			return
		}
		d.err = ErrNoDone
	}
}

// Err reports why the last iteration stopped early, or nil when [DONE] was seen
// or the consumer stopped iterating.
func (d *Decoder) Err() error {
	return d.err
}

// ExtractFragment returns the text carried by one SSE data payload.
// Chat deltas (choices[0].delta.content) win over legacy completions (choices[0].text).
// Invalid JSON, missing fields, non-string values and empty strings all yield ok=false.
func ExtractFragment(data string) (string, bool) {
	if !gjson.Valid(data) {
		return "", false
	}

	parsed := gjson.Parse(data)
	if !parsed.IsObject() {
		return "", false
	}

	choices := parsed.Get("choices")
	if !choices.IsArray() {
		return "", false
	}
	choice := choices.Get("0")
	if !choice.IsObject() {
		return "", false
	}

	if content := choice.Get("delta.content"); content.Type == gjson.String && content.Str != "" {
		return content.Str, true
	}
	if text := choice.Get("text"); text.Type == gjson.String && text.Str != "" {
		return text.Str, true
	}
	return "", false
}

// Collect drains a fragment sequence into a single string.
func Collect(seq iter.Seq[string]) (string, int) {
	var sb strings.Builder
	count := 0
	for fragment := range seq {
		sb.WriteString(fragment)
		count++
	}
	return sb.String(), count
}

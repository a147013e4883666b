package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind tags the outcome of classifying one model reply.
type Kind int

const (
	KindPlainText Kind = iota
	KindFinal
	KindToolCall
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindFinal:
		return "final"
	case KindToolCall:
		return "tool_call"
	case KindMalformed:
		return "malformed"
	default:
		return "plain_text"
	}
}

// ToolCall is a request from the model to run one tool.
type ToolCall struct {
	Tool  string
	Input string
}

// Reply is a classified model reply. Text is set for KindFinal and KindPlainText,
// Call for KindToolCall.
type Reply struct {
	Kind Kind
	Text string
	Call ToolCall
	Raw  string
}

var toolObjectPattern = regexp.MustCompile(`\{[^}]*"tool"`)

// Classify decides what a reply asks for. Objects are visited in closing order and
// the first one carrying "final", or "tool" with "input" or "args", decides.
// Replies that look like a botched tool call are KindMalformed; anything else is
// plain text.
func Classify(reply string) Reply {
	for _, obj := range ExtractObjects(reply) {
		if value, ok := obj["final"]; ok {
			return Reply{Kind: KindFinal, Text: strings.TrimSpace(stringify(value)), Raw: reply}
		}
		if call, ok := toolCall(obj); ok {
			return Reply{Kind: KindToolCall, Call: call, Raw: reply}
		}
	}

	if looksLikeToolCall(reply) {
		return Reply{Kind: KindMalformed, Raw: reply}
	}

	return Reply{Kind: KindPlainText, Text: reply, Raw: reply}
}

func toolCall(obj map[string]any) (ToolCall, bool) {
	tool, ok := obj["tool"]
	if !ok || !truthy(tool) {
		return ToolCall{}, false
	}
	input, hasInput := obj["input"]
	args, hasArgs := obj["args"]
	if !hasInput && !hasArgs {
		return ToolCall{}, false
	}

	value := input
	if value == nil {
		value = args
	}

	return ToolCall{
		Tool:  strings.TrimSpace(stringify(tool)),
		Input: stringify(value),
	}, true
}

func looksLikeToolCall(reply string) bool {
	return strings.Contains(reply, "```json") ||
		strings.Contains(reply, `"tool"`) ||
		toolObjectPattern.MatchString(reply)
}

// stringify renders a decoded JSON value as text. Strings pass through untouched;
// everything else is re-encoded as JSON.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

package agent

import (
	"strings"
)

const yoloDirective = "yolo"

// ParseDirective strips a leading "yolo" word (any casing) from a task.
// It reports whether the word was present; the rest of the line is the task.
func ParseDirective(text string) (task string, yolo bool) {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 || !strings.EqualFold(fields[0], yoloDirective) {
		return trimmed, false
	}
	return strings.TrimSpace(trimmed[len(fields[0]):]), true
}

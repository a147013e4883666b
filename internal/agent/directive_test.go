package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		input string
		task  string
		yolo  bool
	}{
		{"yolo deploy the app", "deploy the app", true},
		{"  Yolo   deploy\tthe app ", "deploy\tthe app", true},
		{"YOLO", "", true},
		{"yolo\nline two", "line two", true},
		{"yolonger task", "yolonger task", false},
		{"please yolo", "please yolo", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			task, yolo := ParseDirective(tt.input)
			assert.Equal(t, tt.task, task)
			assert.Equal(t, tt.yolo, yolo)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, 0, StatusOK.ExitCode())
	assert.Equal(t, 1, StatusRequestFailed.ExitCode())
	assert.Equal(t, 2, StatusConfigError.ExitCode())
	assert.Equal(t, 3, StatusStepBudgetExceeded.ExitCode())
	assert.Equal(t, 130, StatusCancelled.ExitCode())

	assert.Equal(t, "step_budget_exceeded", StatusStepBudgetExceeded.String())
	assert.Equal(t, "unknown", Status(42).String())
}

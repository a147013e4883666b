package agent

// Status is how a session ended. Its value is the process exit code.
type Status int

const (
	StatusOK                 Status = 0
	StatusRequestFailed      Status = 1
	StatusConfigError        Status = 2
	StatusStepBudgetExceeded Status = 3
	StatusCancelled          Status = 130
)

func (s Status) ExitCode() int {
	return int(s)
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRequestFailed:
		return "request_failed"
	case StatusConfigError:
		return "config_error"
	case StatusStepBudgetExceeded:
		return "step_budget_exceeded"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Package render provides agent output rendering for the halp terminal session.
package render

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	ColorBlue    = lipgloss.Color("12") // Headers, notices
	ColorYellow  = lipgloss.Color("11") // Pending work, retried replies
	ColorGreen   = lipgloss.Color("10") // Final answers, success
	ColorRed     = lipgloss.Color("9")  // Errors, refusals
	ColorGray    = lipgloss.Color("8")  // Timing and other meta info
	ColorMagenta = lipgloss.Color("13") // Confirmation prompts
)

const (
	SymbolExec          = "▶" // Shell command start
	SymbolSuccess       = "✓"
	SymbolError         = "✗"
	SymbolSystemMessage = "→"
)

var (
	// ExecStartStyle is used for the exec symbol before a command line
	ExecStartStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// PendingStyle is used for spinner frames
	PendingStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// FinalStyle is used for the model's final answer
	FinalStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed)

	// MalformedHeaderStyle marks a reply that will be retried
	MalformedHeaderStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	MalformedBodyStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// WarningStyle highlights flagged commands in the confirmation prompt
	WarningStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	// DimStyle is used for secondary information like timing
	DimStyle = lipgloss.NewStyle().Foreground(ColorGray)

	// NoticeStyle is used for system/status messages
	NoticeStyle = lipgloss.NewStyle().Foreground(ColorBlue)
)

// StyledSymbol returns a symbol with appropriate styling applied
func StyledSymbol(symbol string) string {
	switch symbol {
	case SymbolExec:
		return ExecStartStyle.Render(symbol)
	case SymbolSuccess:
		return SuccessStyle.Render(symbol)
	case SymbolError:
		return ErrorStyle.Render(symbol)
	case SymbolSystemMessage:
		return NoticeStyle.Render(symbol)
	default:
		return symbol
	}
}

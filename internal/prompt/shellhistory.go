package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

const DefaultShellHistoryLimit = 50

// ShellHistoryRetriever shows the tail of the user's own shell history file.
// Lines are passed through as-is, zsh extended-history prefixes included.
type ShellHistoryRetriever struct {
	candidates []string
	limit      int
}

// NewShellHistoryRetriever looks at $HISTFILE first, then ~/.zsh_history and ~/.bash_history.
func NewShellHistoryRetriever(histFile string, home string, limit int) *ShellHistoryRetriever {
	if limit <= 0 {
		limit = DefaultShellHistoryLimit
	}
	candidates := lo.Compact([]string{
		histFile,
		filepath.Join(home, ".zsh_history"),
		filepath.Join(home, ".bash_history"),
	})
	return &ShellHistoryRetriever{candidates: candidates, limit: limit}
}

func (r *ShellHistoryRetriever) Name() string {
	return "shell_history"
}

func (r *ShellHistoryRetriever) GetContext() (string, error) {
	path, found := lo.Find(r.candidates, func(candidate string) bool {
		info, err := os.Stat(candidate)
		return err == nil && info.Mode().IsRegular()
	})
	if !found {
		return "\nShell history: <none found>\n", nil
	}

	block := "<no history available>"
	if data, err := os.ReadFile(path); err == nil {
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		lines = lo.DropRightWhile(lines, func(line string) bool { return line == "" })
		if len(lines) > 0 {
			block = strings.Join(lines[max(0, len(lines)-r.limit):], "\n")
		}
	}

	return fmt.Sprintf("\nShell history (last %d lines from %s):\n%s\n", r.limit, path, block), nil
}

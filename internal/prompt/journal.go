package prompt

import (
	"fmt"
	"strings"

	"github.com/atinylittleshell/halp/internal/history"
)

const DefaultJournalLimit = 20

// JournalSource is the part of the command journal the prompt reads.
type JournalSource interface {
	GetRecentEntries(directory string, limit int) ([]history.HistoryEntry, error)
}

// JournalRetriever lists commands halp itself ran or refused earlier in this
// directory, with their outcome and exit code.
type JournalRetriever struct {
	journal JournalSource
	dir     string
	limit   int
}

func NewJournalRetriever(journal JournalSource, dir string, limit int) *JournalRetriever {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	return &JournalRetriever{journal: journal, dir: dir, limit: limit}
}

func (r *JournalRetriever) Name() string {
	return "journal"
}

func (r *JournalRetriever) GetContext() (string, error) {
	entries, err := r.journal.GetRecentEntries(r.dir, r.limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("\nCommands from earlier halp sessions in this directory (outcome,exit_code,command):\n")
	for _, entry := range entries {
		exitCode := "-"
		if entry.ExitCode.Valid {
			exitCode = fmt.Sprint(entry.ExitCode.Int32)
		}
		fmt.Fprintf(&sb, "%s,%s,%s\n", entry.Outcome, exitCode, entry.Command)
	}
	return sb.String(), nil
}

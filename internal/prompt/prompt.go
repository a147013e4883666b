package prompt

import (
	"strings"

	"go.uber.org/zap"
)

// protocol is the fixed instruction block that precedes the environment sections.
var protocol = []string{
	"You are HALP Agent. You can decide to think and act using tools to help the user.",
	"When you need to act, emit ONLY a JSON object with keys 'tool' and 'input', e.g.\n" +
		`{"tool": "shell", "input": "ls -la"}.`,
	"Never include extra commentary around tool JSON. No code fences. No prose.",
	"After executing a tool, you will receive an 'Observation'. Use it to decide the next step.",
	`If you have a final answer for the user, emit ONLY {"final": "..."}. No extra text.`,
	"Policy: NEVER use 'sudo' in any tool call. If elevated privileges are needed, do NOT call tools; " +
		"instead, emit ONLY a final answer that explains the exact sudo command the user can run manually.",
	"Policy: NEVER install or upgrade software in any tool call. Do not invoke package managers or installers " +
		"(e.g., apt, apt-get, yum, dnf, pacman, zypper, apk, brew, port, choco, scoop) or language/runtime installers " +
		"(e.g., pip/pip3 install, conda/mamba install, npm/yarn/pnpm, gem, cargo, go install). " +
		"Avoid shell-install patterns (e.g., curl | bash, wget | sh, bash <(curl ...)). " +
		"If installation appears required, do NOT call tools; instead, emit ONLY a final answer describing " +
		"the exact commands the user can run manually.",
	"Do not modify package repositories or system configuration (e.g., add-apt-repository, editing sources, apt-key/rpm --import).",
	"If your previous reply had malformed tool JSON or a blocked command (e.g., contained 'sudo'), re-emit a corrected " +
		"tool JSON without sudo, or provide a final answer. Do not include anything besides the JSON object.",
	"Tool calls that execute CLI commands will be presented for user confirmation unless --unsafe_exec is set, " +
		"in which case they auto-execute.",
	"Avoid destructive commands. Prefer read-only queries unless explicitly requested. " +
		"Even with auto-execution, 'sudo' remains disallowed.",
	"The user may also type 'yolo' as the first word of their prompt to enable auto-execution for this session. " +
		"The word 'yolo' is a directive and should be stripped from the task.",
}

// Options feeds Build. Context is normally a Provider over the default retrievers.
type Options struct {
	Verbose bool
	Tools   string
	Context *Provider
}

// Build renders the full agent system prompt.
func Build(opts Options) string {
	var sb strings.Builder
	for _, line := range protocol {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if opts.Context != nil {
		sb.WriteString(opts.Context.GetContext())
	}

	sb.WriteString("\nTools available:\n")
	sb.WriteString(opts.Tools)
	sb.WriteString("\n")

	if !opts.Verbose {
		sb.WriteString("Be terse and concise.\n")
	}
	return sb.String()
}

// Environment describes where halp is running.
type Environment struct {
	Dir      string
	Home     string
	Shell    string
	Username string
	HistFile string
}

// DefaultProvider wires the standard retrievers in prompt order. journal may be nil.
func DefaultProvider(env Environment, journal JournalSource, logger *zap.Logger) *Provider {
	provider := NewProvider(logger,
		NewSystemInfoRetriever(env.Shell, env.Dir),
		NewUserRetriever(env.Username, env.Home),
		NewListingRetriever(env.Dir, DefaultListingLimit),
		NewShellHistoryRetriever(env.HistFile, env.Home, DefaultShellHistoryLimit),
	)
	if journal != nil {
		provider.AddRetriever(NewJournalRetriever(journal, env.Dir, DefaultJournalLimit))
	}
	return provider
}

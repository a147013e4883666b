package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/atinylittleshell/halp/internal/agent"
	"github.com/atinylittleshell/halp/internal/config"
	"github.com/atinylittleshell/halp/internal/core"
	"github.com/atinylittleshell/halp/internal/history"
	"github.com/atinylittleshell/halp/internal/llm"
	"github.com/atinylittleshell/halp/internal/prompt"
	"github.com/atinylittleshell/halp/internal/render"
	"github.com/atinylittleshell/halp/internal/terminal"
	"github.com/atinylittleshell/halp/internal/tools"
)

func (a *app) loadConfig(ctx context.Context, opts *options, prompter *terminal.Prompter, logger *zap.Logger) (*config.Config, agent.Status, bool) {
	overrides := config.Overrides{
		BaseURL:      opts.baseURL,
		APIKey:       opts.apiKey,
		DefaultModel: opts.model,
	}

	cfg, err := config.Ensure(ctx, core.EnvFile(), overrides, opts.init, prompter, logger)
	if err != nil {
		if isCancelled(ctx, err) {
			logger.Info("interrupted during setup")
			return nil, agent.StatusCancelled, false
		}
		logger.Error("failed to load config", zap.Error(err))
		fmt.Fprintf(a.stderr, "Error: failed to load configuration: %v\n", err)
		return nil, agent.StatusConfigError, false
	}
	return cfg, agent.StatusOK, true
}

// listModels prints the endpoint's model IDs, best fuzzy matches first when a filter is given.
func (a *app) listModels(ctx context.Context, cfg *config.Config, filter string, logger *zap.Logger) agent.Status {
	if cfg.BaseURL == "" {
		fmt.Fprintln(a.stderr, "Error: BASE_URL is required to list models. Provide via ~/.halp.env or --base_url.")
		return agent.StatusConfigError
	}

	client := llm.NewClient(llm.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Logger: logger})
	models, err := client.ListModels(ctx)
	if isCancelled(ctx, err) {
		return agent.StatusCancelled
	}
	if err != nil {
		logger.Warn("model listing failed", zap.Error(err))
	}

	if filter != "" {
		models = lo.Map(fuzzy.Find(filter, models), func(match fuzzy.Match, _ int) string {
			return match.Str
		})
	}

	if len(models) == 0 {
		fmt.Fprintln(a.stderr, "No models found or request failed.")
		return agent.StatusRequestFailed
	}
	for _, model := range models {
		fmt.Fprintln(a.stdout, model)
	}
	return agent.StatusOK
}

func (a *app) printHistory(limit int, logger *zap.Logger) agent.Status {
	journal, err := initializeHistoryManager()
	if err != nil {
		logger.Error("failed to open command journal", zap.Error(err))
		fmt.Fprintf(a.stderr, "Error: failed to open command journal: %v\n", err)
		return agent.StatusRequestFailed
	}
	defer journal.Close()

	entries, err := journal.GetRecentEntries("", limit)
	if err != nil {
		logger.Error("failed to read command journal", zap.Error(err))
		fmt.Fprintf(a.stderr, "Error: failed to read command journal: %v\n", err)
		return agent.StatusRequestFailed
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, entry := range entries {
		exitCode := "-"
		if entry.ExitCode.Valid {
			exitCode = fmt.Sprint(entry.ExitCode.Int32)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(entry.CreatedAt), entry.Outcome, exitCode, entry.Directory, entry.Command)
	}
	if err := w.Flush(); err != nil {
		return agent.StatusRequestFailed
	}
	return agent.StatusOK
}

func (a *app) runAgent(ctx context.Context, opts *options, cfg *config.Config, task string, prompter *terminal.Prompter, logger *zap.Logger) agent.Status {
	renderer := render.New(a.stdout, a.stderr)
	renderer.EnableSpinner(a.spinner)

	journal, err := initializeHistoryManager()
	if err != nil {
		logger.Warn("command journal unavailable", zap.Error(err))
	} else {
		defer journal.Close()
	}

	dir, err := os.Getwd()
	if err != nil {
		logger.Warn("failed to get working directory", zap.Error(err))
	}

	shellOpts := tools.ShellOptions{
		Display:    renderer,
		Logger:     logger,
		Dir:        dir,
		UnsafeExec: opts.unsafeExec,
		DryRun:     opts.dryRun,
	}
	if prompter.Available() {
		shellOpts.Confirm = prompter
	}
	if journal != nil {
		shellOpts.Journal = journal
	}
	registry := tools.NewRegistry(logger, tools.NewShellTool(shellOpts))

	env := prompt.Environment{
		Dir:      dir,
		Home:     core.HomeDir(),
		Shell:    os.Getenv("SHELL"),
		Username: prompt.CurrentUsername(),
		HistFile: os.Getenv("HISTFILE"),
	}
	var source prompt.JournalSource
	if journal != nil {
		source = journal
	}
	systemPrompt := prompt.Build(prompt.Options{
		Verbose: opts.verbose,
		Tools:   registry.Describe(),
		Context: prompt.DefaultProvider(env, source, logger),
	})

	client := llm.NewClient(llm.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.DefaultModel,
		Logger:  logger,
	})

	logger.Info("starting agent",
		zap.String("model", cfg.DefaultModel),
		zap.String("url", llm.ChatCompletionsURL(cfg.BaseURL)),
		zap.Bool("quick", opts.quick),
		zap.Bool("unsafe_exec", opts.unsafeExec),
		zap.Bool("dry_run", opts.dryRun),
		zap.Int("max_steps", opts.maxSteps))

	var input agent.Input
	if prompter.Available() {
		input = prompter
	}

	return agent.New(agent.Options{
		Model:        client,
		Tools:        registry,
		Input:        input,
		Renderer:     renderer,
		Logger:       logger,
		SystemPrompt: systemPrompt,
		MaxSteps:     opts.maxSteps,
		Continuous:   !opts.quick,
	}).Run(ctx, task)
}

func initializeHistoryManager() (*history.HistoryManager, error) {
	historyManager, err := history.NewHistoryManager(core.HistoryFile())
	if err != nil {
		return nil, errors.Join(errors.New("failed to open history"), err)
	}

	return historyManager, nil
}

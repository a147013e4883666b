package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/atinylittleshell/halp/internal/agent"
	"github.com/atinylittleshell/halp/internal/core"
	"github.com/atinylittleshell/halp/internal/terminal"
)

var BUILD_VERSION = "dev"

const longHelp = `halp - AI assistance for the command line.

halp asks an OpenAI-compatible model for help and lets it run shell commands,
each one confirmed by you unless --unsafe_exec is set or the task starts with
the word "yolo". Settings live in ~/.halp.env:

  BASE_URL       OpenAI-compatible base URL (e.g. https://api.openai.com)
  API_KEY        API key for the provider
  DEFAULT_MODEL  Model to use

HALP_BASE_URL, HALP_API_KEY and HALP_DEFAULT_MODEL override the file, and the
flags below override both.`

type options struct {
	env        bool
	verbose    bool
	debug      bool
	init       bool
	quick      bool
	listModels bool
	unsafeExec bool
	dryRun     bool

	baseURL string
	apiKey  string
	model   string

	maxSteps int
	history  int
}

// app carries the process streams so the command can run against fakes in tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// stdinIsTerminal decides whether a missing prompt is read from stdin.
	stdinIsTerminal bool
	// spinner is on only when stderr is a terminal.
	spinner bool
	// openPrompter returns the interactive channel for questions and confirmations.
	openPrompter func() *terminal.Prompter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		stdin:           os.Stdin,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
		stdinIsTerminal: term.IsTerminal(int(os.Stdin.Fd())),
		spinner:         term.IsTerminal(int(os.Stderr.Fd())),
		openPrompter:    terminal.Open,
	}
	os.Exit(a.execute(ctx, os.Args[1:]))
}

// execute parses args and runs halp, returning the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	exitCode := agent.StatusOK.ExitCode()
	cmd := a.newRootCmd(&exitCode)
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return agent.StatusConfigError.ExitCode()
	}
	return exitCode
}

func (a *app) newRootCmd(exitCode *int) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "halp [prompt...]",
		Short:         "AI assistance for the command line",
		Long:          longHelp,
		Version:       BUILD_VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = a.run(cmd.Context(), opts, args)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.env, "env", false, "Print the loaded configuration (API key masked) and exit")
	flags.BoolVar(&opts.verbose, "verbose", false, "Use a less terse system prompt")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging, also to stderr")
	flags.BoolVar(&opts.init, "init", false, "Run the interactive setup wizard, even if ~/.halp.env exists")
	flags.BoolVarP(&opts.quick, "quick", "q", false, "Run a single agent episode and exit after the final reply")
	flags.StringVarP(&opts.baseURL, "base_url", "u", "", "Override BASE_URL")
	flags.StringVarP(&opts.apiKey, "api_key", "k", "", "Override API_KEY")
	flags.StringVarP(&opts.model, "model", "m", "", "Override DEFAULT_MODEL")
	flags.BoolVarP(&opts.listModels, "list_models", "l", false, "List available models; prompt words act as a fuzzy filter")
	flags.IntVar(&opts.maxSteps, "max_steps", agent.DefaultMaxSteps, "Max model requests per user turn (at least 1)")
	flags.BoolVar(&opts.unsafeExec, "unsafe_exec", false, "Run shell commands without confirmation (DANGEROUS)")
	flags.BoolVar(&opts.dryRun, "dry_run", false, "Show the commands the agent would run without running them")
	flags.IntVar(&opts.history, "history", 0, "Print the last N commands halp ran or refused, then exit")

	return cmd
}

func (a *app) run(ctx context.Context, opts *options, args []string) int {
	logger, err := initializeLogger(opts.debug, a.stderr)
	if err != nil {
		fmt.Fprintf(a.stderr, "failed to initialize logger: %v\n", err)
		logger = zap.NewNop()
	}
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("-------- new halp session --------", zap.Strings("args", args))

	status := a.dispatch(ctx, opts, args, logger)
	logger.Info("session ended", zap.Stringer("status", status))
	return status.ExitCode()
}

func (a *app) dispatch(ctx context.Context, opts *options, args []string, logger *zap.Logger) agent.Status {
	if opts.maxSteps < 1 {
		fmt.Fprintf(a.stderr, "Error: --max_steps must be at least 1, got %d\n", opts.maxSteps)
		return agent.StatusConfigError
	}

	if opts.history > 0 {
		return a.printHistory(opts.history, logger)
	}

	prompter := a.openPrompter()
	defer prompter.Close()

	cfg, status, ok := a.loadConfig(ctx, opts, prompter, logger)
	if !ok {
		return status
	}

	if opts.env {
		if err := cfg.Dump(a.stdout); err != nil {
			logger.Error("failed to print config", zap.Error(err))
			return agent.StatusConfigError
		}
		return agent.StatusOK
	}

	if opts.listModels {
		return a.listModels(ctx, cfg, strings.Join(args, " "), logger)
	}

	promptText, err := a.readPrompt(ctx, args)
	if isCancelled(ctx, err) {
		return agent.StatusCancelled
	}
	if err != nil {
		logger.Warn("failed to read prompt from stdin", zap.Error(err))
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v.\n", err)
		return agent.StatusConfigError
	}

	return a.runAgent(ctx, opts, cfg, promptText, prompter, logger)
}

// readPrompt joins the positional words, or reads all of stdin when it is not a terminal.
func (a *app) readPrompt(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if a.stdinIsTerminal || a.stdin == nil {
		return "", nil
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(a.stdin)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(string(res.data)), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func initializeLogger(debug bool, stderr io.Writer) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug || BUILD_VERSION == "dev" {
		logLevel.SetLevel(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, err
	}

	if debug {
		console := zap.NewDevelopmentEncoderConfig()
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, zapcore.NewCore(
				zapcore.NewConsoleEncoder(console),
				zapcore.AddSync(stderr),
				logLevel,
			))
		}))
	}

	return logger, nil
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

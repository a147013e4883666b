package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Asker is the interactive channel the setup wizard reads from.
type Asker interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	ReadSecret(ctx context.Context, prompt string) (string, error)
	Writer() io.Writer
}

// Ensure returns the effective config, running the setup wizard when forced or
// when there is neither a config file nor any override to go on.
// Overrides always win over both the file and the wizard's answers.
func Ensure(ctx context.Context, path string, overrides Overrides, forceInit bool, asker Asker, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !forceInit && (fileExists(path) || overrides.any() || envConfigured()) {
		return Load(path, overrides)
	}

	logger.Debug("running setup wizard", zap.Bool("forced", forceInit), zap.String("path", path))

	cfg, err := RunWizard(ctx, path, asker)
	if err != nil {
		return nil, err
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.Set(KeyBaseURL, cfg.BaseURL)
	v.Set(KeyAPIKey, cfg.APIKey)
	v.Set(KeyDefaultModel, cfg.DefaultModel)
	applyOverrides(v, overrides)
	return fromViper(v), nil
}

// RunWizard prompts for each setting and writes the answers to path.
// Base URL and model default to HALP_BASE_URL and HALP_DEFAULT_MODEL.
func RunWizard(ctx context.Context, path string, asker Asker) (*Config, error) {
	out := asker.Writer()
	fmt.Fprintf(out, "No configuration found. Let's set up %s\n", path)

	defaultBase := os.Getenv(envPrefix + "_" + KeyBaseURL)
	defaultModel := os.Getenv(envPrefix + "_" + KeyDefaultModel)

	baseURL, err := askWithDefault(ctx, asker, KeyBaseURL, defaultBase)
	if err != nil {
		return nil, err
	}
	apiKey, err := asker.ReadSecret(ctx, "API_KEY (input hidden, leave blank if not needed): ")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", KeyAPIKey, err)
	}
	model, err := askWithDefault(ctx, asker, KeyDefaultModel, defaultModel)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:      baseURL,
		APIKey:       strings.TrimSpace(apiKey),
		DefaultModel: model,
	}
	if err := Write(path, cfg); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Wrote config to %s\n", path)
	return cfg, nil
}

func askWithDefault(ctx context.Context, asker Asker, key string, def string) (string, error) {
	answer, err := asker.ReadLine(ctx, fmt.Sprintf("%s [%s]: ", key, def))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	if answer = strings.TrimSpace(answer); answer != "" {
		return answer, nil
	}
	return def, nil
}

func envConfigured() bool {
	for _, key := range []string{KeyBaseURL, KeyAPIKey, KeyDefaultModel} {
		if os.Getenv(envPrefix+"_"+key) != "" {
			return true
		}
	}
	return false
}

package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/config"
)

// FromConfig builds the configured provider wrapped in a Client. When the
// credential is missing it returns an Unconfigured gateway together with the
// config error, so callers can log it and keep serving.
func FromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Gateway, error) {
	if cfg.APIKey == "" {
		reason := "No API Key found in environment variables"
		return Unconfigured{Reason: reason}, newError(KindConfig, cfg.Provider, fmt.Errorf("%s", reason))
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini, "":
		p, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderAnthropic:
		p, err = NewAnthropic(cfg.APIKey, cfg.Model)
	case config.ProviderOpenAI:
		p, err = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		err = newError(KindConfig, "factory", fmt.Errorf("unsupported llm provider %q", cfg.Provider))
	}
	if err != nil {
		return Unconfigured{Reason: err.Error()}, err
	}
	return NewClient(p,
		WithLogger(logger),
		WithCallTimeout(cfg.CallTimeout()),
		WithMaxAttempts(cfg.MaxAttempts),
	), nil
}

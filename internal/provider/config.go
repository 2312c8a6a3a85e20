package provider

import (
	"net/http"

	"github.com/lepinkainen/tankobon/internal/config"
	tberrors "github.com/lepinkainen/tankobon/internal/errors"
)

// NewFromConfig builds the chain described by cfg. A provider that is
// enabled but lacks its required API key is a configuration error.
func NewFromConfig(cfg config.Config, opts ...ChainOption) (*Chain, error) {
	if cfg.DeepSeek.Enabled && cfg.DeepSeek.APIKey == "" {
		return nil, tberrors.NewConfigError("deepseek.api_key", "required while deepseek is enabled (set DEEPSEEK_API_KEY)")
	}
	if cfg.Gemini.Enabled && cfg.Gemini.APIKey == "" {
		return nil, tberrors.NewConfigError("gemini.api_key", "required while gemini is enabled (set GEMINI_API_KEY)")
	}
	if !cfg.DeepSeek.Enabled && !cfg.Gemini.Enabled && !cfg.GoogleBooks.Enabled {
		return nil, tberrors.NewConfigError("providers", "at least one provider must be enabled")
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, tberrors.NewConfigError("providers.max_retries", "must not be negative")
	}

	httpClient := &http.Client{Timeout: cfg.Retry.Timeout}
	options := func(p config.Provider) []Option {
		return []Option{
			WithHTTPClient(httpClient),
			WithBaseURL(p.BaseURL),
			WithModels(p.Models...),
		}
	}
	policy := func(p config.Provider) Policy {
		return Policy{
			MinInterval:      p.MinInterval,
			MaxRetries:       cfg.Retry.MaxRetries,
			RateLimitWait:    cfg.Retry.RateLimitWait,
			ServerRetryDelay: cfg.Retry.ServerRetryDelay,
			BackoffBase:      cfg.Retry.BackoffBase,
		}
	}

	if cfg.MangaDex.Enabled {
		opts = append(opts, WithVolumeCounter(NewMangaDex(options(cfg.MangaDex)...), policy(cfg.MangaDex)))
	}
	chain := NewChain(opts...)

	if cfg.DeepSeek.Enabled {
		chain.Add(NewDeepSeek(cfg.DeepSeek.APIKey, options(cfg.DeepSeek)...), policy(cfg.DeepSeek))
	}
	if cfg.Gemini.Enabled {
		chain.Add(NewGemini(cfg.Gemini.APIKey, options(cfg.Gemini)...), policy(cfg.Gemini))
	}
	if cfg.GoogleBooks.Enabled {
		chain.Add(NewGoogleBooks(cfg.GoogleBooks.APIKey, options(cfg.GoogleBooks)...), policy(cfg.GoogleBooks))
	}
	return chain, nil
}

package config

import (
	"fmt"
	"log/slog"

	"newsloom/internal/pkg/config"
)

// VendorConfig holds credentials and endpoints for the external
// collaborators named in spec.md §6: the relational store and the LLM /
// embedding vendors, plus an optional outbound proxy for vendor calls
// behind restrictive egress. Unlike the other per-concern configs these
// are secrets, not tunables — LoadVendorConfig still fails open on
// malformed optional fields (proxy URL), but a missing required
// credential is surfaced as a warning so the operator notices at startup
// rather than at the first failed vendor call.
type VendorConfig struct {
	// StoreURL is the Postgres connection string (DSN).
	// Env: STORE_URL.
	StoreURL string

	// StoreKey is an optional credential for a managed Postgres
	// front-door (e.g. a connection pooler token); empty when the DSN
	// carries its own credentials.
	// Env: STORE_KEY.
	StoreKey string

	// AnthropicAPIKey authenticates the Claude client used by the
	// Scorer, Synthesizer, Enricher, and Display Scorer/Tagger.
	// Env: ANTHROPIC_API_KEY.
	AnthropicAPIKey string

	// OpenAIAPIKey authenticates the OpenAI client used as the
	// Embedding service and as an alternate Scorer/Synthesizer backend.
	// Env: OPENAI_API_KEY.
	OpenAIAPIKey string

	// EmbeddingAPIKey overrides OpenAIAPIKey for the embedding client
	// specifically, when a deployment wants a separate quota/key for
	// embeddings. Falls back to OpenAIAPIKey when unset.
	// Env: EMBEDDING_API_KEY.
	EmbeddingAPIKey string

	// OutboundProxyURL routes every vendor HTTP call (feed fetch,
	// full-text fetch, LLM/embedding calls) through an HTTP(S) proxy.
	// Empty disables proxying.
	// Env: OUTBOUND_PROXY_URL.
	OutboundProxyURL string

	// OutboundProxyKey authenticates against OutboundProxyURL when the
	// proxy requires a bearer credential.
	// Env: OUTBOUND_PROXY_KEY.
	OutboundProxyKey string
}

// Validate checks that the required credentials are present. Proxy fields
// are optional and unchecked here; StoreKey, EmbeddingAPIKey are optional
// overrides.
func (c *VendorConfig) Validate() error {
	var errs []error

	if c.StoreURL == "" {
		errs = append(errs, fmt.Errorf("STORE_URL is required"))
	}
	if c.AnthropicAPIKey == "" {
		errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// Embedding returns the API key to use for embedding calls: EmbeddingAPIKey
// when set, otherwise OpenAIAPIKey.
func (c *VendorConfig) Embedding() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	return c.OpenAIAPIKey
}

// LoadVendorConfig loads vendor credentials from the environment. Missing
// required credentials are logged as warnings rather than aborting load —
// the caller is expected to call Validate() and decide whether to abort
// startup, keeping with spec.md §7's "fatal: misconfigured secret" error
// kind being surfaced by the caller, not this loader.
//
// Environment variables:
//   - STORE_URL, STORE_KEY
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, EMBEDDING_API_KEY
//   - OUTBOUND_PROXY_URL, OUTBOUND_PROXY_KEY
func LoadVendorConfig(logger *slog.Logger, metrics *config.ConfigMetrics) VendorConfig {
	cfg := VendorConfig{
		StoreURL:         config.LoadEnvString("STORE_URL", ""),
		StoreKey:         config.LoadEnvString("STORE_KEY", ""),
		AnthropicAPIKey:  config.LoadEnvString("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     config.LoadEnvString("OPENAI_API_KEY", ""),
		EmbeddingAPIKey:  config.LoadEnvString("EMBEDDING_API_KEY", ""),
		OutboundProxyURL: config.LoadEnvString("OUTBOUND_PROXY_URL", ""),
		OutboundProxyKey: config.LoadEnvString("OUTBOUND_PROXY_KEY", ""),
	}

	if cfg.StoreURL == "" {
		logger.Warn("missing required credential", slog.String("field", "STORE_URL"))
	}
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("missing required credential", slog.String("field", "ANTHROPIC_API_KEY"))
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("missing required credential", slog.String("field", "OPENAI_API_KEY"))
	}

	metrics.RecordLoadTimestamp()

	return cfg
}

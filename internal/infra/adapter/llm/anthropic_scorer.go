// Package llm hosts the Claude/OpenAI client adapters behind each LLM-backed
// use case (Scorer, Synthesizer, Enricher, Display Scorer/Tagger, Embedding
// service), generalized from the teacher's single-purpose
// internal/infra/summarizer package.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"newsloom/internal/infra/adapter/llm/jsonextract"
	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/resilience/retry"
	"newsloom/internal/usecase/score"
)

// AnthropicScorerConfig configures the Claude-backed admission scorer.
type AnthropicScorerConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicScorerConfig mirrors the teacher's ClaudeConfig defaults,
// with a temperature ceiling chosen for determinism (spec.md §4.4: "Prompt
// temperature <= 0.3").
func DefaultAnthropicScorerConfig() AnthropicScorerConfig {
	return AnthropicScorerConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// AnthropicScorer implements score.Client against Anthropic's Messages API,
// batching candidates into a single strict-JSON prompt. It carries circuit
// breaker and retry logic the same way the teacher's Claude summarizer does.
type AnthropicScorer struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         AnthropicScorerConfig
	contractName   string
	maxScore       float64
}

// NewAnthropicScorer builds an AnthropicScorer authenticated with apiKey,
// scaled to contract's score range (0-100 or 0-1000) in its prompt.
func NewAnthropicScorer(apiKey string, contract score.AdmissionContract) *AnthropicScorer {
	config := DefaultAnthropicScorerConfig()

	slog.Info("initialized anthropic admission scorer",
		slog.String("model", config.Model),
		slog.String("contract", contract.Name()),
		slog.Float64("max_score", contract.MaxScore()))

	return &AnthropicScorer{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
		contractName:   contract.Name(),
		maxScore:       contract.MaxScore(),
	}
}

// scoreResponseItem matches the batch scorer's JSON contract from spec.md
// §6: `[{id,score,category,...}]`.
type scoreResponseItem struct {
	ID       int64   `json:"id"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}

// ScoreBatch judges every item in one Claude call, returning a ResultItem
// per item the model actually scored (a truncated response yields fewer
// results than items; the caller treats the gap as per-item failure).
func (a *AnthropicScorer) ScoreBatch(ctx context.Context, items []score.RequestItem) ([]score.ResultItem, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var results []score.ResultItem

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doScore(ctx, items)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", a.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		results = cbResult.([]score.ResultItem)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("anthropic score batch failed after retries: %w", retryErr)
	}

	return results, nil
}

func (a *AnthropicScorer) doScore(ctx context.Context, items []score.RequestItem) ([]score.ResultItem, error) {
	requestID := uuid.New().String()
	prompt := a.buildPrompt(items)

	slog.InfoContext(ctx, "starting admission score batch",
		slog.String("request_id", requestID),
		slog.Int("batch_size", len(items)))

	start := time.Now()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "admission score batch failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return nil, fmt.Errorf("claude api returned unexpected response type")
	}

	raw, err := jsonextract.Array(textBlock.Text)
	if err != nil {
		slog.WarnContext(ctx, "admission score response unparseable",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", score.ErrSchemaParse, err)
	}

	results := make([]score.ResultItem, 0, len(raw))
	for _, r := range raw {
		var item scoreResponseItem
		if jsonErr := jsonextract.Object(string(r), &item); jsonErr != nil {
			continue
		}
		item.Category = strings.TrimSpace(strings.ToLower(item.Category))
		results = append(results, score.ResultItem{ID: item.ID, Score: item.Score, Category: item.Category})
	}

	slog.InfoContext(ctx, "admission score batch completed",
		slog.String("request_id", requestID),
		slog.Int("scored", len(results)),
		slog.Duration("duration", duration))

	return results, nil
}

func (a *AnthropicScorer) buildPrompt(items []score.RequestItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score each article's admission-worthiness on a 0-%.0f scale, judging global relevance, surprise, accessibility, and scientific interest. ", a.maxScore)
	b.WriteString("Return ONLY a JSON array, one object per article, each exactly `{\"id\":<id>,\"score\":<number>,\"category\":<short label>}`, in the same order as the input. No prose, no markdown fences.\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "id=%d source=%q title=%q description=%q\n", item.ID, item.Source, item.Title, truncateForPrompt(item.Description))
	}
	return b.String()
}

const maxPromptDescriptionChars = 500

func truncateForPrompt(s string) string {
	if len(s) <= maxPromptDescriptionChars {
		return s
	}
	return s[:maxPromptDescriptionChars]
}

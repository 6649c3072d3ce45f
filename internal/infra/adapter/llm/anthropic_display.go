package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"newsloom/internal/infra/adapter/llm/jsonextract"
	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/resilience/retry"
	"newsloom/internal/usecase/display"
)

// AnthropicDisplayScorerConfig configures the Claude-backed display scorer.
type AnthropicDisplayScorerConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicDisplayScorerConfig mirrors the teacher's ClaudeConfig
// defaults.
func DefaultAnthropicDisplayScorerConfig() AnthropicDisplayScorerConfig {
	return AnthropicDisplayScorerConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 256,
		Timeout:   30 * time.Second,
	}
}

// AnthropicDisplayScorer implements display.ScoreClient.
type AnthropicDisplayScorer struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         AnthropicDisplayScorerConfig
}

// NewAnthropicDisplayScorer builds an AnthropicDisplayScorer authenticated
// with apiKey.
func NewAnthropicDisplayScorer(apiKey string) *AnthropicDisplayScorer {
	return &AnthropicDisplayScorer{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultAnthropicDisplayScorerConfig(),
	}
}

type displayScoreResponse struct {
	Score int `json:"score"`
}

// Score calls Claude once, returning the raw score; range validation and
// the 750 fallback live in the usecase layer.
func (a *AnthropicDisplayScorer) Score(ctx context.Context, title string, bullets []string, anchors []display.ReferenceAnchor) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var result int

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doScore(ctx, title, bullets, anchors)
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
		result = cbResult.(int)
		return nil
	})

	if retryErr != nil {
		return 0, fmt.Errorf("anthropic display score failed after retries: %w", retryErr)
	}

	return result, nil
}

func (a *AnthropicDisplayScorer) doScore(ctx context.Context, title string, bullets []string, anchors []display.ReferenceAnchor) (int, error) {
	requestID := uuid.New().String()
	prompt := buildDisplayScorePrompt(title, bullets, anchors)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "display score call failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return 0, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return 0, fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return 0, fmt.Errorf("claude api returned unexpected response type")
	}

	var resp displayScoreResponse
	if err := jsonextract.Object(textBlock.Text, &resp); err != nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(textBlock.Text)); convErr == nil {
			return n, nil
		}
		return 0, fmt.Errorf("display score schema parse: %w", err)
	}

	return resp.Score, nil
}

func buildDisplayScorePrompt(title string, bullets []string, anchors []display.ReferenceAnchor) string {
	var b strings.Builder
	b.WriteString("Assign this article a priority score from 0 to 1000 for a global news reader. ")
	b.WriteString("Spread scores across tiers: >=900 must-know globally, 850-899 very important, 800-849 important, 750-799 worth reading, 700-749 lower priority, below 700 marginal.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	if len(anchors) > 0 {
		b.WriteString("\nFor calibration, here are recently-scored articles:\n")
		for _, anchor := range anchors {
			fmt.Fprintf(&b, "- %q scored %d\n", anchor.Title, anchor.Score)
		}
	}
	b.WriteString("\nReturn ONLY JSON: {\"score\": <integer 0-1000>}. No prose, no markdown fences.")
	return b.String()
}

// AnthropicTagger implements display.TagClient.
type AnthropicTagger struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         AnthropicDisplayScorerConfig
}

// NewAnthropicTagger builds an AnthropicTagger authenticated with apiKey.
func NewAnthropicTagger(apiKey string) *AnthropicTagger {
	return &AnthropicTagger{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultAnthropicDisplayScorerConfig(),
	}
}

type tagResponse struct {
	Countries []string `json:"countries"`
	Topics    []string `json:"topics"`
}

// Tag calls Claude once; vocabulary filtering happens in the usecase layer.
func (a *AnthropicTagger) Tag(ctx context.Context, title string, bullets []string, category string) (*display.Tags, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var result *display.Tags

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doTag(ctx, title, bullets, category)
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
		result = cbResult.(*display.Tags)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("anthropic tagger failed after retries: %w", retryErr)
	}

	return result, nil
}

func (a *AnthropicTagger) doTag(ctx context.Context, title string, bullets []string, category string) (*display.Tags, error) {
	requestID := uuid.New().String()
	prompt := buildTagPrompt(title, bullets, category)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "tagger call failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return nil, fmt.Errorf("claude api returned unexpected response type")
	}

	var resp tagResponse
	if err := jsonextract.Object(textBlock.Text, &resp); err != nil {
		return nil, fmt.Errorf("tagger schema parse: %w", err)
	}

	return &display.Tags{Countries: resp.Countries, Topics: resp.Topics}, nil
}

func buildTagPrompt(title string, bullets []string, category string) string {
	var b strings.Builder
	b.WriteString("Tag this article with up to 3 ISO country codes most relevant to the story, and 1-3 topic labels.\n\n")
	fmt.Fprintf(&b, "Title: %s\nCategory: %s\n", title, category)
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	b.WriteString("\nReturn ONLY JSON: {\"countries\": [\"US\", ...], \"topics\": [\"politics\", ...]}. No prose, no markdown fences.")
	return b.String()
}

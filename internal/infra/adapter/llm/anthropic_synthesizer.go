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
	"newsloom/internal/usecase/synthesize"
)

// AnthropicSynthesizerConfig configures the Claude-backed multi-source
// synthesizer.
type AnthropicSynthesizerConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicSynthesizerConfig mirrors the teacher's ClaudeConfig
// defaults, with a higher token ceiling than the scorer since synthesis
// produces two full-length article bodies.
func DefaultAnthropicSynthesizerConfig() AnthropicSynthesizerConfig {
	return AnthropicSynthesizerConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 4096,
		Timeout:   90 * time.Second,
	}
}

// AnthropicSynthesizer implements synthesize.Client against Anthropic's
// Messages API.
type AnthropicSynthesizer struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         AnthropicSynthesizerConfig
}

// NewAnthropicSynthesizer builds an AnthropicSynthesizer authenticated with
// apiKey.
func NewAnthropicSynthesizer(apiKey string) *AnthropicSynthesizer {
	return &AnthropicSynthesizer{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultAnthropicSynthesizerConfig(),
	}
}

// synthesisResponse matches spec.md §6's synthesizer JSON contract:
// `{title, summary_bullets[4], content_standard, content_b2, keywords, category}`.
type synthesisResponse struct {
	Title           string   `json:"title"`
	SummaryBullets  []string `json:"summary_bullets"`
	ContentStandard string   `json:"content_standard"`
	ContentB2       string   `json:"content_b2"`
	Keywords        []string `json:"keywords"`
	Category        string   `json:"category"`
}

// Synthesize calls Claude once and parses its strict-JSON response. Word
// count and firsthand-reporting checks happen in the usecase layer so the
// retry loop can ask the model again with no adapter-level state.
func (a *AnthropicSynthesizer) Synthesize(ctx context.Context, clusterTitle string, sources []synthesize.SourceText) (*synthesize.Synthesis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var result *synthesize.Synthesis

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doSynthesize(ctx, clusterTitle, sources)
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
		result = cbResult.(*synthesize.Synthesis)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("anthropic synthesis failed after retries: %w", retryErr)
	}

	return result, nil
}

func (a *AnthropicSynthesizer) doSynthesize(ctx context.Context, clusterTitle string, sources []synthesize.SourceText) (*synthesize.Synthesis, error) {
	requestID := uuid.New().String()
	prompt := a.buildPrompt(clusterTitle, sources)

	slog.InfoContext(ctx, "starting synthesis",
		slog.String("request_id", requestID),
		slog.String("cluster_title", clusterTitle),
		slog.Int("source_count", len(sources)))

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
		slog.ErrorContext(ctx, "synthesis call failed",
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

	var resp synthesisResponse
	if err := jsonextract.Object(textBlock.Text, &resp); err != nil {
		slog.WarnContext(ctx, "synthesis response unparseable",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("synthesis schema parse: %w", err)
	}

	slog.InfoContext(ctx, "synthesis completed",
		slog.String("request_id", requestID), slog.Duration("duration", duration))

	return &synthesize.Synthesis{
		Title:           resp.Title,
		SummaryBullets:  resp.SummaryBullets,
		ContentStandard: resp.ContentStandard,
		ContentB2:       resp.ContentB2,
		Keywords:        resp.Keywords,
		Category:        strings.ToLower(strings.TrimSpace(resp.Category)),
	}, nil
}

func (a *AnthropicSynthesizer) buildPrompt(clusterTitle string, sources []synthesize.SourceText) string {
	var b strings.Builder
	b.WriteString("Write one firsthand news article synthesizing the following source accounts of the same event. ")
	b.WriteString("Do not write like a roundup: never say things like \"reports say\" or \"according to multiple sources\". ")
	b.WriteString("If sources conflict on a fact, prefer the account with the most recent timestamp; if still unclear, attribute the fact inline to the higher-credibility source.\n\n")
	fmt.Fprintf(&b, "Event: %s\n\n", clusterTitle)
	for _, s := range sources {
		fmt.Fprintf(&b, "--- source=%q credibility=%d published=%s ---\n%s\n\n",
			s.SourceName, s.Credibility, s.PublishedAt.Format(time.RFC3339), truncateSourceText(s.Text))
	}
	b.WriteString("Return ONLY JSON: {\"title\":string, \"summary_bullets\":[4 strings, each 15-25 words covering what/where/when, who, impact, context], ")
	b.WriteString("\"content_standard\":string (300-400 words), \"content_b2\":string (300-400 words, simple B2-level English), ")
	b.WriteString("\"keywords\":[strings], \"category\":string}. No prose, no markdown fences.")
	return b.String()
}

const maxSourceTextChars = 4000

func truncateSourceText(s string) string {
	if len(s) <= maxSourceTextChars {
		return s
	}
	return s[:maxSourceTextChars]
}

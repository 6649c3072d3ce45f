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

	"newsloom/internal/domain/entity"
	"newsloom/internal/infra/adapter/llm/jsonextract"
	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/resilience/retry"
	"newsloom/internal/usecase/enrich"
)

// AnthropicEnricherConfig configures the Claude-backed component enricher.
type AnthropicEnricherConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicEnricherConfig mirrors the teacher's ClaudeConfig
// defaults.
func DefaultAnthropicEnricherConfig() AnthropicEnricherConfig {
	return AnthropicEnricherConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// AnthropicEnricher implements enrich.Client. Grounding for component
// claims (dates, figures, coordinates) is delegated to the model's own
// knowledge via prompting, per spec.md §4.9; shape validation against the
// component schemas happens in the usecase layer, not here.
type AnthropicEnricher struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         AnthropicEnricherConfig
}

// NewAnthropicEnricher builds an AnthropicEnricher authenticated with apiKey.
func NewAnthropicEnricher(apiKey string) *AnthropicEnricher {
	return &AnthropicEnricher{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultAnthropicEnricherConfig(),
	}
}

// enrichResponse mirrors spec.md §6's `{timeline?, details?, graph?, map?}`
// contract.
type enrichResponse struct {
	Timeline []struct {
		Date string `json:"date"`
		Text string `json:"text"`
	} `json:"timeline"`
	Details []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"details"`
	Graph *struct {
		Title  string `json:"title"`
		Unit   string `json:"unit"`
		Source string `json:"source"`
		Points []struct {
			Label string  `json:"label"`
			Value float64 `json:"value"`
		} `json:"points"`
	} `json:"graph"`
	Map *struct {
		Name      string  `json:"name"`
		City      string  `json:"city"`
		Country   string  `json:"country"`
		Reason    string  `json:"reason"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"map"`
}

// Enrich calls Claude once and maps its response into enrich.Components.
func (a *AnthropicEnricher) Enrich(ctx context.Context, title string, bullets []string, contentStandard string) (*enrich.Components, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var result *enrich.Components

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doEnrich(ctx, title, bullets, contentStandard)
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
		result = cbResult.(*enrich.Components)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("anthropic enrichment failed after retries: %w", retryErr)
	}

	return result, nil
}

func (a *AnthropicEnricher) doEnrich(ctx context.Context, title string, bullets []string, contentStandard string) (*enrich.Components, error) {
	requestID := uuid.New().String()
	prompt := a.buildPrompt(title, bullets, contentStandard)

	slog.InfoContext(ctx, "starting component enrichment",
		slog.String("request_id", requestID), slog.String("title", title))

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
		slog.ErrorContext(ctx, "enrichment call failed",
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

	var resp enrichResponse
	if err := jsonextract.Object(textBlock.Text, &resp); err != nil {
		slog.WarnContext(ctx, "enrichment response unparseable",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("enrichment schema parse: %w", err)
	}

	slog.InfoContext(ctx, "enrichment completed",
		slog.String("request_id", requestID), slog.Duration("duration", duration))

	return toComponents(&resp), nil
}

func toComponents(resp *enrichResponse) *enrich.Components {
	var c enrich.Components

	for _, e := range resp.Timeline {
		c.Timeline = append(c.Timeline, entity.TimelineEvent{Date: e.Date, Text: e.Text})
	}
	for _, d := range resp.Details {
		c.Details = append(c.Details, entity.DetailEntry{Label: d.Label, Value: d.Value})
	}
	if resp.Graph != nil {
		g := &entity.Graph{Title: resp.Graph.Title, Unit: resp.Graph.Unit, Source: resp.Graph.Source}
		for _, p := range resp.Graph.Points {
			g.Points = append(g.Points, entity.GraphPoint{Label: p.Label, Value: p.Value})
		}
		c.Graph = g
	}
	if resp.Map != nil {
		c.Map = &entity.MapAnchor{
			Name: resp.Map.Name, City: resp.Map.City, Country: resp.Map.Country,
			Reason: resp.Map.Reason, Latitude: resp.Map.Latitude, Longitude: resp.Map.Longitude,
		}
	}

	return &c
}

func (a *AnthropicEnricher) buildPrompt(title string, bullets []string, contentStandard string) string {
	var b strings.Builder
	b.WriteString("Given this published article, decide which of four optional components genuinely apply, using your own knowledge of the event. ")
	b.WriteString("Omit any component that doesn't clearly qualify rather than forcing weak data.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	fmt.Fprintf(&b, "\n%s\n\n", contentStandard)
	b.WriteString("Rules:\n")
	b.WriteString("- timeline: only if the story is ongoing/multi-event (wars, long cases, crises). 2-4 chronological events, each <=14 words, dated like \"Oct 14, 2024\". Never repeat the headline event.\n")
	b.WriteString("- details: exactly 3 label:value entries, label 1-3 words, values not already stated in the title or bullets.\n")
	b.WriteString("- graph: only if there's a real citable numeric series (rates, prices, polls, measurements). At least 4 datapoints, with a named source.\n")
	b.WriteString("- map: only if there's a specific newsworthy location (crash site, epicenter, attack venue, disputed site) - not a generic city/country mention or a famous government building. Include name, city, country, a brief reason, and coordinates.\n\n")
	b.WriteString("Return ONLY JSON: {\"timeline\": [...] or omitted, \"details\": [...] or omitted, \"graph\": {...} or omitted, \"map\": {...} or omitted}. No prose, no markdown fences.")
	return b.String()
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/resilience/retry"
	"newsloom/internal/usecase/cluster"
)

// EmbeddingDimension is the fixed vector dimension D the clustering engine
// expects, per spec.md §4.5 ("D is fixed (typical 768)"). OpenAI's
// text-embedding-3-small defaults to 1536; it's requested at this
// dimension explicitly via the API's "dimensions" parameter.
const EmbeddingDimension = 768

// OpenAIEmbedder implements cluster.Embedder against OpenAI's embeddings
// endpoint, following the same circuit-breaker/retry composition as the
// teacher's summarizer adapters.
type OpenAIEmbedder struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          openai.EmbeddingModel
	timeout        time.Duration
}

// NewOpenAIEmbedder builds an OpenAIEmbedder authenticated with apiKey.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          openai.SmallEmbedding3,
		timeout:        30 * time.Second,
	}
}

// Embed returns text's embedding vector. A circuit-breaker-open or
// exhausted-retries condition is reported as cluster.ErrEmbeddingUnavailable
// so the clustering engine can fall back to its lexical-only rule instead
// of failing the whole assignment.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var vector []float32

	retryErr := retry.WithBackoff(ctx, e.retryConfig, func() error {
		cbResult, err := e.circuitBreaker.Execute(func() (interface{}, error) {
			return e.doEmbed(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai embedding circuit breaker open, request rejected",
					slog.String("state", e.circuitBreaker.State().String()))
				return fmt.Errorf("openai embeddings unavailable: circuit breaker open")
			}
			return err
		}
		vector = cbResult.([]float32)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("%w: %w", cluster.ErrEmbeddingUnavailable, retryErr)
	}

	return vector, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings api returned empty response")
	}
	return resp.Data[0].Embedding, nil
}

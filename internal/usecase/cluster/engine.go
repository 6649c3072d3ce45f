// Package cluster implements the Clustering Engine (C5): the pipeline's
// hardest subsystem, deciding whether each scored article continues an
// existing cluster or opens a new one.
package cluster

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newsloom/internal/config"
	"newsloom/internal/domain/entity"
	"newsloom/internal/observability/metrics"
	"newsloom/internal/repository"
)

// Embedder produces a fixed-dimension embedding for a piece of text. The
// OpenAI-backed implementation lives in internal/infra/adapter/llm;
// Engine only depends on this interface so tests substitute a fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const defaultMaxKeywords = 20

// Engine holds the in-memory table of active clusters, guarded by a single
// mutex per spec.md §5's "serialize on each cluster; a single clustering
// worker is acceptable" allowance — sharding would be premature for this
// workload.
type Engine struct {
	Repo     repository.ClusterRepository
	Embedder Embedder
	Config   config.ClusterConfig

	mu       sync.Mutex
	clusters map[int64]*entity.Cluster
}

// NewEngine builds an Engine. Call LoadActive once at cycle start before
// the first Assign.
func NewEngine(repo repository.ClusterRepository, embedder Embedder, cfg config.ClusterConfig) *Engine {
	return &Engine{Repo: repo, Embedder: embedder, Config: cfg, clusters: map[int64]*entity.Cluster{}}
}

// LoadActive refreshes the in-memory cluster table from the store. Call
// once per cycle before any Assign calls.
func (e *Engine) LoadActive(ctx context.Context) error {
	active, err := e.Repo.ListActive(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.clusters = make(map[int64]*entity.Cluster, len(active))
	for _, c := range active {
		e.clusters[c.ID] = c
	}
	e.mu.Unlock()

	metrics.UpdateClustersActive(len(active))
	return nil
}

// Assign decides which cluster article belongs to, attaching it if a match
// is found or opening a new cluster otherwise, and persists the resulting
// cluster state. It implements spec.md §4.5's matching algorithm exactly.
func (e *Engine) Assign(ctx context.Context, article *entity.SourceArticle) (int64, bool, error) {
	embedding, err := e.Embedder.Embed(ctx, embedText(article))
	lexicalOnly := false
	if err != nil {
		if !errors.Is(err, ErrEmbeddingUnavailable) {
			return 0, false, err
		}
		slog.Warn("embedding unavailable, falling back to lexical-only clustering",
			slog.Int64("article_id", article.ID))
		lexicalOnly = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.clusters) == 0 {
		return e.openLocked(ctx, article, embedding)
	}

	if lexicalOnly {
		return e.assignLexicalOnlyLocked(ctx, article)
	}

	best, bestSim, found := e.pickBestLocked(embedding)
	if !found {
		return e.openLocked(ctx, article, embedding)
	}

	if bestSim >= e.Config.THigh {
		metrics.RecordClusterAssignment(false)
		return best.ID, false, e.attachLocked(ctx, best, article, embedding)
	}

	if bestSim >= e.Config.TMid {
		articleTokens := tokenize(article.Title)
		clusterTokens := tokenSet(best.Title, best.Keywords)
		if jaccard(articleTokens, clusterTokens) >= e.Config.Jaccard {
			metrics.RecordClusterAssignment(false)
			return best.ID, false, e.attachLocked(ctx, best, article, embedding)
		}
	}

	return e.openLocked(ctx, article, embedding)
}

// assignLexicalOnlyLocked implements the stricter (Jaccard>=0.5)
// lexical-only rule used when the embedding vendor is unreachable.
const lexicalOnlyJaccard = 0.5

func (e *Engine) assignLexicalOnlyLocked(ctx context.Context, article *entity.SourceArticle) (int64, bool, error) {
	articleTokens := tokenize(article.Title)

	var best *entity.Cluster
	bestScore := 0.0
	for _, c := range e.clusters {
		score := jaccard(articleTokens, tokenSet(c.Title, c.Keywords))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}

	if best != nil && bestScore >= lexicalOnlyJaccard {
		metrics.RecordClusterAssignment(false)
		return best.ID, false, e.attachLocked(ctx, best, article, nil)
	}

	return e.openLocked(ctx, article, nil)
}

// pickBestLocked returns the active cluster with the highest cosine
// similarity to embedding, breaking ties by more-recent LastUpdatedAt.
func (e *Engine) pickBestLocked(embedding []float32) (*entity.Cluster, float64, bool) {
	var best *entity.Cluster
	bestSim := -1.0

	for _, c := range e.clusters {
		sim := cosineSimilarity(embedding, c.CentroidEmbedding)
		if sim > bestSim {
			bestSim = sim
			best = c
			continue
		}
		if sim == bestSim && best != nil && c.LastUpdatedAt.After(best.LastUpdatedAt) {
			best = c
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestSim, true
}

func (e *Engine) attachLocked(ctx context.Context, c *entity.Cluster, article *entity.SourceArticle, embedding []float32) error {
	if embedding != nil {
		c.CentroidEmbedding = entity.UpdateCentroid(c.CentroidEmbedding, c.SourceCount, embedding)
	}
	c.SourceCount++
	c.LastUpdatedAt = time.Now()
	c.Keywords = entity.MergeKeywords(c.Keywords, tokenKeywords(article.Title), defaultMaxKeywords)

	if err := e.Repo.UpdateState(ctx, c); err != nil {
		return err
	}
	return article.MarkClustered(c.ID)
}

func (e *Engine) openLocked(ctx context.Context, article *entity.SourceArticle, embedding []float32) (int64, bool, error) {
	now := time.Now()
	c := &entity.Cluster{
		Title:             article.Title,
		Keywords:          tokenKeywords(article.Title),
		CentroidEmbedding: embedding,
		Status:            entity.ClusterActive,
		SourceCount:       1,
		Category:          article.Category,
		FirstSeenAt:       now,
		LastUpdatedAt:     now,
	}

	if err := e.Repo.Create(ctx, c); err != nil {
		return 0, false, err
	}

	e.clusters[c.ID] = c
	metrics.RecordClusterAssignment(true)
	metrics.UpdateClustersActive(len(e.clusters))

	return c.ID, true, article.MarkClustered(c.ID)
}

func tokenKeywords(title string) []string {
	tokens := tokenize(title)
	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	return out
}

func embedText(article *entity.SourceArticle) string {
	if article.Content != "" {
		return article.Title + "\n" + article.Content
	}
	return article.Title + "\n" + article.Description
}

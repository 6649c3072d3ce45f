// Package orchestrator implements the Cycle Orchestrator use case (C13):
// the single entry point that drives one full pipeline cycle end to end,
// wiring every other use case together in the order spec.md §5 requires.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"newsloom/internal/domain/catalogue"
	"newsloom/internal/domain/entity"
	"newsloom/internal/observability/tracing"
	"newsloom/internal/repository"
	"newsloom/internal/usecase/cluster"
	"newsloom/internal/usecase/dedup"
	"newsloom/internal/usecase/display"
	"newsloom/internal/usecase/enrich"
	"newsloom/internal/usecase/fetch"
	"newsloom/internal/usecase/fulltext"
	"newsloom/internal/usecase/image"
	"newsloom/internal/usecase/lifecycle"
	"newsloom/internal/usecase/publish"
	"newsloom/internal/usecase/score"
	"newsloom/internal/usecase/synthesize"
)

// clusterPipelineWorkers bounds how many clusters are synthesized,
// enriched, scored-for-display and published concurrently in one cycle.
// Unlike the feed-fetch and full-text-fetch fan-outs, spec.md §6 has no
// environment variable for this; a fixed constant keeps the stage bounded
// without adding a knob the spec never asked for.
const clusterPipelineWorkers = 5

// pendingBacklogLimit caps how many pending SourceArticles are pulled back
// for clustering after scoring. It also bounds how much of a previous
// cycle's abandoned pending rows (see Run's ingest/admit comment) get
// reprocessed in a single cycle.
const pendingBacklogLimit = 500

// recentAnchorLimit is how many recently published articles are offered to
// the Display Scorer as calibration anchors.
const recentAnchorLimit = 10

// Outcome is the terminal state of one Run call.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Stats tallies what happened during one cycle, mirroring
// repository.CycleRecord's counters so Run's result can be persisted
// directly.
type Stats struct {
	Fetched     int
	New         int
	Scored      int
	Rejected    int
	Clustered   int
	Synthesized int
	Published   int
	Revised     int
	Errors      int
}

// Result is what Run returns to its caller (the HTTP trigger handler or the
// cron fallback in cmd/pipeline), enough to build both a JSON response and
// a CycleRecord.
type Result struct {
	Outcome    Outcome
	Message    string
	Stats      Stats
	StartedAt  time.Time
	FinishedAt time.Time
}

// Service wires every pipeline use case together into one cycle. Each field
// is the already-built use case for its stage; Service owns none of their
// internals, only the order they run in and the stats/error bookkeeping
// between them.
type Service struct {
	Lock      *lifecycle.LockManager
	Sweeper   *lifecycle.Sweeper
	Catalogue *catalogue.Catalogue

	Fetch *fetch.Service
	Dedup *dedup.Gate

	SourceRepo    repository.SourceArticleRepository
	ClusterRepo   repository.ClusterRepository
	PublishedRepo repository.PublishedArticleRepository
	CycleRepo     repository.CycleRepository

	Score    *score.Service
	Contract score.AdmissionContract

	Cluster *cluster.Engine

	FulltextFetcher fulltext.Fetcher
	FulltextWorkers int

	ImageSelector *image.Selector
	Synthesizer   *synthesize.Service
	Enricher      *enrich.Service
	Display       *display.Service
	Publisher     *publish.Service

	// Deadline bounds the whole cycle; zero means no deadline.
	Deadline time.Duration
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewService builds a Service from its fully-wired dependencies.
func NewService(
	lock *lifecycle.LockManager,
	sweeper *lifecycle.Sweeper,
	cat *catalogue.Catalogue,
	fetchSvc *fetch.Service,
	dedupGate *dedup.Gate,
	sourceRepo repository.SourceArticleRepository,
	clusterRepo repository.ClusterRepository,
	publishedRepo repository.PublishedArticleRepository,
	cycleRepo repository.CycleRepository,
	scoreSvc *score.Service,
	contract score.AdmissionContract,
	clusterEngine *cluster.Engine,
	fulltextFetcher fulltext.Fetcher,
	fulltextWorkers int,
	imageSelector *image.Selector,
	synthesizer *synthesize.Service,
	enricher *enrich.Service,
	displaySvc *display.Service,
	publisher *publish.Service,
	deadline time.Duration,
) *Service {
	return &Service{
		Lock:            lock,
		Sweeper:         sweeper,
		Catalogue:       cat,
		Fetch:           fetchSvc,
		Dedup:           dedupGate,
		SourceRepo:      sourceRepo,
		ClusterRepo:     clusterRepo,
		PublishedRepo:   publishedRepo,
		CycleRepo:       cycleRepo,
		Score:           scoreSvc,
		Contract:        contract,
		Cluster:         clusterEngine,
		FulltextFetcher: fulltextFetcher,
		FulltextWorkers: fulltextWorkers,
		ImageSelector:   imageSelector,
		Synthesizer:     synthesizer,
		Enricher:        enricher,
		Display:         displaySvc,
		Publisher:       publisher,
		Deadline:        deadline,
		Now:             time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run drives one complete cycle: lock, sweep, fetch, dedup, score, cluster,
// fetch full text, synthesize/enrich/score-for-display/publish per cluster,
// record the cycle, release the lock. It never panics on a single stage's
// failure; every stage isolates its errors into stats.Errors and keeps
// going, matching the rest of the pipeline's fail-open posture. Only a
// handful of genuinely unrecoverable failures (lock acquisition itself
// erroring, cluster table load failing, fetch failing outright) abort the
// cycle early.
func (s *Service) Run(ctx context.Context) Result {
	ctx, span := tracing.GetTracer().Start(ctx, "orchestrator.Run")
	defer span.End()

	started := s.now()
	stats := &Stats{}

	if s.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Deadline)
		defer cancel()
	}

	outcome, err := s.Lock.Acquire(ctx)
	if err != nil {
		return s.finish(OutcomeFailed, "failed to acquire run lock: "+err.Error(), stats, started)
	}
	if outcome == lifecycle.LockSkipped {
		return s.finish(OutcomeSkipped, "another cycle is already running", stats, started)
	}
	defer s.Lock.Release(context.Background())

	if closed, err := s.Sweeper.Sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "cluster lifecycle sweep failed", slog.Any("error", err))
		stats.Errors++
	} else if closed > 0 {
		slog.InfoContext(ctx, "closed stale clusters", slog.Int("count", closed))
	}

	if err := s.Cluster.LoadActive(ctx); err != nil {
		return s.finish(OutcomeFailed, "failed to load active clusters: "+err.Error(), stats, started)
	}

	sources := s.Catalogue.ListSources()
	fetchCtx, fetchSpan := tracing.GetTracer().Start(ctx, "orchestrator.fetch")
	rawArticles, fetchStats, err := s.Fetch.FetchAll(fetchCtx, sources)
	fetchSpan.End()
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return s.finish(OutcomeFailed, "feed fetch failed: "+err.Error(), stats, started)
	}
	stats.Fetched = len(rawArticles)
	if fetchStats != nil && fetchStats.SourcesFailed > 0 {
		stats.Errors += int(fetchStats.SourcesFailed)
	}

	ingestCtx, ingestSpan := tracing.GetTracer().Start(ctx, "orchestrator.ingest")
	fresh := s.ingest(ingestCtx, rawArticles, stats)
	ingestSpan.End()
	stats.New = len(fresh)

	clusterCtx, clusterSpan := tracing.GetTracer().Start(ctx, "orchestrator.admitAndCluster")
	touchedClusters := s.admitAndCluster(clusterCtx, fresh, stats)
	clusterSpan.End()

	fulltextCtx, fulltextSpan := tracing.GetTracer().Start(ctx, "orchestrator.fetchFullText")
	s.fetchFullText(fulltextCtx, touchedClusters, stats)
	fulltextSpan.End()

	publishCtx, publishSpan := tracing.GetTracer().Start(ctx, "orchestrator.publishClusters")
	s.publishClusters(publishCtx, touchedClusters, stats)
	publishSpan.End()

	span.SetAttributes(
		attribute.Int("cycle.fetched", stats.Fetched),
		attribute.Int("cycle.new", stats.New),
		attribute.Int("cycle.published", stats.Published),
		attribute.Int("cycle.errors", stats.Errors),
	)

	return s.finish(OutcomeSuccess, "cycle completed", stats, started)
}

func (s *Service) finish(outcome Outcome, message string, stats *Stats, started time.Time) Result {
	finished := s.now()
	result := Result{
		Outcome:    outcome,
		Message:    message,
		Stats:      *stats,
		StartedAt:  started,
		FinishedAt: finished,
	}

	record := &repository.CycleRecord{
		StartedAt:   started,
		FinishedAt:  finished,
		Fetched:     stats.Fetched,
		New:         stats.New,
		Scored:      stats.Scored,
		Rejected:    stats.Rejected,
		Clustered:   stats.Clustered,
		Synthesized: stats.Synthesized,
		Published:   stats.Published,
		Revised:     stats.Revised,
		Errors:      stats.Errors,
		Outcome:     string(outcome),
	}
	if outcome == OutcomeFailed {
		record.FailureNote = message
	}
	if err := s.CycleRepo.Record(context.Background(), record); err != nil {
		slog.Error("failed to record cycle statistics", slog.Any("error", err))
	}

	return result
}

// ingest normalizes and persists every newly-seen raw article. A duplicate
// normalized_url (a race against another process, or a retried fetch
// within the same cycle) is treated as idempotent success, per
// repository.ErrDuplicateNormalizedURL's contract.
func (s *Service) ingest(ctx context.Context, raw []entity.RawArticle, stats *Stats) []*entity.SourceArticle {
	if len(raw) == 0 {
		return nil
	}

	normalized := make([]string, len(raw))
	for i, r := range raw {
		normalized[i] = dedup.Normalize(r.Link)
	}

	isNew, err := s.Dedup.IsNewBatch(ctx, normalized)
	if err != nil {
		slog.ErrorContext(ctx, "dedup batch lookup failed", slog.Any("error", err))
		stats.Errors++
		return nil
	}

	now := s.now()
	created := make([]*entity.SourceArticle, 0, len(raw))
	for i, r := range raw {
		if !isNew[normalized[i]] {
			continue
		}

		a := &entity.SourceArticle{
			NormalizedURL: normalized[i],
			OriginalURL:   r.Link,
			SourceName:    r.SourceName,
			Title:         r.Title,
			Description:   r.Description,
			ImageURL:      r.ImageURL,
			PublishedAt:   r.PublishedAt,
			FetchedAt:     now,
			Status:        entity.StatusPending,
		}

		if err := s.SourceRepo.Create(ctx, a); err != nil {
			if errors.Is(err, repository.ErrDuplicateNormalizedURL) {
				continue
			}
			slog.WarnContext(ctx, "persisting source article failed",
				slog.String("url", a.NormalizedURL), slog.Any("error", err))
			stats.Errors++
			continue
		}
		created = append(created, a)
	}

	return created
}

// admitAndCluster runs the Admission Scorer over freshly ingested articles,
// then re-lists pending articles and runs each through the clustering
// engine.
//
// Score never mutates its candidates' in-memory Status: admitted articles
// stay "pending" in the database until attached to a cluster here, which
// means ListPending naturally also recovers any article left pending by an
// interrupted previous cycle. That is deliberate, not a gap: a crashed
// cycle should not strand admitted articles unclustered forever.
func (s *Service) admitAndCluster(ctx context.Context, fresh []*entity.SourceArticle, stats *Stats) []int64 {
	if len(fresh) > 0 {
		stats.Scored = len(fresh)
		scoreStats, err := s.Score.Score(ctx, fresh)
		if err != nil {
			slog.ErrorContext(ctx, "admission scoring failed", slog.Any("error", err))
			stats.Errors++
		} else if scoreStats != nil {
			stats.Rejected = scoreStats.Rejected + scoreStats.AutoRejectedNoImage
		}
	}

	admitted, err := s.SourceRepo.ListPending(ctx, pendingBacklogLimit)
	if err != nil {
		slog.ErrorContext(ctx, "listing admitted articles failed", slog.Any("error", err))
		stats.Errors++
		return nil
	}

	var touched []int64
	seen := make(map[int64]bool)
	for _, a := range admitted {
		clusterID, _, err := s.Cluster.Assign(ctx, a)
		if err != nil {
			slog.ErrorContext(ctx, "cluster assignment failed",
				slog.Int64("article_id", a.ID), slog.Any("error", err))
			stats.Errors++
			continue
		}
		if err := s.SourceRepo.AttachToCluster(ctx, a.ID, clusterID); err != nil {
			slog.ErrorContext(ctx, "attaching article to cluster failed",
				slog.Int64("article_id", a.ID), slog.Int64("cluster_id", clusterID), slog.Any("error", err))
			stats.Errors++
			continue
		}
		stats.Clustered++
		if !seen[clusterID] {
			seen[clusterID] = true
			touched = append(touched, clusterID)
		}
	}

	return touched
}

// fetchFullText fetches clean article text for every member of every
// touched cluster whose content is still too thin to synthesize from, at
// most once per unique URL this cycle. Per spec.md §4.6, full-text fetch
// only ever runs on cluster members, never on every admitted article, so
// this stage runs after clustering rather than before it.
func (s *Service) fetchFullText(ctx context.Context, clusterIDs []int64, stats *Stats) {
	if len(clusterIDs) == 0 {
		return
	}

	seen := make(map[string]bool)
	var toFetch []*entity.SourceArticle
	for _, cid := range clusterIDs {
		members, err := s.SourceRepo.ListByCluster(ctx, cid)
		if err != nil {
			slog.ErrorContext(ctx, "listing cluster members for full-text fetch failed",
				slog.Int64("cluster_id", cid), slog.Any("error", err))
			stats.Errors++
			continue
		}
		for _, m := range members {
			if len(m.Content) >= fulltext.MinChars || seen[m.NormalizedURL] {
				continue
			}
			seen[m.NormalizedURL] = true
			toFetch = append(toFetch, m)
		}
	}
	if len(toFetch) == 0 {
		return
	}

	var mu sync.Mutex
	workers := s.FulltextWorkers
	if workers <= 0 {
		workers = 1
	}

	eg := &errgroup.Group{}
	eg.SetLimit(workers)
	for _, member := range toFetch {
		m := member
		eg.Go(func() error {
			s.fetchOneFullText(ctx, m, stats, &mu)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Service) fetchOneFullText(ctx context.Context, a *entity.SourceArticle, stats *Stats, mu *sync.Mutex) {
	article, err := s.FulltextFetcher.Fetch(ctx, a.OriginalURL)
	if err != nil {
		slog.WarnContext(ctx, "full-text fetch failed, synthesis falls back to the RSS description",
			slog.Int64("article_id", a.ID), slog.Any("error", err))
		return
	}

	text := fulltext.Truncate(article.Text)
	if err := s.SourceRepo.UpdateContent(ctx, a.ID, text); err != nil {
		slog.ErrorContext(ctx, "persisting full text failed", slog.Int64("article_id", a.ID), slog.Any("error", err))
		mu.Lock()
		stats.Errors++
		mu.Unlock()
	}
}

// publishClusters runs the synthesize/enrich/score-for-display/publish
// pipeline over every touched cluster, bounded at clusterPipelineWorkers
// concurrent clusters.
func (s *Service) publishClusters(ctx context.Context, clusterIDs []int64, stats *Stats) {
	if len(clusterIDs) == 0 {
		return
	}

	var mu sync.Mutex
	eg := &errgroup.Group{}
	eg.SetLimit(clusterPipelineWorkers)
	for _, id := range clusterIDs {
		clusterID := id
		eg.Go(func() error {
			s.processCluster(ctx, clusterID, stats, &mu)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Service) processCluster(ctx context.Context, clusterID int64, stats *Stats, mu *sync.Mutex) {
	recordErr := func() {
		mu.Lock()
		stats.Errors++
		mu.Unlock()
	}

	c, err := s.ClusterRepo.Get(ctx, clusterID)
	if err != nil || c == nil {
		if err != nil {
			slog.ErrorContext(ctx, "loading cluster failed", slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		}
		recordErr()
		return
	}
	if c.Status == entity.ClusterClosed {
		return
	}

	members, err := s.SourceRepo.ListByCluster(ctx, clusterID)
	if err != nil || len(members) == 0 {
		if err != nil {
			slog.ErrorContext(ctx, "listing cluster members failed", slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		}
		recordErr()
		return
	}

	imageURL := s.selectImage(ctx, members)

	sources := make([]synthesize.SourceText, 0, len(members))
	for _, m := range members {
		credibility := s.Catalogue.Credibility(m.SourceName)
		sources = append(sources, synthesize.SourceTextFromArticle(m, credibility))
	}

	synthesis, err := s.Synthesizer.Synthesize(ctx, c.Title, sources)
	if err != nil {
		slog.WarnContext(ctx, "synthesis rejected, cluster stays unpublished this cycle",
			slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		recordErr()
		return
	}
	mu.Lock()
	stats.Synthesized++
	mu.Unlock()

	components := s.Enricher.Enrich(ctx, synthesis.Title, synthesis.SummaryBullets, synthesis.ContentStandard)
	anchors := s.referenceAnchors(ctx)
	result := s.Display.Evaluate(ctx, synthesis.Title, synthesis.SummaryBullets, synthesis.Category, anchors)

	// SourceCountAtPublish is recomputed from cluster.SourceCount inside
	// PublishOrRevise itself; it is not set here.
	candidate := &entity.PublishedArticle{
		ClusterID:       clusterID,
		Title:           synthesis.Title,
		SummaryBullets:  synthesis.SummaryBullets,
		ContentStandard: synthesis.ContentStandard,
		ContentB2:       synthesis.ContentB2,
		ImageURL:        imageURL,
		Timeline:        components.Timeline,
		Details:         components.Details,
		Graph:           components.Graph,
		Map:             components.Map,
		Countries:       result.Countries,
		Topics:          result.Topics,
		DisplayScore:    result.DisplayScore,
	}

	action, err := s.Publisher.PublishOrRevise(ctx, c, candidate)
	if err != nil {
		slog.ErrorContext(ctx, "publish failed", slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		recordErr()
		return
	}

	mu.Lock()
	switch action {
	case publish.ActionPublished:
		stats.Published++
	case publish.ActionRevised:
		stats.Revised++
	}
	mu.Unlock()
}

func (s *Service) selectImage(ctx context.Context, members []*entity.SourceArticle) string {
	candidates := make([]image.Candidate, 0, len(members))
	for _, m := range members {
		if m.ImageURL == "" {
			continue
		}
		candidates = append(candidates, image.Candidate{
			URL:               m.ImageURL,
			SourceName:        m.SourceName,
			SourceCredibility: s.Catalogue.Credibility(m.SourceName),
			ArticleScore:      m.Score,
			ArticleScoreMax:   s.Contract.MaxScore(),
		})
	}
	if len(candidates) == 0 {
		return ""
	}

	url, err := s.ImageSelector.Select(ctx, candidates)
	if err != nil {
		slog.WarnContext(ctx, "image selection failed", slog.Any("error", err))
		return ""
	}
	return url
}

// referenceAnchors pulls the most recently published articles as
// calibration anchors for the Display Scorer. A lookup failure yields no
// anchors rather than blocking the cluster's pipeline: the scorer already
// falls back to a safe default when it has nothing to calibrate against.
func (s *Service) referenceAnchors(ctx context.Context) []display.ReferenceAnchor {
	recent, err := s.PublishedRepo.ListRecent(ctx, recentAnchorLimit)
	if err != nil {
		slog.WarnContext(ctx, "listing recent published articles for display anchors failed", slog.Any("error", err))
		return nil
	}

	anchors := make([]display.ReferenceAnchor, 0, len(recent))
	for _, a := range recent {
		anchors = append(anchors, display.ReferenceAnchor{Title: a.Title, Score: a.DisplayScore})
	}
	return anchors
}

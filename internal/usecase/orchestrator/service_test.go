package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsloom/internal/config"
	"newsloom/internal/domain/catalogue"
	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
	"newsloom/internal/usecase/cluster"
	"newsloom/internal/usecase/dedup"
	"newsloom/internal/usecase/display"
	"newsloom/internal/usecase/enrich"
	"newsloom/internal/usecase/fetch"
	"newsloom/internal/usecase/fulltext"
	"newsloom/internal/usecase/image"
	"newsloom/internal/usecase/lifecycle"
	"newsloom/internal/usecase/orchestrator"
	"newsloom/internal/usecase/publish"
	"newsloom/internal/usecase/score"
	"newsloom/internal/usecase/synthesize"
)

// --- run lock ---

type fakeLockRepo struct {
	lock *entity.RunLock
}

func (r *fakeLockRepo) Get(ctx context.Context) (*entity.RunLock, error) { return r.lock, nil }
func (r *fakeLockRepo) Acquire(ctx context.Context) error                { return nil }
func (r *fakeLockRepo) Release(ctx context.Context) error                { return nil }

// --- clusters ---

type fakeClusterRepo struct {
	mu       sync.Mutex
	clusters map[int64]*entity.Cluster
	nextID   int64
	stale    []*entity.Cluster
}

func newFakeClusterRepo() *fakeClusterRepo {
	return &fakeClusterRepo{clusters: map[int64]*entity.Cluster{}}
}

func (r *fakeClusterRepo) Create(ctx context.Context, c *entity.Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.clusters[c.ID] = c
	return nil
}

func (r *fakeClusterRepo) ListActive(ctx context.Context) ([]*entity.Cluster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Cluster
	for _, c := range r.clusters {
		if c.Status == entity.ClusterActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeClusterRepo) Get(ctx context.Context, id int64) (*entity.Cluster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clusters[id], nil
}

func (r *fakeClusterRepo) UpdateState(ctx context.Context, c *entity.Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[c.ID] = c
	return nil
}

func (r *fakeClusterRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]repository.SimilarCluster, error) {
	return nil, nil
}

func (r *fakeClusterRepo) Close(ctx context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if c, ok := r.clusters[id]; ok {
			c.Status = entity.ClusterClosed
		}
	}
	return nil
}

func (r *fakeClusterRepo) ListStale(ctx context.Context, idleHours, maxHours int) ([]*entity.Cluster, error) {
	return r.stale, nil
}

// --- source articles ---

type fakeSourceRepo struct {
	mu       sync.Mutex
	byID     map[int64]*entity.SourceArticle
	byURL    map[string]int64
	nextID   int64
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{byID: map[int64]*entity.SourceArticle{}, byURL: map[string]int64{}}
}

func (r *fakeSourceRepo) Create(ctx context.Context, a *entity.SourceArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byURL[a.NormalizedURL]; ok {
		return repository.ErrDuplicateNormalizedURL
	}
	r.nextID++
	a.ID = r.nextID
	a.FetchedAt = time.Now()
	cp := *a
	r.byID[a.ID] = &cp
	r.byURL[a.NormalizedURL] = a.ID
	return nil
}

func (r *fakeSourceRepo) ExistsByNormalizedURL(ctx context.Context, normalizedURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byURL[normalizedURL]
	return ok, nil
}

func (r *fakeSourceRepo) ExistsByNormalizedURLBatch(ctx context.Context, urls []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		_, ok := r.byURL[u]
		out[u] = ok
	}
	return out, nil
}

func (r *fakeSourceRepo) ListPending(ctx context.Context, limit int) ([]*entity.SourceArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SourceArticle
	for _, a := range r.byID {
		if a.Status == entity.StatusPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) UpdateScore(ctx context.Context, id int64, s float64, category string, status entity.SourceArticleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errors.New("not found")
	}
	a.Score = s
	a.Category = category
	a.Status = status
	return nil
}

func (r *fakeSourceRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errors.New("not found")
	}
	a.Content = content
	return nil
}

func (r *fakeSourceRepo) AttachToCluster(ctx context.Context, id int64, clusterID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errors.New("not found")
	}
	cid := clusterID
	a.ClusterID = &cid
	a.Status = entity.StatusClustered
	return nil
}

func (r *fakeSourceRepo) ListByCluster(ctx context.Context, clusterID int64) ([]*entity.SourceArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SourceArticle
	for _, a := range r.byID {
		if a.ClusterID != nil && *a.ClusterID == clusterID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) CountByCluster(ctx context.Context, clusterID int64) (int, error) {
	members, _ := r.ListByCluster(ctx, clusterID)
	return len(members), nil
}

// --- published articles ---

type fakePublishedRepo struct {
	mu        sync.Mutex
	byCluster map[int64]*entity.PublishedArticle
	nextID    int64
}

func newFakePublishedRepo() *fakePublishedRepo {
	return &fakePublishedRepo{byCluster: map[int64]*entity.PublishedArticle{}}
}

func (r *fakePublishedRepo) GetByClusterID(ctx context.Context, clusterID int64) (*entity.PublishedArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCluster[clusterID], nil
}

func (r *fakePublishedRepo) Upsert(ctx context.Context, a *entity.PublishedArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == 0 {
		a.ID = int64(len(r.byCluster) + 1)
	}
	r.byCluster[a.ClusterID] = a
	return nil
}

func (r *fakePublishedRepo) ListRecent(ctx context.Context, limit int) ([]*entity.PublishedArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PublishedArticle
	for _, a := range r.byCluster {
		out = append(out, a)
	}
	return out, nil
}

// --- cycle records ---

type fakeCycleRepo struct {
	mu      sync.Mutex
	records []*repository.CycleRecord
}

func (r *fakeCycleRepo) Record(ctx context.Context, rec *repository.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// --- feed fetcher ---

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, sourceName, feedURL string) ([]entity.RawArticle, error) {
	if sourceName != "Reuters" {
		return nil, nil
	}
	return []entity.RawArticle{{
		SourceName:  "Reuters",
		Title:       "Major Storm Hits Coastal Region Overnight",
		Description: "A major storm made landfall overnight, causing widespread disruption.",
		Link:        "https://reuters.com/storm-hits-coast",
		ImageURL:    "https://img.reuters.com/storm.jpg",
	}}, nil
}

// --- scoring ---

type fakeScoreClient struct{}

func (fakeScoreClient) ScoreBatch(ctx context.Context, items []score.RequestItem) ([]score.ResultItem, error) {
	out := make([]score.ResultItem, len(items))
	for i, it := range items {
		out[i] = score.ResultItem{ID: it.ID, Score: 85, Category: "world"}
	}
	return out, nil
}

// --- embedding ---

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// --- image probing ---

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, url string) (image.Dimensions, error) {
	return image.Dimensions{Width: 1200, Height: 800, Format: "jpeg"}, nil
}

// --- synthesis ---

type fakeSynthClient struct{}

func words(n int) string { return strings.TrimSpace(strings.Repeat("word ", n)) }

func (fakeSynthClient) Synthesize(ctx context.Context, clusterTitle string, sources []synthesize.SourceText) (*synthesize.Synthesis, error) {
	bullet := words(18)
	return &synthesize.Synthesis{
		Title:           clusterTitle,
		SummaryBullets:  []string{bullet, bullet, bullet, bullet},
		ContentStandard: words(320),
		ContentB2:       words(320),
		Keywords:        []string{"storm", "coast"},
		Category:        "world",
	}, nil
}

// --- enrichment ---

type fakeEnrichClient struct{}

func (fakeEnrichClient) Enrich(ctx context.Context, title string, bullets []string, contentStandard string) (*enrich.Components, error) {
	return nil, errors.New("enrichment unavailable in test")
}

// --- display scoring/tagging ---

type fakeDisplayScoreClient struct{}

func (fakeDisplayScoreClient) Score(ctx context.Context, title string, bullets []string, anchors []display.ReferenceAnchor) (int, error) {
	return 600, nil
}

type fakeDisplayTagClient struct{}

func (fakeDisplayTagClient) Tag(ctx context.Context, title string, bullets []string, category string) (*display.Tags, error) {
	return &display.Tags{Countries: nil, Topics: []string{"weather"}}, nil
}

// --- full text fetch ---

type fakeFulltextFetcher struct{}

func (fakeFulltextFetcher) Fetch(ctx context.Context, url string) (*fulltext.Article, error) {
	return &fulltext.Article{Title: "ignored", Text: strings.Repeat("full text content ", 50)}, nil
}

func buildService(t *testing.T, lockRepo repository.RunLockRepository, clusterRepo *fakeClusterRepo, sourceRepo *fakeSourceRepo, publishedRepo *fakePublishedRepo, cycleRepo *fakeCycleRepo) *orchestrator.Service {
	t.Helper()

	cat, err := catalogue.Load()
	require.NoError(t, err)

	scoreCfg := config.DefaultScoreConfig()
	contract := score.NewAdmissionContract(scoreCfg)

	return &orchestrator.Service{
		Lock:            lifecycle.NewLockManager(lockRepo, config.DefaultLockConfig()),
		Sweeper:         lifecycle.NewSweeper(clusterRepo, config.DefaultClusterConfig()),
		Catalogue:       cat,
		Fetch:           fetch.NewService(fakeFetcher{}, 10),
		Dedup:           dedup.NewGate(sourceRepo),
		SourceRepo:      sourceRepo,
		ClusterRepo:     clusterRepo,
		PublishedRepo:   publishedRepo,
		CycleRepo:       cycleRepo,
		Score:           score.NewService(fakeScoreClient{}, contract, sourceRepo, scoreCfg.BatchSize),
		Contract:        contract,
		Cluster:         cluster.NewEngine(clusterRepo, fakeEmbedder{}, config.DefaultClusterConfig()),
		FulltextFetcher: fakeFulltextFetcher{},
		FulltextWorkers: 4,
		ImageSelector:   image.NewSelector(fakeProber{}),
		Synthesizer:     synthesize.NewService(fakeSynthClient{}),
		Enricher:        enrich.NewService(fakeEnrichClient{}),
		Display:         display.NewService(fakeDisplayScoreClient{}, fakeDisplayTagClient{}),
		Publisher:       publish.NewService(publishedRepo, config.DefaultPublishConfig()),
		Now:             time.Now,
	}
}

func TestRun_HappyPath_FetchesScoresClustersAndPublishes(t *testing.T) {
	sourceRepo := newFakeSourceRepo()
	clusterRepo := newFakeClusterRepo()
	publishedRepo := newFakePublishedRepo()
	cycleRepo := &fakeCycleRepo{}

	svc := buildService(t, &fakeLockRepo{lock: &entity.RunLock{IsRunning: false}}, clusterRepo, sourceRepo, publishedRepo, cycleRepo)

	result := svc.Run(context.Background())

	require.Equal(t, orchestrator.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, result.Stats.Fetched)
	assert.Equal(t, 1, result.Stats.New)
	assert.Equal(t, 1, result.Stats.Clustered)
	assert.Equal(t, 1, result.Stats.Synthesized)
	assert.Equal(t, 1, result.Stats.Published)
	assert.Equal(t, 0, result.Stats.Revised)
	assert.Len(t, cycleRepo.records, 1)
	assert.Equal(t, "success", cycleRepo.records[0].Outcome)

	published, err := publishedRepo.GetByClusterID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, "Major Storm Hits Coastal Region Overnight", published.Title)
	assert.Equal(t, "https://img.reuters.com/storm.jpg", published.ImageURL)
}

func TestRun_LockAlreadyHeld_SkipsCycle(t *testing.T) {
	sourceRepo := newFakeSourceRepo()
	clusterRepo := newFakeClusterRepo()
	publishedRepo := newFakePublishedRepo()
	cycleRepo := &fakeCycleRepo{}

	lockRepo := &fakeLockRepo{lock: &entity.RunLock{IsRunning: true, StartedAt: time.Now()}}
	svc := buildService(t, lockRepo, clusterRepo, sourceRepo, publishedRepo, cycleRepo)

	result := svc.Run(context.Background())

	assert.Equal(t, orchestrator.OutcomeSkipped, result.Outcome)
	assert.Equal(t, 0, result.Stats.Fetched)
}

type erroringLockRepo struct{}

func (erroringLockRepo) Get(ctx context.Context) (*entity.RunLock, error) {
	return nil, errors.New("connection refused")
}
func (erroringLockRepo) Acquire(ctx context.Context) error { return nil }
func (erroringLockRepo) Release(ctx context.Context) error { return nil }

func TestRun_LockLookupError_FailsCycle(t *testing.T) {
	sourceRepo := newFakeSourceRepo()
	clusterRepo := newFakeClusterRepo()
	publishedRepo := newFakePublishedRepo()
	cycleRepo := &fakeCycleRepo{}

	svc := buildService(t, erroringLockRepo{}, clusterRepo, sourceRepo, publishedRepo, cycleRepo)

	result := svc.Run(context.Background())

	assert.Equal(t, orchestrator.OutcomeFailed, result.Outcome)
	require.Len(t, cycleRepo.records, 1)
	assert.Equal(t, "failed", cycleRepo.records[0].Outcome)
	assert.NotEmpty(t, cycleRepo.records[0].FailureNote)
}

func TestRun_NoNewArticles_StillRecordsSuccessfulEmptyCycle(t *testing.T) {
	sourceRepo := newFakeSourceRepo()
	clusterRepo := newFakeClusterRepo()
	publishedRepo := newFakePublishedRepo()
	cycleRepo := &fakeCycleRepo{}

	svc := buildService(t, &fakeLockRepo{lock: &entity.RunLock{IsRunning: false}}, clusterRepo, sourceRepo, publishedRepo, cycleRepo)
	svc.Fetch = fetch.NewService(fetcherThatFindsNothing{}, 5)

	result := svc.Run(context.Background())

	assert.Equal(t, orchestrator.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, result.Stats.Fetched)
	assert.Equal(t, 0, result.Stats.New)
	assert.Equal(t, 0, result.Stats.Published)
}

type fetcherThatFindsNothing struct{}

func (fetcherThatFindsNothing) Fetch(ctx context.Context, sourceName, feedURL string) ([]entity.RawArticle, error) {
	return nil, nil
}

package score_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsloom/internal/config"
	"newsloom/internal/domain/entity"
	"newsloom/internal/usecase/score"
)

type fakeClient struct {
	results map[int64]score.ResultItem
	missing map[int64]bool
	err     error
	batches [][]score.RequestItem
}

func (f *fakeClient) ScoreBatch(ctx context.Context, items []score.RequestItem) ([]score.ResultItem, error) {
	f.batches = append(f.batches, items)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]score.ResultItem, 0, len(items))
	for _, item := range items {
		if f.missing[item.ID] {
			continue
		}
		out = append(out, f.results[item.ID])
	}
	return out, nil
}

type fakeRepo struct {
	updates map[int64]update
}

type update struct {
	score    float64
	category string
	status   entity.SourceArticleStatus
}

func newFakeRepo() *fakeRepo { return &fakeRepo{updates: map[int64]update{}} }

func (f *fakeRepo) Create(ctx context.Context, a *entity.SourceArticle) error { return nil }
func (f *fakeRepo) ExistsByNormalizedURL(ctx context.Context, u string) (bool, error) {
	return false, nil
}
func (f *fakeRepo) ExistsByNormalizedURLBatch(ctx context.Context, urls []string) (map[string]bool, error) {
	return nil, nil
}
func (f *fakeRepo) ListPending(ctx context.Context, limit int) ([]*entity.SourceArticle, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateScore(ctx context.Context, id int64, s float64, category string, status entity.SourceArticleStatus) error {
	f.updates[id] = update{score: s, category: category, status: status}
	return nil
}
func (f *fakeRepo) UpdateContent(ctx context.Context, id int64, content string) error { return nil }
func (f *fakeRepo) AttachToCluster(ctx context.Context, id int64, clusterID int64) error {
	return nil
}
func (f *fakeRepo) ListByCluster(ctx context.Context, clusterID int64) ([]*entity.SourceArticle, error) {
	return nil, nil
}
func (f *fakeRepo) CountByCluster(ctx context.Context, clusterID int64) (int, error) {
	return 0, nil
}

func candidate(id int64, hasImage bool) *entity.SourceArticle {
	img := ""
	if hasImage {
		img = "https://example.com/img.jpg"
	}
	return &entity.SourceArticle{ID: id, Title: "t", Description: "d", SourceName: "s", Category: "world", ImageURL: img}
}

func TestScore_AutoRejectsNoImage(t *testing.T) {
	client := &fakeClient{}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 30)

	stats, err := svc.Score(context.Background(), []*entity.SourceArticle{candidate(1, false)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoRejectedNoImage)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, entity.StatusRejected, repo.updates[1].status)
	assert.Empty(t, client.batches)
}

func TestScore_AdmitsAboveThreshold(t *testing.T) {
	client := &fakeClient{results: map[int64]score.ResultItem{
		1: {ID: 1, Score: 85, Category: "world"},
	}}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 30)

	stats, err := svc.Score(context.Background(), []*entity.SourceArticle{candidate(1, true)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, entity.StatusPending, repo.updates[1].status)
}

func TestScore_RejectsBelowThreshold(t *testing.T) {
	client := &fakeClient{results: map[int64]score.ResultItem{
		1: {ID: 1, Score: 40, Category: "world"},
	}}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 30)

	stats, err := svc.Score(context.Background(), []*entity.SourceArticle{candidate(1, true)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, entity.StatusRejected, repo.updates[1].status)
}

func TestScore_SplitsIntoBatches(t *testing.T) {
	client := &fakeClient{results: map[int64]score.ResultItem{}}
	for i := int64(1); i <= 5; i++ {
		client.results[i] = score.ResultItem{ID: i, Score: 90, Category: "world"}
	}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 2)

	candidates := make([]*entity.SourceArticle, 0, 5)
	for i := int64(1); i <= 5; i++ {
		candidates = append(candidates, candidate(i, true))
	}

	stats, err := svc.Score(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Admitted)
	assert.Len(t, client.batches, 3)
}

func TestScore_PersistentBatchFailureAppliesNeutralDefault(t *testing.T) {
	client := &fakeClient{err: errors.New("llm unavailable")}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 30)

	stats, err := svc.Score(context.Background(), []*entity.SourceArticle{candidate(1, true)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BatchFailures)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, entity.StatusRejected, repo.updates[1].status)
	assert.Equal(t, 0.0, repo.updates[1].score)
}

func TestScore_TruncatedResponseRejectsMissingItems(t *testing.T) {
	client := &fakeClient{
		results: map[int64]score.ResultItem{1: {ID: 1, Score: 90, Category: "world"}},
		missing: map[int64]bool{2: true},
	}
	repo := newFakeRepo()
	contract := score.NewAdmissionContract(config.ScoreConfig{Contract: config.ContractA, Threshold: 70})
	svc := score.NewService(client, contract, repo, 30)

	stats, err := svc.Score(context.Background(), []*entity.SourceArticle{candidate(1, true), candidate(2, true)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, entity.StatusRejected, repo.updates[2].status)
}

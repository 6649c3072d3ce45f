package dedup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsloom/internal/domain/entity"
	"newsloom/internal/usecase/dedup"
)

type fakeRepo struct {
	existing    map[string]bool
	err         error
	batchErr    error
	batchCalls  int
	singleCalls int
}

func (f *fakeRepo) Create(ctx context.Context, a *entity.SourceArticle) error { return nil }

func (f *fakeRepo) ExistsByNormalizedURL(ctx context.Context, normalizedURL string) (bool, error) {
	f.singleCalls++
	if f.err != nil {
		return false, f.err
	}
	return f.existing[normalizedURL], nil
}

func (f *fakeRepo) ExistsByNormalizedURLBatch(ctx context.Context, urls []string) (map[string]bool, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		out[u] = f.existing[u]
	}
	return out, nil
}

func (f *fakeRepo) ListPending(ctx context.Context, limit int) ([]*entity.SourceArticle, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateScore(ctx context.Context, id int64, score float64, category string, status entity.SourceArticleStatus) error {
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

func TestNormalize_LowercasesHostAndStripsWWW(t *testing.T) {
	got := dedup.Normalize("HTTPS://WWW.Example.COM/Article")
	assert.Equal(t, "https://example.com/Article", got)
}

func TestNormalize_StripsTrackingParamsAndFragment(t *testing.T) {
	got := dedup.Normalize("https://example.com/a?utm_source=x&utm_medium=y&id=5#section")
	assert.Equal(t, "https://example.com/a?id=5", got)
}

func TestNormalize_SortsRemainingQueryKeys(t *testing.T) {
	got := dedup.Normalize("https://example.com/a?z=1&a=2&fbclid=abc")
	assert.Equal(t, "https://example.com/a?a=2&z=1", got)
}

func TestNormalize_MalformedURLReturnedTrimmed(t *testing.T) {
	got := dedup.Normalize("  not a url  ")
	assert.Equal(t, "not a url", got)
}

func TestGate_IsNew_TrueWhenNotSeen(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{}}
	gate := dedup.NewGate(repo)

	isNew, err := gate.IsNew(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestGate_IsNew_FalseWhenSeen(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{"https://example.com/a": true}}
	gate := dedup.NewGate(repo)

	isNew, err := gate.IsNew(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestGate_IsNew_FailsOpenOnLookupError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection reset")}
	gate := dedup.NewGate(repo)

	isNew, err := gate.IsNew(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestGate_IsNewBatch_MixedResults(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{"https://example.com/seen": true}}
	gate := dedup.NewGate(repo)

	result, err := gate.IsNewBatch(context.Background(), []string{
		"https://example.com/seen",
		"https://example.com/new",
	})
	require.NoError(t, err)
	assert.False(t, result["https://example.com/seen"])
	assert.True(t, result["https://example.com/new"])
}

func TestGate_IsNewBatch_EmptyInput(t *testing.T) {
	repo := &fakeRepo{}
	gate := dedup.NewGate(repo)

	result, err := gate.IsNewBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, 0, repo.batchCalls)
}

func TestGate_IsNewBatch_FailsOpenOnLookupError(t *testing.T) {
	repo := &fakeRepo{batchErr: errors.New("timeout")}
	gate := dedup.NewGate(repo)

	result, err := gate.IsNewBatch(context.Background(), []string{"https://example.com/a", "https://example.com/b"})
	require.NoError(t, err)
	assert.True(t, result["https://example.com/a"])
	assert.True(t, result["https://example.com/b"])
}

package synthesize_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsloom/internal/usecase/synthesize"
)

func wordsOf(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func validSynthesis() *synthesize.Synthesis {
	return &synthesize.Synthesis{
		Title:           "ECB raises rates to 4.5%",
		SummaryBullets:  []string{wordsOf(18), wordsOf(18), wordsOf(18), wordsOf(18)},
		ContentStandard: wordsOf(350),
		ContentB2:       wordsOf(350),
		Keywords:        []string{"ecb", "rates"},
		Category:        "economy",
	}
}

type fakeClient struct {
	results []*synthesize.Synthesis
	errs    []error
	calls   int
}

func (f *fakeClient) Synthesize(ctx context.Context, title string, sources []synthesize.SourceText) (*synthesize.Synthesis, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return f.results[len(f.results)-1], nil
}

func TestSynthesize_SucceedsOnFirstAttempt(t *testing.T) {
	client := &fakeClient{results: []*synthesize.Synthesis{validSynthesis()}}
	svc := synthesize.NewService(client)

	result, err := svc.Synthesize(context.Background(), "ECB decision", []synthesize.SourceText{
		{SourceName: "reuters", Text: "body", PublishedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, "ECB raises rates to 4.5%", result.Title)
	assert.Equal(t, 1, client.calls)
}

func TestSynthesize_RetriesOnBadWordCountThenSucceeds(t *testing.T) {
	bad := validSynthesis()
	bad.ContentStandard = wordsOf(50)

	client := &fakeClient{results: []*synthesize.Synthesis{bad, validSynthesis()}}
	svc := synthesize.NewService(client)

	result, err := svc.Synthesize(context.Background(), "ECB decision", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 2, client.calls)
}

func TestSynthesize_RejectsAfterExhaustingRetries(t *testing.T) {
	bad := validSynthesis()
	bad.ContentStandard = wordsOf(10)

	client := &fakeClient{results: []*synthesize.Synthesis{bad, bad, bad}}
	svc := synthesize.NewService(client)

	_, err := svc.Synthesize(context.Background(), "ECB decision", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, synthesize.ErrRejected)
	assert.Equal(t, 3, client.calls)
}

func TestSynthesize_RejectsRoundupPhrasing(t *testing.T) {
	bad := validSynthesis()
	bad.ContentStandard = "Reports say the rate rose. " + wordsOf(345)

	client := &fakeClient{results: []*synthesize.Synthesis{bad, bad, bad}}
	svc := synthesize.NewService(client)

	_, err := svc.Synthesize(context.Background(), "ECB decision", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, synthesize.ErrRejected)
}

func TestSynthesize_RejectsWrongBulletCount(t *testing.T) {
	bad := validSynthesis()
	bad.SummaryBullets = []string{wordsOf(18)}

	client := &fakeClient{results: []*synthesize.Synthesis{bad, bad, bad}}
	svc := synthesize.NewService(client)

	_, err := svc.Synthesize(context.Background(), "ECB decision", nil)
	require.Error(t, err)
}

func TestSynthesize_PropagatesClientErrorAfterRetries(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	svc := synthesize.NewService(client)

	_, err := svc.Synthesize(context.Background(), "ECB decision", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, synthesize.ErrRejected)
	assert.Equal(t, 3, client.calls)
}

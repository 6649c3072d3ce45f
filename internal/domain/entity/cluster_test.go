package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCluster_ShouldClose(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		cluster   Cluster
		wantClose bool
	}{
		{
			name: "fresh cluster stays open",
			cluster: Cluster{
				Status:        ClusterActive,
				FirstSeenAt:   now.Add(-1 * time.Hour),
				LastUpdatedAt: now.Add(-5 * time.Minute),
			},
			wantClose: false,
		},
		{
			name: "idle past 24h closes",
			cluster: Cluster{
				Status:        ClusterActive,
				FirstSeenAt:   now.Add(-25 * time.Hour),
				LastUpdatedAt: now.Add(-25 * time.Hour),
			},
			wantClose: true,
		},
		{
			name: "total age past 48h closes even if recently updated",
			cluster: Cluster{
				Status:        ClusterActive,
				FirstSeenAt:   now.Add(-49 * time.Hour),
				LastUpdatedAt: now.Add(-1 * time.Minute),
			},
			wantClose: true,
		},
		{
			name: "already closed stays closed",
			cluster: Cluster{
				Status:        ClusterClosed,
				FirstSeenAt:   now.Add(-49 * time.Hour),
				LastUpdatedAt: now.Add(-49 * time.Hour),
			},
			wantClose: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cluster.ShouldClose(now, 24*time.Hour, 48*time.Hour)
			assert.Equal(t, tt.wantClose, got)
		})
	}
}

func TestUpdateCentroid(t *testing.T) {
	prev := []float32{1, 1}
	got := UpdateCentroid(prev, 1, []float32{3, 3})
	assert.Equal(t, []float32{2, 2}, got)

	first := UpdateCentroid(nil, 0, []float32{5, 5})
	assert.Equal(t, []float32{5, 5}, first)
}

func TestMergeKeywords(t *testing.T) {
	existing := []string{"rates", "ecb"}
	fresh := []string{"ecb", "inflation"}
	got := MergeKeywords(existing, fresh, 10)
	assert.Equal(t, []string{"rates", "ecb", "inflation"}, got)
}

func TestMergeKeywords_Bounded(t *testing.T) {
	existing := []string{"a", "b", "c"}
	fresh := []string{"d", "e"}
	got := MergeKeywords(existing, fresh, 3)
	assert.Len(t, got, 3)
}

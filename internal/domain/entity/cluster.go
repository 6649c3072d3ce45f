package entity

import "time"

// ClusterStatus is the lifecycle state of a Cluster.
type ClusterStatus string

const (
	ClusterActive ClusterStatus = "active"
	ClusterClosed ClusterStatus = "closed"
)

// Cluster groups SourceArticles judged to describe the same real-world
// event (C5). CentroidEmbedding is the running mean of member embeddings.
type Cluster struct {
	ID                int64
	Title             string
	Keywords          []string
	CentroidEmbedding []float32
	Status            ClusterStatus
	SourceCount       int
	Category          string
	FirstSeenAt       time.Time
	LastUpdatedAt     time.Time
}

// IdleFor reports how long the cluster has gone without a new member.
func (c *Cluster) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastUpdatedAt)
}

// AgeSince reports the cluster's total lifetime.
func (c *Cluster) AgeSince(now time.Time) time.Duration {
	return now.Sub(c.FirstSeenAt)
}

// ShouldClose applies the 24h-idle / 48h-total rule (C5/C12 invariant).
func (c *Cluster) ShouldClose(now time.Time, idleLimit, maxLimit time.Duration) bool {
	if c.Status == ClusterClosed {
		return false
	}
	return c.IdleFor(now) > idleLimit || c.AgeSince(now) > maxLimit
}

// UpdateCentroid folds a newly attached member's embedding into the running
// mean: c' = ((n*c) + e(a)) / (n+1), where n is the source count prior to
// attachment.
func UpdateCentroid(prev []float32, n int, member []float32) []float32 {
	if n == 0 || len(prev) == 0 {
		out := make([]float32, len(member))
		copy(out, member)
		return out
	}
	out := make([]float32, len(prev))
	nf := float32(n)
	for i := range prev {
		var m float32
		if i < len(member) {
			m = member[i]
		}
		out[i] = (nf*prev[i] + m) / (nf + 1)
	}
	return out
}

// MergeKeywords folds new keywords into the cluster's keyword set, keeping
// the union bounded to avoid unbounded growth over a cluster's lifetime.
func MergeKeywords(existing []string, fresh []string, max int) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(fresh))
	for _, k := range existing {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range fresh {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

package entity

import "time"

// SourceArticleStatus is the lifecycle state of a persisted SourceArticle.
type SourceArticleStatus string

const (
	StatusPending   SourceArticleStatus = "pending"
	StatusClustered SourceArticleStatus = "clustered"
	StatusRejected  SourceArticleStatus = "rejected"
)

// SourceArticle is the persisted row derived from a RawArticle once it has
// been normalized (C3). It accumulates score (C4), content (C6) and
// cluster membership (C5) as it moves through the pipeline.
type SourceArticle struct {
	ID             int64
	NormalizedURL  string // unique
	OriginalURL    string
	SourceName     string
	Title          string
	Description    string
	Content        string // full text, optional until C6 runs
	ImageURL       string
	PublishedAt    *time.Time
	FetchedAt      time.Time
	Score          float64
	Category       string
	ClusterID      *int64
	Status         SourceArticleStatus
}

// Validate enforces the SourceArticle invariants from the data model: once
// clustered, ClusterID must be set, and the converse must not happen.
func (a *SourceArticle) Validate() error {
	if a.NormalizedURL == "" {
		return &ValidationError{Field: "normalized_url", Message: "must not be empty"}
	}
	if a.Status == StatusClustered && a.ClusterID == nil {
		return &ValidationError{Field: "cluster_id", Message: "must be set when status=clustered"}
	}
	if a.Status != StatusClustered && a.ClusterID != nil {
		return &ValidationError{Field: "status", Message: "must be clustered when cluster_id is set"}
	}
	return nil
}

// MarkClustered transitions the article into the clustered state. It is an
// error to call this more than once: cluster_id is immutable once set.
func (a *SourceArticle) MarkClustered(clusterID int64) error {
	if a.ClusterID != nil {
		return &ValidationError{Field: "cluster_id", Message: "already clustered, immutable"}
	}
	a.ClusterID = &clusterID
	a.Status = StatusClustered
	return nil
}

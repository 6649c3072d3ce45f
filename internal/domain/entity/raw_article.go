package entity

import "time"

// RawArticle is the output of the Feed Fetcher (C2), before normalization or
// persistence. It is never mutated after creation; downstream stages derive
// a SourceArticle from it.
type RawArticle struct {
	SourceName  string
	Title       string
	Description string
	Link        string
	GUID        string // optional
	ImageURL    string // optional
	PublishedAt *time.Time
	Author      string // optional
}

// IdentityKey returns the key used to decide uniqueness before a
// NormalizedURL is computed: the dedup gate normalizes Link first and only
// falls back to this hash-style key when Link is empty or unusable.
func (r *RawArticle) IdentityKey() string {
	if r.Link != "" {
		return r.Link
	}
	return r.Link + "|" + r.Title
}

// Package image implements the Image Selector use case (C7): choosing the
// single best image across a cluster's member articles.
package image

import (
	"context"
	"sort"
	"strings"
)

// Candidate is one member article's image, along with the context needed
// to score it.
type Candidate struct {
	URL               string
	SourceName        string
	SourceCredibility int // 1-10, from the source catalogue
	ArticleScore      float64
	ArticleScoreMax   float64 // the admission contract's scale (100 or 1000)
}

// Dimensions describes a probed image's physical shape and format.
type Dimensions struct {
	Width, Height int
	Format        string // "jpeg", "png", "gif", "webp", ...
}

// Prober fetches an image's dimensions and format without downloading the
// whole file where avoidable. Implementations live in
// internal/infra/adapter/image.
type Prober interface {
	Probe(ctx context.Context, url string) (Dimensions, error)
}

// blockedDomainPrefixes is the fixed tracking/ad domain blocklist from
// spec.md §4.7.
var blockedDomainPrefixes = []string{
	"ad.", "ads.", "adserver.", "doubleclick.net", "googlesyndication.com",
	"googleadservices.com", "analytics.", "tracker.", "tracking.",
	"pixel.", "beacon.",
}

var blockedFormats = map[string]bool{"gif": true, "svg": true, "ico": true, "bmp": true}

const (
	minWidth      = 400
	minHeight     = 300
	minAspect     = 1.0 / 3.0
	maxAspect     = 3.0
	targetAspect  = 16.0 / 9.0
)

// Selector picks one image per cluster per spec.md §4.7's contract.
type Selector struct {
	Prober Prober
}

// NewSelector builds a Selector.
func NewSelector(prober Prober) *Selector {
	return &Selector{Prober: prober}
}

type scored struct {
	candidate Candidate
	score     float64
}

// Select returns the chosen candidate's URL, or "" if every candidate was
// filtered out or had no image.
func (s *Selector) Select(ctx context.Context, candidates []Candidate) (string, error) {
	var scoredCandidates []scored

	for _, c := range candidates {
		if c.URL == "" || isBlockedDomain(c.URL) {
			continue
		}

		dims, err := s.Prober.Probe(ctx, c.URL)
		if err != nil {
			continue
		}
		if blockedFormats[dims.Format] {
			continue
		}
		if dims.Width < minWidth || dims.Height < minHeight {
			continue
		}
		aspect := float64(dims.Width) / float64(dims.Height)
		if aspect < minAspect || aspect > maxAspect {
			continue
		}

		scoredCandidates = append(scoredCandidates, scored{candidate: c, score: score(c, dims)})
	}

	if len(scoredCandidates) == 0 {
		return "", nil
	}

	sort.SliceStable(scoredCandidates, func(i, j int) bool {
		if scoredCandidates[i].score != scoredCandidates[j].score {
			return scoredCandidates[i].score > scoredCandidates[j].score
		}
		return scoredCandidates[i].candidate.SourceName < scoredCandidates[j].candidate.SourceName
	})

	return scoredCandidates[0].candidate.URL, nil
}

// score implements spec.md §4.7's 0-100 scoring formula.
func score(c Candidate, d Dimensions) float64 {
	var total float64

	switch {
	case c.SourceCredibility >= 9:
		total += 30 // premium
	case c.SourceCredibility >= 7:
		total += 15 // major
	}

	if c.ArticleScoreMax > 0 {
		total += 20 * (c.ArticleScore / c.ArticleScoreMax)
	}

	total += widthTier(d.Width)

	aspect := float64(d.Width) / float64(d.Height)
	closeness := 1 - (absFloat(aspect-targetAspect) / targetAspect)
	if closeness < 0 {
		closeness = 0
	}
	total += 20 * closeness

	switch strings.ToLower(d.Format) {
	case "webp", "jpeg", "jpg":
		total += 5
	case "png":
		total += 3
	}

	return total
}

func widthTier(width int) float64 {
	switch {
	case width >= 1200:
		return 30
	case width >= 800:
		return 20
	case width >= 600:
		return 10
	default:
		return 0
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func isBlockedDomain(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, prefix := range blockedDomainPrefixes {
		if strings.Contains(lower, "//"+prefix) || strings.Contains(lower, "."+prefix) {
			return true
		}
	}
	return false
}

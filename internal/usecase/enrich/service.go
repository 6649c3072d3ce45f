// Package enrich implements the Component Enricher use case (C9):
// needs-based selection of the timeline, details, graph and map components
// that accompany a synthesized article.
package enrich

import (
	"context"
	"log/slog"
	"strings"

	"newsloom/internal/domain/entity"
)

// Components is the raw, not-yet-validated output of the enrichment LLM
// call. Any field left nil/empty means that component was not produced.
type Components struct {
	Timeline []entity.TimelineEvent
	Details  []entity.DetailEntry
	Graph    *entity.Graph
	Map      *entity.MapAnchor
}

// Client is the LLM boundary for enrichment, implemented in
// internal/infra/adapter/llm. Grounding is delegated to an
// external search-capable model per spec.md §4.9.
type Client interface {
	Enrich(ctx context.Context, title string, bullets []string, contentStandard string) (*Components, error)
}

// Service validates shape and drops any component that fails validation
// rather than publishing weak data, per spec.md §4.9's closing rule.
type Service struct {
	Client Client
}

// NewService builds a Service.
func NewService(client Client) *Service {
	return &Service{Client: client}
}

// Enrich returns the subset of components that pass validation. A Client
// error yields an empty Components rather than failing the cycle: a
// published article with no enrichment components is still valid.
func (s *Service) Enrich(ctx context.Context, title string, bullets []string, contentStandard string) Components {
	raw, err := s.Client.Enrich(ctx, title, bullets, contentStandard)
	if err != nil {
		slog.WarnContext(ctx, "enrichment call failed, publishing without components",
			slog.String("error", err.Error()))
		return Components{}
	}
	if raw == nil {
		return Components{}
	}

	var out Components

	if len(raw.Timeline) > 0 {
		if err := entity.ValidateTimeline(raw.Timeline); err != nil {
			slog.WarnContext(ctx, "dropping timeline component", slog.String("error", err.Error()))
		} else if repeatsHeadline(raw.Timeline, title) {
			slog.WarnContext(ctx, "dropping timeline component: repeats headline event")
		} else {
			out.Timeline = raw.Timeline
		}
	}

	if len(raw.Details) > 0 {
		if err := entity.ValidateDetails(raw.Details); err != nil {
			slog.WarnContext(ctx, "dropping details component", slog.String("error", err.Error()))
		} else if detailsRepeatKnownFacts(raw.Details, title, bullets) {
			slog.WarnContext(ctx, "dropping details component: values already present in title or bullets")
		} else {
			out.Details = raw.Details
		}
	}

	if raw.Graph != nil {
		if err := entity.ValidateGraph(raw.Graph); err != nil {
			slog.WarnContext(ctx, "dropping graph component", slog.String("error", err.Error()))
		} else {
			out.Graph = raw.Graph
		}
	}

	if raw.Map != nil {
		if err := validateMap(raw.Map); err != nil {
			slog.WarnContext(ctx, "dropping map component", slog.String("error", err.Error()))
		} else {
			out.Map = raw.Map
		}
	}

	return out
}

// validateMap enforces the data the map component needs to be useful: a
// name and non-zero coordinates. Spec.md §4.9 excludes generic city/country
// mentions and famous government buildings, which the prompt itself steers
// away from; this is the structural half of that rule.
func validateMap(m *entity.MapAnchor) error {
	if m.Name == "" {
		return &entity.ValidationError{Field: "map", Message: "must have a name"}
	}
	if m.Latitude == 0 && m.Longitude == 0 {
		return &entity.ValidationError{Field: "map", Message: "must have coordinates"}
	}
	return nil
}

func repeatsHeadline(events []entity.TimelineEvent, title string) bool {
	for _, e := range events {
		if containsFold(title, e.Text) || containsFold(e.Text, title) {
			return true
		}
	}
	return false
}

func detailsRepeatKnownFacts(details []entity.DetailEntry, title string, bullets []string) bool {
	for _, d := range details {
		if containsFold(title, d.Value) {
			return true
		}
		for _, b := range bullets {
			if containsFold(b, d.Value) {
				return true
			}
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

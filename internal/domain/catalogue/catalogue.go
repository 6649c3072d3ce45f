// Package catalogue provides the Source Catalogue (C1): a static list of
// feed descriptors loaded once at process start. The set is embedded data,
// not Go literals, following the teacher's embedded-SQL-seed idiom
// (internal/infra/db seeds) adapted to YAML via gopkg.in/yaml.v3.
package catalogue

import (
	_ "embed"
	"fmt"

	"newsloom/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var embeddedSources []byte

// sourcesFile mirrors the YAML document shape.
type sourcesFile struct {
	Sources []struct {
		Name        string `yaml:"name"`
		FeedURL     string `yaml:"feed_url"`
		Category    string `yaml:"category"`
		Credibility int    `yaml:"credibility"`
	} `yaml:"sources"`
}

// Catalogue is the static, immutable list of feed sources.
type Catalogue struct {
	sources     []entity.Source
	credibility map[string]int
}

// Load parses the embedded sources.yaml into a Catalogue. It is called once
// at process start; the result is held by the orchestrator and Feed Fetcher
// for the process lifetime.
func Load() (*Catalogue, error) {
	return parse(embeddedSources)
}

func parse(raw []byte) (*Catalogue, error) {
	var doc sourcesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse source catalogue: %w", err)
	}

	c := &Catalogue{
		sources:     make([]entity.Source, 0, len(doc.Sources)),
		credibility: make(map[string]int, len(doc.Sources)),
	}
	for _, s := range doc.Sources {
		src := entity.Source{
			Name:        s.Name,
			FeedURL:     s.FeedURL,
			Category:    s.Category,
			Credibility: s.Credibility,
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		c.sources = append(c.sources, src)
		c.credibility[s.Name] = s.Credibility
	}
	return c, nil
}

// ListSources returns the fixed set of catalogue sources.
func (c *Catalogue) ListSources() []entity.Source {
	out := make([]entity.Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// Credibility returns the 1-10 editorial weight for a source name, defaulting
// to entity.DefaultCredibility for names not in the catalogue.
func (c *Catalogue) Credibility(name string) int {
	if v, ok := c.credibility[name]; ok {
		return v
	}
	return entity.DefaultCredibility
}

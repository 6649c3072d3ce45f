package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"newsloom/internal/usecase/display"
)

func TestBuildDisplayScorePrompt_IncludesAnchorsAndTiers(t *testing.T) {
	prompt := buildDisplayScorePrompt("ECB raises rates", []string{"bullet one"}, []display.ReferenceAnchor{
		{Title: "Old story", Score: 820},
	})
	assert.Contains(t, prompt, "ECB raises rates")
	assert.Contains(t, prompt, "Old story")
	assert.Contains(t, prompt, "must-know globally")
}

func TestBuildTagPrompt_IncludesCategoryAndSchema(t *testing.T) {
	prompt := buildTagPrompt("ECB raises rates", []string{"bullet one"}, "economy")
	assert.Contains(t, prompt, "economy")
	assert.Contains(t, prompt, "countries")
	assert.Contains(t, prompt, "topics")
}

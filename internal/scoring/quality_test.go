package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityEvaluator_Evaluate(t *testing.T) {
	evaluator := NewQualityEvaluator()

	t.Run("long clear response scores 1.0", func(t *testing.T) {
		response := strings.TrimSpace(strings.Repeat("word ", 60))
		metrics := evaluator.Evaluate("Explain something", response)

		assert.Equal(t, 60, metrics.WordCount)
		assert.Equal(t, 1.0, metrics.Quality)
	})

	t.Run("short response penalized by completeness", func(t *testing.T) {
		metrics := evaluator.Evaluate("Explain something", "Ten words only here")

		// relevance 1.0, completeness 4/50, clarity 1.0
		want := (1.0 + 4.0/50.0 + 1.0) / 3
		assert.InDelta(t, want, metrics.Quality, 1e-9)
	})

	t.Run("hedging phrases penalize clarity", func(t *testing.T) {
		response := strings.TrimSpace(strings.Repeat("word ", 50)) + " but this is unclear and also unclear"
		metrics := evaluator.Evaluate("Explain something", response)

		// completeness saturated, clarity 1.0 - 2*0.2
		want := (1.0 + 1.0 + 0.6) / 3
		assert.InDelta(t, want, metrics.Quality, 1e-9)
	})

	t.Run("counts i dont know phrase", func(t *testing.T) {
		response := strings.TrimSpace(strings.Repeat("word ", 50)) + " I don't know"
		metrics := evaluator.Evaluate("Explain something", response)

		want := (1.0 + 1.0 + 0.8) / 3
		assert.InDelta(t, want, metrics.Quality, 1e-9)
	})

	t.Run("clamped at zero with heavy hedging", func(t *testing.T) {
		response := strings.TrimSpace(strings.Repeat("unclear ", 20))
		metrics := evaluator.Evaluate("Explain something", response)

		assert.GreaterOrEqual(t, metrics.Quality, 0.0)
		assert.LessOrEqual(t, metrics.Quality, 1.0)
	})

	t.Run("empty response", func(t *testing.T) {
		metrics := evaluator.Evaluate("Explain something", "")

		assert.Equal(t, 0, metrics.Length)
		assert.Equal(t, 0, metrics.WordCount)
		// relevance 1.0, completeness 0, clarity 1.0
		assert.InDelta(t, 2.0/3.0, metrics.Quality, 1e-9)
	})

	t.Run("length reports bytes", func(t *testing.T) {
		metrics := evaluator.Evaluate("p", "four byte")
		assert.Equal(t, 9, metrics.Length)
		assert.Equal(t, 2, metrics.WordCount)
	})

	t.Run("deterministic", func(t *testing.T) {
		first := evaluator.Evaluate("p", "some response text here")
		second := evaluator.Evaluate("p", "some response text here")
		assert.Equal(t, first, second)
	})
}

func TestQualityEvaluator_WithCompletenessWords(t *testing.T) {
	evaluator := NewQualityEvaluator().WithCompletenessWords(10)

	metrics := evaluator.Evaluate("p", strings.TrimSpace(strings.Repeat("word ", 10)))

	// completeness saturates at the configured 10 words
	assert.Equal(t, 1.0, metrics.Quality)
}

func TestQualityEvaluator_WithHedgingPhrases(t *testing.T) {
	evaluator := NewQualityEvaluator().WithHedgingPhrases([]string{"maybe"})

	long := strings.TrimSpace(strings.Repeat("word ", 50))
	withDefault := evaluator.Evaluate("p", long+" unclear")
	withCustom := evaluator.Evaluate("p", long+" maybe")

	assert.Equal(t, 1.0, withDefault.Quality, "default phrase no longer counted")
	assert.InDelta(t, (1.0+1.0+0.8)/3, withCustom.Quality, 1e-9)
}

package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioStrategy_Score(t *testing.T) {
	strategy := NewRatioStrategy()

	t.Run("identical strings score 1.0", func(t *testing.T) {
		assert.Equal(t, 1.0, strategy.Score("hello world", "hello world"))
	})

	t.Run("longer candidate scores above 1.0", func(t *testing.T) {
		original := "AI is a technology."
		candidate := "AI is a broad field of computer science focused on learning."
		score := strategy.Score(original, candidate)
		assert.Greater(t, score, 1.0)
	})

	t.Run("example ratio 57 over 19", func(t *testing.T) {
		original := "AI is a technology."
		assert.Len(t, original, 19)
		candidate := strings.Repeat("x", 57)
		assert.Equal(t, 3.0, strategy.Score(original, candidate))
	})

	t.Run("empty original scores 0.0", func(t *testing.T) {
		assert.Equal(t, 0.0, strategy.Score("", "anything"))
	})

	t.Run("empty candidate scores 0.0", func(t *testing.T) {
		assert.Equal(t, 0.0, strategy.Score("something", ""))
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		a, b := "first response text", "second response with more text"
		first := strategy.Score(a, b)
		second := strategy.Score(a, b)
		assert.Equal(t, first, second)
	})

	t.Run("never negative", func(t *testing.T) {
		assert.GreaterOrEqual(t, strategy.Score("abc", ""), 0.0)
		assert.GreaterOrEqual(t, strategy.Score("", ""), 0.0)
	})
}

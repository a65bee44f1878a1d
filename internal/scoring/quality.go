package scoring

import (
	"math"
	"strings"
)

// DefaultCompletenessWords is the word count at which the completeness
// term saturates at 1.0.
const DefaultCompletenessWords = 50

// defaultHedgingPhrases are counted against the clarity term. Matched as
// exact substrings of the response.
var defaultHedgingPhrases = []string{"unclear", "I don't know"}

// Metrics holds the auxiliary quality measurements for one response.
type Metrics struct {
	Length    int     `json:"length"`
	WordCount int     `json:"word_count"`
	Quality   float64 `json:"quality"`
}

// QualityEvaluator computes heuristic quality metrics for a prompt and
// response pair. Construct with NewQualityEvaluator.
type QualityEvaluator struct {
	completenessWords int
	hedgingPhrases    []string
	hedgingPenalty    float64
}

func NewQualityEvaluator() *QualityEvaluator {
	return &QualityEvaluator{
		completenessWords: DefaultCompletenessWords,
		hedgingPhrases:    defaultHedgingPhrases,
		hedgingPenalty:    0.2,
	}
}

// WithCompletenessWords overrides the completeness saturation threshold.
func (e *QualityEvaluator) WithCompletenessWords(words int) *QualityEvaluator {
	if words > 0 {
		e.completenessWords = words
	}
	return e
}

// WithHedgingPhrases overrides the phrases counted against clarity.
func (e *QualityEvaluator) WithHedgingPhrases(phrases []string) *QualityEvaluator {
	if len(phrases) > 0 {
		e.hedgingPhrases = phrases
	}
	return e
}

// Evaluate computes the length, word count and heuristic quality of one
// response. Quality averages three terms in [0,1]: a constant relevance
// of 1.0, completeness that saturates once the response reaches the word
// threshold, and clarity penalized per hedging phrase occurrence. The
// average is clamped to [0,1].
func (e *QualityEvaluator) Evaluate(prompt, response string) Metrics {
	words := len(strings.Fields(response))

	relevance := 1.0
	completeness := math.Min(1.0, float64(words)/float64(e.completenessWords))
	clarity := 1.0
	for _, phrase := range e.hedgingPhrases {
		clarity -= e.hedgingPenalty * float64(strings.Count(response, phrase))
	}

	quality := (relevance + completeness + clarity) / 3
	quality = math.Max(0.0, math.Min(1.0, quality))

	return Metrics{
		Length:    len(response),
		WordCount: words,
		Quality:   quality,
	}
}

// Package scoring provides the improvement score used by the refinement
// loop and the heuristic quality metrics used by benchmark runs.
//
// Everything in this package is pure: no I/O, no shared state, and
// deterministic given the same inputs. The default strategy is an
// intentionally crude length proxy; substitute another Strategy where a
// semantic measure is available.
package scoring

// Strategy computes a scalar improvement score from an original response
// and a candidate response. Implementations must be deterministic and
// return a non-negative value.
type Strategy interface {
	Score(original, candidate string) float64
}

// RatioStrategy scores a candidate by the byte-length ratio
// len(candidate)/len(original). An empty original scores 0.0, and
// comparing a string against itself scores 1.0.
type RatioStrategy struct{}

func NewRatioStrategy() RatioStrategy {
	return RatioStrategy{}
}

func (RatioStrategy) Score(original, candidate string) float64 {
	if len(original) == 0 {
		return 0.0
	}
	return float64(len(candidate)) / float64(len(original))
}

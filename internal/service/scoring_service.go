package service

import (
	"math"

	"github.com/nvkhoa/eduassess/internal/evaluator"
)

// ScoringService combines per-question evaluation results into attempt and
// submission scores. All percentages are rounded to two decimal places.
type ScoringService interface {
	// Aggregate returns the percentage score of a set of question results:
	// sum(earned) / sum(possible) * 100. No gradable points yields 0.
	Aggregate(results []evaluator.Result) float64
	// Scale maps raw earned/possible points onto a 0..maxScore scale.
	Scale(earned, possible, maxScore float64) float64
	// Passed reports whether score meets the passing threshold.
	Passed(score, passingScore float64) bool
	// ApplyLatePenalty deducts penaltyPercent of the score, floored at zero.
	ApplyLatePenalty(score, penaltyPercent float64) float64
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

func (s *scoringService) Aggregate(results []evaluator.Result) float64 {
	earned, possible := 0.0, 0.0
	for _, r := range results {
		earned += r.PointsEarned
		possible += r.PointsPossible
	}
	if possible <= 0 {
		return 0
	}
	return round2(earned / possible * 100)
}

func (s *scoringService) Scale(earned, possible, maxScore float64) float64 {
	if possible <= 0 {
		return 0
	}
	scaled := earned / possible * maxScore
	if scaled < 0 {
		scaled = 0
	}
	if scaled > maxScore {
		scaled = maxScore
	}
	return round2(scaled)
}

func (s *scoringService) Passed(score, passingScore float64) bool {
	return score >= passingScore
}

func (s *scoringService) ApplyLatePenalty(score, penaltyPercent float64) float64 {
	final := score - score*penaltyPercent/100
	if final < 0 {
		final = 0
	}
	return round2(final)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

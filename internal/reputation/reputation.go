// Package reputation implements the pure scoring function of spec §4.4.
// It is deliberately plain arithmetic on the standard library: there is no
// ecosystem "reputation scoring" library anywhere in the retrieved pack,
// and the function is a closed-form formula over already-persisted
// counters, so reaching for a dependency here would add one without a
// concern for it to serve (see DESIGN.md).
package reputation

import (
	"math"

	"github.com/oxzoid/hookmarket/internal/domain"
)

// Score computes the tie-breaking reputation score for s, rounded to one
// decimal place, per spec §4.4.
func Score(s domain.SolverStats) float64 {
	deliveries := s.DeliveriesSucceeded + s.DeliveriesFailed
	if deliveries == 0 {
		base := 0.0
		return clampRound(base - 5*float64(s.ChallengesAgainst))
	}

	passRate := float64(s.DeliveriesSucceeded) / float64(deliveries)
	onTimeRate := float64(s.OnTimeDeliveries) / float64(deliveries)
	avgEta := float64(s.TotalEtaMinutes) / float64(deliveries)
	avgActual := float64(s.TotalActualMinutes) / float64(deliveries)

	quoteAcc := 0.0
	if avgEta != 0 {
		quoteAcc = 1 - math.Abs(avgActual-avgEta)/avgEta
		if quoteAcc < 0 {
			quoteAcc = 0
		}
	}

	base := 100 * (0.4*passRate + 0.3*onTimeRate + 0.3*quoteAcc)
	return clampRound(base - 5*float64(s.ChallengesAgainst))
}

func clampRound(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}

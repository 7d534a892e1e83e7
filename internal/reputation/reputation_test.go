package reputation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxzoid/hookmarket/internal/domain"
)

func TestScoreNoDeliveriesYet(t *testing.T) {
	require.Equal(t, 0.0, Score(domain.SolverStats{}))
}

func TestScoreNoDeliveriesButChallenged(t *testing.T) {
	require.Equal(t, 0.0, Score(domain.SolverStats{ChallengesAgainst: 3}))
}

func TestScorePerfectRecord(t *testing.T) {
	s := domain.SolverStats{
		DeliveriesSucceeded: 10,
		OnTimeDeliveries:    10,
		TotalEtaMinutes:     600,
		TotalActualMinutes:  600,
	}
	require.Equal(t, 100.0, Score(s))
}

func TestScorePenalizesChallenges(t *testing.T) {
	base := domain.SolverStats{
		DeliveriesSucceeded: 10,
		OnTimeDeliveries:    10,
		TotalEtaMinutes:     600,
		TotalActualMinutes:  600,
	}
	challenged := base
	challenged.ChallengesAgainst = 2
	require.Equal(t, Score(base)-10, Score(challenged))
}

func TestScoreClampedToZero(t *testing.T) {
	s := domain.SolverStats{
		DeliveriesSucceeded: 1,
		DeliveriesFailed:    9,
		ChallengesAgainst:    50,
	}
	require.Equal(t, 0.0, Score(s))
}

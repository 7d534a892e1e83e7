package engine

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/signing"
	"github.com/oxzoid/hookmarket/internal/verifierclient"
)

// challengeFixture is a work order parked at StatusPassedPendingChallenge
// with two session participants: the selected solver and a second solver
// who lost selection but still quoted, and so can stand as the challenger.
type challengeFixture struct {
	wo             domain.WorkOrder
	submissionId   string
	solverKey      *ecdsa.PrivateKey
	solverAddr     string
	challengerKey  *ecdsa.PrivateKey
	challengerAddr string
}

// passThenChallenge drives a work order from creation through a passing
// submission, leaving it open to challenge, per spec §8 scenarios S3/S4's
// shared setup.
func passThenChallenge(t *testing.T, h *testHarness, outcome verifierclient.ChallengeOutcome) challengeFixture {
	t.Helper()
	h.verifyFunc = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(verifierclient.VerifyResponse{ //nolint:errcheck
				Report:           domain.VerificationReport{Status: domain.ReportPass},
				MilestonesPassed: []string{"M1_COMPILE_OK", "M2_TESTS_OK"},
			})
		case "/challenge":
			json.NewEncoder(w).Encode(struct { //nolint:errcheck
				Outcome verifierclient.ChallengeOutcome `json:"outcome"`
			}{Outcome: outcome})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	wo, err := h.engine.CreateWorkOrder(context.Background(), CreateWorkOrderInput{
		Title: "title", TemplateType: "template", BountyAmount: "10.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)

	solverKey, solverAddr := newSolverKey(t)
	challengerKey, challengerAddr := newSolverKey(t)
	submitSignedQuote(t, h, wo.Id, solverKey, solverAddr, "4.0000")
	submitSignedQuote(t, h, wo.Id, challengerKey, challengerAddr, "6.0000")

	selected, err := h.engine.SelectQuote(context.Background(), wo.Id, "", true, true)
	require.NoError(t, err)
	require.Equal(t, solverAddr, selected.Selection.SelectedSolverId)
	require.Contains(t, selected.Session.Participants, challengerAddr)

	repoUrl, commitSha := "repo", "sha"
	artifactHash := signing.ArtifactHash(repoUrl, commitSha)
	sig, err := testVerifierDomain.SignSubmission(signing.SubmissionMessage{
		WorkOrderId: wo.Id, RepoUrl: repoUrl, CommitSha: commitSha, ArtifactHash: artifactHash,
	}, solverKey)
	require.NoError(t, err)

	result, err := h.engine.SubmitSubmission(context.Background(), SubmitSubmissionInput{
		WorkOrderId: wo.Id, SolverAddr: solverAddr, RepoUrl: repoUrl, CommitSha: commitSha,
		ArtifactHash: hashHex(artifactHash), Signature: sig,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPassedPendingChallenge, result.Status)

	subs, err := h.store.ListSubmissions(context.Background(), wo.Id)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	return challengeFixture{
		wo:             result,
		submissionId:   subs[0].Id,
		solverKey:      solverKey,
		solverAddr:     solverAddr,
		challengerKey:  challengerKey,
		challengerAddr: challengerAddr,
	}
}

func signedChallenge(t *testing.T, f challengeFixture, spec signing.ReproductionSpec) []byte {
	t.Helper()
	reproHash := signing.ReproductionHash(spec)
	sig, err := testVerifierDomain.SignChallenge(signing.ChallengeMessage{
		WorkOrderId:      f.wo.Id,
		SubmissionId:     f.submissionId,
		ReproductionHash: reproHash,
	}, f.challengerKey)
	require.NoError(t, err)
	return sig
}

// TestSubmitChallengeSucceedsNoPatchWindowPaysChallenger covers spec §8
// scenario S3: a zero patch window means a successful challenge settles the
// work order immediately instead of giving the solver a chance to resubmit.
func TestSubmitChallengeSucceedsNoPatchWindowPaysChallenger(t *testing.T) {
	windows := defaultWindows()
	windows.Patch = 0
	h := newTestHarness(t, windows)

	f := passThenChallenge(t, h, verifierclient.ChallengeSuccess)
	spec := signing.ReproductionSpec{"seed": "1"}

	result, err := h.engine.SubmitChallenge(context.Background(), SubmitChallengeInput{
		WorkOrderId:       f.wo.Id,
		SubmissionId:      f.submissionId,
		ChallengerAddress: f.challengerAddr,
		ReproductionSpec:  spec,
		Signature:         signedChallenge(t, f, spec),
	})
	require.NoError(t, err)

	require.Equal(t, domain.StatusFailed, result.Status)
	require.Equal(t, domain.ChallengePatchFailed, result.Challenge.Status)
	require.NotEqual(t, domain.ChallengeRejected, result.Challenge.Status)
	require.Empty(t, result.Challenge.PendingRewardAmount)

	events, err := h.store.ListPaymentEvents(context.Background(), f.wo.Id)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.Type == domain.PaymentChallengeReward {
			found = true
			require.Equal(t, f.challengerAddr, e.Destination)
		}
	}
	require.True(t, found, "expected a challenge-reward payment event")

	solverStats, err := h.store.GetSolverStats(context.Background(), f.solverAddr)
	require.NoError(t, err)
	require.Equal(t, int64(1), solverStats.ChallengesAgainst)

	challengerStats, err := h.store.GetSolverStats(context.Background(), f.challengerAddr)
	require.NoError(t, err)
	require.Equal(t, int64(1), challengerStats.ChallengesWon)
}

// TestSubmitChallengeOpensPatchWindowThenPatchPasses covers spec §8
// scenario S4: a nonzero patch window lets the solver resubmit once, and a
// passing resubmission closes the challenge window without paying the
// challenger.
func TestSubmitChallengeOpensPatchWindowThenPatchPasses(t *testing.T) {
	h := newTestHarness(t, defaultWindows())

	f := passThenChallenge(t, h, verifierclient.ChallengeSuccess)
	spec := signing.ReproductionSpec{"seed": "1"}

	opened, err := h.engine.SubmitChallenge(context.Background(), SubmitChallengeInput{
		WorkOrderId:       f.wo.Id,
		SubmissionId:      f.submissionId,
		ChallengerAddress: f.challengerAddr,
		ReproductionSpec:  spec,
		Signature:         signedChallenge(t, f, spec),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusChallenged, opened.Status)
	require.Equal(t, domain.ChallengePatchWindow, opened.Challenge.Status)
	require.NotNil(t, opened.Deadlines.PatchEndsAt)
	require.NotEmpty(t, opened.Challenge.PendingRewardAmount)

	repoUrl, commitSha := "repo", "patched-sha"
	artifactHash := signing.ArtifactHash(repoUrl, commitSha)
	patchSig, err := testVerifierDomain.SignSubmission(signing.SubmissionMessage{
		WorkOrderId: f.wo.Id, RepoUrl: repoUrl, CommitSha: commitSha, ArtifactHash: artifactHash,
	}, f.solverKey)
	require.NoError(t, err)

	patched, err := h.engine.SubmitSubmission(context.Background(), SubmitSubmissionInput{
		WorkOrderId: f.wo.Id, SolverAddr: f.solverAddr, RepoUrl: repoUrl, CommitSha: commitSha,
		ArtifactHash: hashHex(artifactHash), Signature: patchSig,
	})
	require.NoError(t, err)

	require.Equal(t, domain.StatusPassedPendingChallenge, patched.Status)
	require.Equal(t, domain.ChallengePatchPassed, patched.Challenge.Status)
	require.NotNil(t, patched.Deadlines.ChallengeEndsAt)
	require.Nil(t, patched.Deadlines.PatchEndsAt)

	final, err := h.engine.EndSession(context.Background(), f.wo.Id, true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, final.Status)

	events, err := h.store.ListPaymentEvents(context.Background(), f.wo.Id)
	require.NoError(t, err)
	for _, e := range events {
		require.NotEqual(t, domain.PaymentChallengeReward, e.Type)
	}
}

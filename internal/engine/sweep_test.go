package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/signing"
	"github.com/oxzoid/hookmarket/internal/verifierclient"
)

func TestActiveWorkOrdersExcludesTerminalStatuses(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	ctx := context.Background()

	active, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "active", TemplateType: "t", BountyAmount: "1.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)

	done, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "done", TemplateType: "t", BountyAmount: "1.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)
	done.Status = domain.StatusCompleted
	require.NoError(t, h.store.UpdateWorkOrder(ctx, done))

	list, err := h.engine.ActiveWorkOrders(ctx)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, wo := range list {
		ids[i] = wo.Id
	}
	require.Contains(t, ids, active.Id)
	require.NotContains(t, ids, done.Id)
}

func TestSweepBiddingExpiresWithNoQuotes(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	ctx := context.Background()

	wo, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "t", TemplateType: "t", BountyAmount: "1.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute).UTC()
	wo.Deadlines.BiddingEndsAt = &past
	require.NoError(t, h.store.UpdateWorkOrder(ctx, wo))

	require.NoError(t, h.engine.SweepBidding(ctx, wo.Id))

	got, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, got.Status)
	require.Equal(t, "no_quotes", got.ExpiredReason)
}

func TestSweepBiddingAutoSelectsWhenQuotesExist(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	ctx := context.Background()

	wo, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "t", TemplateType: "t", BountyAmount: "10.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)

	key, addr := newSolverKey(t)
	submitSignedQuote(t, h, wo.Id, key, addr, "5.0000")

	got, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute).UTC()
	got.Deadlines.BiddingEndsAt = &past
	require.NoError(t, h.store.UpdateWorkOrder(ctx, got))

	require.NoError(t, h.engine.SweepBidding(ctx, wo.Id))

	final, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSelected, final.Status)
	require.Equal(t, addr, final.Selection.SelectedSolverId)
}

func TestSweepDeliveryExpiresPastDeadline(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	ctx := context.Background()

	wo, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "t", TemplateType: "t", BountyAmount: "10.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)
	key, addr := newSolverKey(t)
	submitSignedQuote(t, h, wo.Id, key, addr, "5.0000")
	selected, err := h.engine.SelectQuote(ctx, wo.Id, "", true, true)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute).UTC()
	selected.Deadlines.DeliveryEndsAt = &past
	require.NoError(t, h.store.UpdateWorkOrder(ctx, selected))

	require.NoError(t, h.engine.SweepDelivery(ctx, wo.Id))

	final, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, final.Status)
	require.Equal(t, "delivery_window", final.ExpiredReason)
}

func TestSweepChallengeSettleAfterWindowCloses(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	h.verifyFunc = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verifierclient.VerifyResponse{ //nolint:errcheck
			Report:           domain.VerificationReport{Status: domain.ReportPass},
			MilestonesPassed: []string{"M1_COMPILE_OK"},
		})
	}
	ctx := context.Background()

	wo, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "t", TemplateType: "t", BountyAmount: "10.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)
	key, addr := newSolverKey(t)
	submitSignedQuote(t, h, wo.Id, key, addr, "10.0000")
	_, err = h.engine.SelectQuote(ctx, wo.Id, "", true, true)
	require.NoError(t, err)

	repoUrl, commitSha := "repo", "sha"
	artifactHash := signing.ArtifactHash(repoUrl, commitSha)
	sig, err := testVerifierDomain.SignSubmission(signing.SubmissionMessage{
		WorkOrderId: wo.Id, RepoUrl: repoUrl, CommitSha: commitSha, ArtifactHash: artifactHash,
	}, key)
	require.NoError(t, err)
	result, err := h.engine.SubmitSubmission(ctx, SubmitSubmissionInput{
		WorkOrderId: wo.Id, SolverAddr: addr, RepoUrl: repoUrl, CommitSha: commitSha,
		ArtifactHash: hashHex(artifactHash), Signature: sig,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPassedPendingChallenge, result.Status)

	past := time.Now().Add(-time.Minute).UTC()
	result.Deadlines.ChallengeEndsAt = &past
	require.NoError(t, h.store.UpdateWorkOrder(ctx, result))

	require.NoError(t, h.engine.SweepChallengeSettle(ctx, wo.Id))

	final, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, final.Status)
	require.NotEmpty(t, final.SettlementTxId)
}

func TestSweepPatchTimeoutFinalizesFailure(t *testing.T) {
	h := newTestHarness(t, defaultWindows())
	ctx := context.Background()

	wo, err := h.engine.CreateWorkOrder(ctx, CreateWorkOrderInput{
		Title: "t", TemplateType: "t", BountyAmount: "10.0000", RequesterAddress: "0xRequester",
	})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute).UTC()
	wo.Status = domain.StatusChallenged
	wo.Challenge = domain.Challenge{
		Status:              domain.ChallengePatchWindow,
		ChallengeId:         "chal_test",
		ChallengerAddress:   "0xChallenger",
		PendingRewardAmount: "",
	}
	wo.Deadlines.PatchEndsAt = &past
	wo.Session.Participants = []string{"0xRequester", "0xSolver", "0xChallenger"}
	wo.Selection.SelectedSolverId = "0xSolver"
	require.NoError(t, h.store.UpdateWorkOrder(ctx, wo))

	require.NoError(t, h.engine.SweepPatchTimeout(ctx, wo.Id))

	final, err := h.store.GetWorkOrder(ctx, wo.Id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, final.Status)
	require.Equal(t, domain.ChallengePatchFailed, final.Challenge.Status)
}

package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/signing"
	"github.com/oxzoid/hookmarket/internal/verifierclient"
)

// ChallengeRewardPercent is the fixed challenger payout fraction of base price, spec §4.7 step 5.
const ChallengeRewardPercent = 20

// SubmitChallengeInput is a challenger's signed dispute, spec §4.7 operation 5.
type SubmitChallengeInput struct {
	WorkOrderId       string
	SubmissionId      string
	ChallengerAddress string
	ReproductionSpec  signing.ReproductionSpec
	Signature         []byte
}

// SubmitChallenge implements spec §4.7 operation 5.
func (e *Engine) SubmitChallenge(ctx context.Context, in SubmitChallengeInput) (domain.WorkOrder, error) {
	var result domain.WorkOrder
	err := e.withLock(in.WorkOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, in.WorkOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusPassedPendingChallenge || wo.Challenge.Status != domain.ChallengeOpen {
			return apierr.State("work order is not open to challenge")
		}
		now := time.Now().UTC()
		if wo.Deadlines.ChallengeEndsAt != nil && now.After(*wo.Deadlines.ChallengeEndsAt) {
			return apierr.State("challenge window has closed")
		}
		if !isParticipant(wo.Session.Participants, in.ChallengerAddress) {
			return apierr.Authorization("challenger is not a session participant")
		}

		sub, err := e.store.GetSubmission(ctx, in.SubmissionId)
		if err != nil {
			return err
		}
		if sub.WorkOrderId != in.WorkOrderId {
			return apierr.Validation("submissionId does not belong to this work order")
		}

		reproHash := signing.ReproductionHash(in.ReproductionSpec)
		addr, err := e.signer.RecoverChallengeSigner(signing.ChallengeMessage{
			WorkOrderId:      in.WorkOrderId,
			SubmissionId:     in.SubmissionId,
			ReproductionHash: reproHash,
		}, in.Signature)
		if err != nil || !signing.SameAddress(addr.Hex(), in.ChallengerAddress) {
			return apierr.Authorization("challenge signature does not recover to claimed challenger address")
		}

		challenge := domain.Challenge{
			Status:            domain.ChallengeOpen,
			ChallengeId:       "chal_" + uuid.New().String(),
			ChallengerAddress: in.ChallengerAddress,
		}

		outcome, verr := e.verifier.Challenge(ctx, wo, sub, challenge)
		if verr != nil {
			return apierr.Verifier(verr)
		}

		if outcome == verifierclient.ChallengeRejected {
			wo.Challenge.Status = domain.ChallengeRejected
			if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
				return apierr.Storage(err)
			}
			e.emit(in.WorkOrderId, "challengeRejected", wo)
			result = wo
			return nil
		}

		quote, err := e.findQuote(ctx, wo.Id, wo.Selection.SelectedQuoteId)
		if err != nil {
			return err
		}
		basePrice := e.basePrice(&wo, quote)
		challengeAmount := basePrice.Percent(ChallengeRewardPercent)

		if e.windows.Patch > 0 {
			patchEndsAt := now.Add(e.windows.Patch)
			wo.Status = domain.StatusChallenged
			wo.Deadlines.PatchEndsAt = &patchEndsAt
			wo.Challenge = domain.Challenge{
				Status:              domain.ChallengePatchWindow,
				ChallengeId:         challenge.ChallengeId,
				ChallengerAddress:   in.ChallengerAddress,
				PendingRewardAmount: challengeAmount.String(),
			}
			if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
				return apierr.Storage(err)
			}
			e.emit(in.WorkOrderId, "challengeOpened", wo)
			result = wo
			return nil
		}

		wo.Challenge = domain.Challenge{
			Status:              domain.ChallengeOpen,
			ChallengeId:         challenge.ChallengeId,
			ChallengerAddress:   in.ChallengerAddress,
			PendingRewardAmount: challengeAmount.String(),
		}
		if err := e.finalizeChallengeFailure(ctx, &wo); err != nil {
			return err
		}

		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		result = wo
		return nil
	})
	return result, err
}

// EndSession implements spec §4.7 operation 6.
func (e *Engine) EndSession(ctx context.Context, workOrderId string, force bool) (domain.WorkOrder, error) {
	var result domain.WorkOrder
	err := e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusPassedPendingChallenge || wo.Challenge.Status == domain.ChallengePatchWindow {
			return apierr.State("end-session is only valid in PASSED_PENDING_CHALLENGE outside a patch window")
		}
		now := time.Now().UTC()
		if wo.Deadlines.ChallengeEndsAt != nil && now.Before(*wo.Deadlines.ChallengeEndsAt) && !force {
			return apierr.State("challenge window is still open; pass force=true to settle early")
		}

		if err := e.settleWorkOrder(ctx, &wo, now); err != nil {
			return err
		}

		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		e.emit(workOrderId, "workOrderCompleted", wo)
		result = wo
		return nil
	})
	return result, err
}

func (e *Engine) settleWorkOrder(ctx context.Context, wo *domain.WorkOrder, now time.Time) error {
	quote, err := e.findQuote(ctx, wo.Id, wo.Selection.SelectedQuoteId)
	if err != nil {
		return err
	}
	basePrice := e.basePrice(wo, quote)

	var terminal domain.PayoutEntry
	for _, entry := range wo.PayoutSchedule {
		if domain.IsTerminalMilestone(entry.Key) {
			terminal = entry
			break
		}
	}
	if terminal.Key != "" {
		if err := e.payMilestone(ctx, wo, terminal, basePrice, wo.Selection.SelectedSolverId); err != nil {
			return err
		}
	}

	if _, err := e.sessions.CloseSession(ctx, wo); err != nil {
		return err
	}
	wo.Status = domain.StatusCompleted
	wo.Challenge.PendingRewardAmount = ""
	return nil
}

// finalizeChallengeFailure implements spec §4.7 operation 7.
func (e *Engine) finalizeChallengeFailure(ctx context.Context, wo *domain.WorkOrder) error {
	events, err := e.store.ListPaymentEvents(ctx, wo.Id)
	if err != nil {
		return apierr.Storage(err)
	}
	alreadyPaid := false
	for _, ev := range events {
		if ev.Type == domain.PaymentChallengeReward {
			alreadyPaid = true
			break
		}
	}

	if !alreadyPaid && wo.Challenge.PendingRewardAmount != "" {
		evt := domain.PaymentEvent{
			Id:          wo.Id + ":" + wo.Challenge.ChallengeId + ":reward",
			WorkOrderId: wo.Id,
			Type:        domain.PaymentChallengeReward,
			Destination: wo.Challenge.ChallengerAddress,
			Amount:      wo.Challenge.PendingRewardAmount,
		}
		if err := e.sessions.RecordPayment(ctx, wo, evt); err != nil {
			return err
		}
	}

	if err := e.bumpSolverStats(ctx, wo.Selection.SelectedSolverId, func(s *domain.SolverStats) { s.ChallengesAgainst++ }); err != nil {
		return err
	}
	if err := e.bumpSolverStats(ctx, wo.Challenge.ChallengerAddress, func(s *domain.SolverStats) { s.ChallengesWon++ }); err != nil {
		return err
	}

	wo.Status = domain.StatusFailed
	wo.Challenge.Status = domain.ChallengePatchFailed
	wo.Challenge.PendingRewardAmount = ""

	e.emit(wo.Id, "challengeFailed", wo)
	return nil
}

func isParticipant(participants []string, addr string) bool {
	for _, p := range participants {
		if signing.SameAddress(p, addr) {
			return true
		}
	}
	return false
}

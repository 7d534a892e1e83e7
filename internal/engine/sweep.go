package engine

import (
	"context"
	"time"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
)

// ActiveWorkOrders returns every work order not yet in a terminal status,
// for the DeadlineSweeper's per-tick scan (spec §4.8).
func (e *Engine) ActiveWorkOrders(ctx context.Context) ([]domain.WorkOrder, error) {
	all, err := e.store.ListWorkOrders(ctx, "")
	if err != nil {
		return nil, apierr.Storage(err)
	}
	out := make([]domain.WorkOrder, 0, len(all))
	for _, wo := range all {
		switch wo.Status {
		case domain.StatusCompleted, domain.StatusFailed, domain.StatusExpired:
		default:
			out = append(out, wo)
		}
	}
	return out, nil
}

// SweepBidding handles one BIDDING work order whose biddingEndsAt has
// passed, per spec §4.8's first bullet.
func (e *Engine) SweepBidding(ctx context.Context, workOrderId string) error {
	return e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusBidding || wo.Deadlines.BiddingEndsAt == nil {
			return nil
		}
		now := time.Now().UTC()
		if now.Before(*wo.Deadlines.BiddingEndsAt) {
			return nil
		}

		quotes, err := e.store.ListQuotes(ctx, workOrderId)
		if err != nil {
			return apierr.Storage(err)
		}
		if len(quotes) == 0 {
			wo.Status = domain.StatusExpired
			wo.ExpiredReason = "no_quotes"
			if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
				return apierr.Storage(err)
			}
			e.emit(workOrderId, "workOrderExpired", wo)
			return nil
		}

		if _, err := e.sessions.EnsureSession(ctx, &wo, quotes); err != nil {
			return err
		}
		if err := e.sessions.EnsureQuoteRewardsPaid(ctx, &wo, quotes); err != nil {
			return err
		}

		eligible := excludeAttempted(eligibleQuotes(quotes, wo.Session.Participants), wo.Selection.AttemptedQuoteIds)
		chosen, err := e.selectBestQuote(ctx, eligible)
		if err != nil {
			return err
		}
		if chosen == nil {
			wo.Status = domain.StatusFailed
			return apierr.Storage(e.store.UpdateWorkOrder(ctx, wo))
		}

		applySelection(&wo, *chosen, now, e.windows)
		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		if err := e.bumpSolverStats(ctx, chosen.SolverAddr, func(s *domain.SolverStats) { s.QuotesWon++ }); err != nil {
			return err
		}
		e.emit(workOrderId, "solverAutoSelected", wo)
		return nil
	})
}

// SweepDelivery expires a SELECTED work order whose deliveryEndsAt has
// passed with no submission accepted, per spec §4.8's second bullet.
func (e *Engine) SweepDelivery(ctx context.Context, workOrderId string) error {
	return e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusSelected || wo.Deadlines.DeliveryEndsAt == nil {
			return nil
		}
		if !time.Now().UTC().After(*wo.Deadlines.DeliveryEndsAt) {
			return nil
		}
		wo.Status = domain.StatusExpired
		wo.ExpiredReason = "delivery_window"
		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		e.emit(workOrderId, "workOrderExpired", wo)
		return nil
	})
}

// SweepChallengeSettle settles a PASSED_PENDING_CHALLENGE work order whose
// challengeEndsAt has passed unchallenged, per spec §4.8's third bullet.
func (e *Engine) SweepChallengeSettle(ctx context.Context, workOrderId string) error {
	return e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusPassedPendingChallenge || wo.Challenge.Status == domain.ChallengePatchWindow {
			return nil
		}
		if wo.Deadlines.ChallengeEndsAt == nil || !time.Now().UTC().After(*wo.Deadlines.ChallengeEndsAt) {
			return nil
		}
		now := time.Now().UTC()
		if err := e.settleWorkOrder(ctx, &wo, now); err != nil {
			return err
		}
		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		e.emit(workOrderId, "workOrderCompleted", wo)
		return nil
	})
}

// SweepPatchTimeout finalizes a CHALLENGED work order whose patchEndsAt has
// passed with no resubmission, per spec §4.8's fourth bullet.
func (e *Engine) SweepPatchTimeout(ctx context.Context, workOrderId string) error {
	return e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusChallenged || wo.Challenge.Status != domain.ChallengePatchWindow {
			return nil
		}
		if wo.Deadlines.PatchEndsAt == nil || !time.Now().UTC().After(*wo.Deadlines.PatchEndsAt) {
			return nil
		}
		if err := e.finalizeChallengeFailure(ctx, &wo); err != nil {
			return err
		}
		return apierr.Storage(e.store.UpdateWorkOrder(ctx, wo))
	})
}

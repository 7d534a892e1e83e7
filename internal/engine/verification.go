package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/money"
	"github.com/oxzoid/hookmarket/internal/signing"
)

// SubmitSubmissionInput is a solver's signed artifact reference, spec §4.7 operation 4.
type SubmitSubmissionInput struct {
	WorkOrderId  string
	SolverAddr   string
	RepoUrl      string
	CommitSha    string
	ArtifactHash string // hex-encoded, claimed by the solver
	Signature    []byte
}

// SubmitSubmission implements spec §4.7 operation 4: persists the
// submission, calls the external verifier synchronously, and applies its
// verdict (milestone payouts on PASS, fallback selection or challenge
// finalization on FAIL).
func (e *Engine) SubmitSubmission(ctx context.Context, in SubmitSubmissionInput) (domain.WorkOrder, error) {
	var result domain.WorkOrder
	err := e.withLock(in.WorkOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, in.WorkOrderId)
		if err != nil {
			return err
		}

		isPatch := wo.Status == domain.StatusChallenged && wo.Deadlines.PatchEndsAt != nil && !time.Now().UTC().After(*wo.Deadlines.PatchEndsAt)
		if wo.Status != domain.StatusSelected && !isPatch {
			return apierr.State("submission not accepted in current status")
		}
		if wo.Selection.SelectedSolverId != in.SolverAddr {
			return apierr.Authorization("only the selected solver may submit")
		}

		wantHash := signing.ArtifactHash(in.RepoUrl, in.CommitSha)
		if in.ArtifactHash != hashHex(wantHash) {
			return apierr.HashMismatch("artifactHash does not match hash(repoUrl:commitSha)")
		}

		addr, err := e.signer.RecoverSubmissionSigner(signing.SubmissionMessage{
			WorkOrderId:  in.WorkOrderId,
			RepoUrl:      in.RepoUrl,
			CommitSha:    in.CommitSha,
			ArtifactHash: wantHash,
		}, in.Signature)
		if err != nil || !signing.SameAddress(addr.Hex(), in.SolverAddr) {
			return apierr.Authorization("submission signature does not recover to claimed solver address")
		}

		now := time.Now().UTC()
		sub := domain.Submission{
			Id:          "sub_" + uuid.New().String(),
			WorkOrderId: in.WorkOrderId,
			SolverAddr:  in.SolverAddr,
			Artifact: domain.Artifact{
				Kind:         domain.ArtifactGitCommit,
				RepoUrl:      in.RepoUrl,
				CommitSha:    in.CommitSha,
				ArtifactHash: hashHex(wantHash),
			},
			Signature: string(in.Signature),
			CreatedAt: now,
		}

		wo.Status = domain.StatusVerifying
		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		if err := e.store.InsertSubmission(ctx, sub); err != nil {
			return apierr.Storage(err)
		}
		e.emit(in.WorkOrderId, "submissionReceived", sub)

		resp, verr := e.verifier.Verify(ctx, wo, sub)
		if verr != nil {
			wo.Status = domain.StatusFailed
			if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
				return apierr.Storage(err)
			}
			e.emit(in.WorkOrderId, "verificationFailed", map[string]string{"error": verr.Error()})
			result = wo
			return apierr.Verifier(verr)
		}

		resp.Report.Id = "rep_" + uuid.New().String()
		resp.Report.SubmissionId = sub.Id
		resp.Report.ProducedAt = now
		resp.Report.ArtifactHash = sub.Artifact.ArtifactHash
		if err := e.store.InsertVerificationReport(ctx, resp.Report); err != nil {
			return apierr.Storage(err)
		}
		wo.ReportId = resp.Report.Id

		if resp.Report.Status == domain.ReportPass {
			if err := e.applyVerificationPass(ctx, &wo, sub, resp.MilestonesPassed, now); err != nil {
				return err
			}
		} else {
			if err := e.applyVerificationFail(ctx, &wo, sub, now); err != nil {
				return err
			}
		}

		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		result = wo
		return nil
	})
	return result, err
}

func (e *Engine) applyVerificationPass(ctx context.Context, wo *domain.WorkOrder, sub domain.Submission, milestonesPassed []string, now time.Time) error {
	patched := wo.Challenge.Status == domain.ChallengePatchWindow

	wo.Status = domain.StatusPassedPendingChallenge
	if patched {
		wo.Challenge.Status = domain.ChallengePatchPassed
		challengeEndsAt := now
		wo.Deadlines.ChallengeEndsAt = &challengeEndsAt
	} else {
		wo.Challenge.Status = domain.ChallengeOpen
		challengeEndsAt := now.Add(e.windows.Challenge)
		wo.Deadlines.ChallengeEndsAt = &challengeEndsAt
	}
	wo.Deadlines.PatchEndsAt = nil

	quote, err := e.findQuote(ctx, wo.Id, wo.Selection.SelectedQuoteId)
	if err != nil {
		return err
	}

	if err := e.bumpSolverStats(ctx, sub.SolverAddr, func(s *domain.SolverStats) {
		s.DeliveriesSucceeded++
		if quote != nil {
			s.TotalEtaMinutes += int64(quote.EtaMinutes)
		}
		if wo.Selection.SelectedAt != nil {
			actual := int64(math.Ceil(now.Sub(*wo.Selection.SelectedAt).Seconds() / 60))
			s.TotalActualMinutes += actual
		}
		if wo.Deadlines.DeliveryEndsAt == nil || !now.After(*wo.Deadlines.DeliveryEndsAt) {
			s.OnTimeDeliveries++
		}
	}); err != nil {
		return err
	}

	basePrice := e.basePrice(wo, quote)

	for _, entry := range wo.PayoutSchedule {
		if !contains(milestonesPassed, entry.Key) {
			continue
		}
		if err := e.payMilestone(ctx, wo, entry, basePrice, sub.SolverAddr); err != nil {
			return err
		}
	}

	return nil
}

// payMilestone pays out the remainder of entry's target not yet paid to
// solverAddr, split into milestoneSplits equal parts (the terminal
// milestone is never split), per spec §4.7's numeric semantics.
func (e *Engine) payMilestone(ctx context.Context, wo *domain.WorkOrder, entry domain.PayoutEntry, basePrice money.Amount, solverAddr string) error {
	target := basePrice.Percent(entry.Percent)

	events, err := e.store.ListPaymentEvents(ctx, wo.Id)
	if err != nil {
		return apierr.Storage(err)
	}
	var alreadyPaid = money.Zero()
	for _, ev := range events {
		if ev.Type == domain.PaymentMilestone && ev.MilestoneKey == entry.Key && ev.Destination == solverAddr {
			amt, err := money.Parse(ev.Amount)
			if err != nil {
				return apierr.Storage(err)
			}
			alreadyPaid = alreadyPaid.Add(amt)
		}
	}

	remainder := target.Sub(alreadyPaid)
	if remainder.IsZero() || remainder.IsNegative() {
		return nil
	}

	splits := e.milestoneSplits
	if domain.IsTerminalMilestone(entry.Key) {
		splits = 1
	}

	for _, part := range remainder.Split(splits) {
		if part.IsZero() {
			continue
		}
		evt := domain.PaymentEvent{
			Id:           wo.Id + ":" + entry.Key + ":" + solverAddr + ":" + uuid.New().String(),
			WorkOrderId:  wo.Id,
			Type:         domain.PaymentMilestone,
			Destination:  solverAddr,
			Amount:       part.String(),
			MilestoneKey: entry.Key,
			CreatedAt:    time.Now().UTC(),
		}
		if err := e.sessions.RecordPayment(ctx, wo, evt); err != nil {
			return err
		}
		e.emit(wo.Id, "milestonePaid", evt)
	}
	return nil
}

func (e *Engine) applyVerificationFail(ctx context.Context, wo *domain.WorkOrder, sub domain.Submission, now time.Time) error {
	e.emit(wo.Id, "verificationFailed", sub)

	if wo.Challenge.Status == domain.ChallengePatchWindow {
		return e.finalizeChallengeFailure(ctx, wo)
	}

	if err := e.bumpSolverStats(ctx, sub.SolverAddr, func(s *domain.SolverStats) { s.DeliveriesFailed++ }); err != nil {
		return err
	}
	wo.Selection.AttemptedQuoteIds = append(wo.Selection.AttemptedQuoteIds, wo.Selection.SelectedQuoteId)

	quotes, err := e.store.ListQuotes(ctx, wo.Id)
	if err != nil {
		return apierr.Storage(err)
	}
	if _, err := e.sessions.EnsureSession(ctx, wo, quotes); err != nil {
		return err
	}

	eligible := excludeAttempted(eligibleQuotes(quotes, wo.Session.Participants), wo.Selection.AttemptedQuoteIds)
	next, err := e.selectBestQuote(ctx, eligible)
	if err != nil {
		return err
	}
	if next == nil {
		wo.Status = domain.StatusFailed
		return nil
	}
	applySelection(wo, *next, now, e.windows)
	e.emit(wo.Id, "solverFallbackSelected", wo)
	return nil
}

func (e *Engine) findQuote(ctx context.Context, workOrderId, quoteId string) (*domain.Quote, error) {
	if quoteId == "" {
		return nil, nil
	}
	quotes, err := e.store.ListQuotes(ctx, workOrderId)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	for i := range quotes {
		if quotes[i].Id == quoteId {
			return &quotes[i], nil
		}
	}
	if e.log != nil {
		e.log.Warn("engine: selected quote row missing, falling back to bounty for base price", zap.String("work_order_id", workOrderId))
	}
	return nil, nil
}

// basePrice is the selected quote's price, falling back to the bounty
// amount if the quote row is missing (spec §9 open question c).
func (e *Engine) basePrice(wo *domain.WorkOrder, quote *domain.Quote) money.Amount {
	if quote != nil {
		if p, err := money.Parse(quote.Price); err == nil {
			return p
		}
	}
	if p, err := money.Parse(wo.Bounty.Amount); err == nil {
		return p
	}
	return money.Zero()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func hashHex(h [32]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0xf]
	}
	return string(out)
}

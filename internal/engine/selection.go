package engine

import (
	"context"
	"sort"
	"time"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/money"
	"github.com/oxzoid/hookmarket/internal/reputation"
)

// SelectQuote implements spec §4.7 operation 3.
func (e *Engine) SelectQuote(ctx context.Context, workOrderId, quoteId string, force, demoActionsEnabled bool) (domain.WorkOrder, error) {
	var result domain.WorkOrder
	err := e.withLock(workOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, workOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusBidding && wo.Status != domain.StatusFailed && wo.Status != domain.StatusExpired {
			return apierr.State("select is only valid from BIDDING, FAILED, or EXPIRED")
		}

		now := time.Now().UTC()
		if wo.Status == domain.StatusBidding && (wo.Deadlines.BiddingEndsAt == nil || now.Before(*wo.Deadlines.BiddingEndsAt)) {
			if !force || !demoActionsEnabled {
				return apierr.State("bidding window is still open; force select requires DEMO_ACTIONS")
			}
		}

		quotes, err := e.store.ListQuotes(ctx, workOrderId)
		if err != nil {
			return apierr.Storage(err)
		}
		if wo.Status == domain.StatusExpired && len(quotes) == 0 {
			return apierr.State("no quotes exist for this expired work order")
		}

		if _, err := e.sessions.EnsureSession(ctx, &wo, quotes); err != nil {
			return err
		}
		if err := e.sessions.EnsureQuoteRewardsPaid(ctx, &wo, quotes); err != nil {
			return err
		}

		eligible := eligibleQuotes(quotes, wo.Session.Participants)
		var chosen *domain.Quote
		if quoteId != "" {
			for i := range eligible {
				if eligible[i].Id == quoteId {
					chosen = &eligible[i]
					break
				}
			}
			if chosen == nil {
				return apierr.Validation("quoteId is not an eligible quote for this session")
			}
		} else {
			chosen, err = e.selectBestQuote(ctx, excludeAttempted(eligible, wo.Selection.AttemptedQuoteIds))
			if err != nil {
				return err
			}
			if chosen == nil {
				wo.Status = domain.StatusFailed
				if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
					return apierr.Storage(err)
				}
				result = wo
				return nil
			}
		}

		applySelection(&wo, *chosen, now, e.windows)

		if err := e.store.UpdateWorkOrder(ctx, wo); err != nil {
			return apierr.Storage(err)
		}
		if err := e.bumpSolverStats(ctx, chosen.SolverAddr, func(s *domain.SolverStats) { s.QuotesWon++ }); err != nil {
			return err
		}

		e.emit(workOrderId, "solverSelected", wo)
		result = wo
		return nil
	})
	return result, err
}

func applySelection(wo *domain.WorkOrder, chosen domain.Quote, now time.Time, w Windows) {
	deliveryEndsAt := now.Add(w.Delivery)
	verifyEndsAt := now.Add(w.Verify)

	wo.Status = domain.StatusSelected
	wo.Selection.SelectedQuoteId = chosen.Id
	wo.Selection.SelectedSolverId = chosen.SolverAddr
	wo.Selection.SelectedAt = &now
	wo.Deadlines.DeliveryEndsAt = &deliveryEndsAt
	wo.Deadlines.VerifyEndsAt = &verifyEndsAt
	wo.Deadlines.ChallengeEndsAt = nil
	wo.Challenge = domain.Challenge{Status: domain.ChallengeNone}
}

func eligibleQuotes(quotes []domain.Quote, participants []string) []domain.Quote {
	set := make(map[string]bool, len(participants))
	for _, p := range participants {
		set[p] = true
	}
	out := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if set[q.SolverAddr] {
			out = append(out, q)
		}
	}
	return out
}

func excludeAttempted(quotes []domain.Quote, attempted []string) []domain.Quote {
	set := make(map[string]bool, len(attempted))
	for _, id := range attempted {
		set[id] = true
	}
	out := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if !set[q.Id] {
			out = append(out, q)
		}
	}
	return out
}

// selectBestQuote ranks by ascending price, tie-break ascending etaMinutes,
// then descending reputation score, then ascending createdAt, per spec §4.7.
func (e *Engine) selectBestQuote(ctx context.Context, candidates []domain.Quote) (*domain.Quote, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	type ranked struct {
		quote domain.Quote
		price money.Amount
		score float64
	}

	rows := make([]ranked, 0, len(candidates))
	for _, q := range candidates {
		price, err := money.Parse(q.Price)
		if err != nil {
			return nil, apierr.Storage(err)
		}
		stats, err := e.store.GetSolverStats(ctx, q.SolverAddr)
		if err != nil {
			return nil, apierr.Storage(err)
		}
		rows = append(rows, ranked{quote: q, price: price, score: reputation.Score(stats)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if cmp := rows[i].price.Cmp(rows[j].price); cmp != 0 {
			return cmp < 0
		}
		if rows[i].quote.EtaMinutes != rows[j].quote.EtaMinutes {
			return rows[i].quote.EtaMinutes < rows[j].quote.EtaMinutes
		}
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].quote.CreatedAt.Before(rows[j].quote.CreatedAt)
	})

	return &rows[0].quote, nil
}

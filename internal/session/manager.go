// Package session implements the SessionManager of spec §4.6: per-work-order
// payment-channel lifecycle, layered over a PaymentChannelAdapter. It owns
// the QUOTE_REWARD fan-out and the session-handle bookkeeping that
// WorkOrderEngine mutates work orders with.
package session

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/eventbus"
	"github.com/oxzoid/hookmarket/internal/money"
	"github.com/oxzoid/hookmarket/internal/paychan"
)

// QuoteReward is the fixed per-solver reward paid out of ensureQuoteRewardsPaid, spec §7 example.
var QuoteReward = money.MustParse("0.01")

// Store is the narrow persistence surface SessionManager needs.
type Store interface {
	UpdateWorkOrder(ctx context.Context, wo domain.WorkOrder) error
	InsertPaymentEvent(ctx context.Context, evt domain.PaymentEvent) error
	ListPaymentEvents(ctx context.Context, workOrderId string) ([]domain.PaymentEvent, error)
}

type Manager struct {
	adapter  paychan.Adapter
	store    Store
	bus      *eventbus.Bus
	maxQuoteRewards int
	log      *zap.Logger
}

func NewManager(adapter paychan.Adapter, store Store, bus *eventbus.Bus, maxQuoteRewards int, log *zap.Logger) *Manager {
	return &Manager{adapter: adapter, store: store, bus: bus, maxQuoteRewards: maxQuoteRewards, log: log}
}

// EnsureSession creates the session on first call and is a no-op on
// subsequent calls for the same work order (spec §4.6: "idempotent, returns
// the existing state if already created").
func (m *Manager) EnsureSession(ctx context.Context, wo *domain.WorkOrder, quotes []domain.Quote) (domain.SessionHandle, error) {
	if wo.Session.SessionId != "" {
		return wo.Session, nil
	}

	solvers := distinctOldestFirst(quotes, m.maxQuoteRewards)
	n := len(solvers)

	bountyAmount, err := money.Parse(wo.Bounty.Amount)
	if err != nil {
		return domain.SessionHandle{}, apierr.Validationf("work order bounty amount %q is invalid: %v", wo.Bounty.Amount, err)
	}
	allowanceTotal := bountyAmount.Add(QuoteReward.Mul(int64(n)))

	requester := wo.RequesterAddr
	state, err := m.adapter.CreateSession(ctx, wo.Id, allowanceTotal, requester, solvers)
	if err != nil {
		return domain.SessionHandle{}, err
	}

	wo.Session = state
	if err := m.store.UpdateWorkOrder(ctx, *wo); err != nil {
		return domain.SessionHandle{}, apierr.Storage(err)
	}

	if m.bus != nil {
		_ = m.bus.Emit(domain.Event{WorkOrderId: wo.Id, Type: "yellowSessionCreated", Payload: state})
	}
	return state, nil
}

// EnsureQuoteRewardsPaid pays QuoteReward once to every distinct solver
// address among quotes that is a session participant and has not already
// been paid one, per spec §4.6 /
// invariant 6 ("QUOTE_REWARD is paid at most once per (workOrderId, solverAddress)").
func (m *Manager) EnsureQuoteRewardsPaid(ctx context.Context, wo *domain.WorkOrder, quotes []domain.Quote) error {
	paid, err := m.paidQuoteRewardAddresses(ctx, wo.Id)
	if err != nil {
		return err
	}

	for _, q := range dedupeBySolver(eligibleQuotes(quotes, wo.Session.Participants)) {
		if paid[q.SolverAddr] {
			continue
		}
		evt := domain.PaymentEvent{
			WorkOrderId: wo.Id,
			Type:        domain.PaymentQuoteReward,
			Destination: q.SolverAddr,
			Amount:      QuoteReward.String(),
		}
		if err := m.RecordPayment(ctx, wo, evt); err != nil {
			return err
		}
		if m.bus != nil {
			_ = m.bus.Emit(domain.Event{WorkOrderId: wo.Id, Type: "quoteRewardPaid", Payload: evt})
		}
	}
	return nil
}

// RecordPayment wraps adapter.Transfer, persisting the bumped session state
// and the PaymentEvent atomically with respect to the engine's single
// writer (the caller is expected to hold the work order's lock).
func (m *Manager) RecordPayment(ctx context.Context, wo *domain.WorkOrder, evt domain.PaymentEvent) error {
	if evt.Id == "" {
		evt.Id = fmt.Sprintf("%s:%s:%s", wo.Id, evt.Type, evt.Destination+evt.MilestoneKey)
	}

	amount, err := money.Parse(evt.Amount)
	if err != nil {
		return apierr.Validationf("payment event amount %q is invalid: %v", evt.Amount, err)
	}
	allowanceTotal, err := money.Parse(wo.Session.AllowanceTotal)
	if err != nil {
		return apierr.Validationf("session allowance %q is invalid: %v", wo.Session.AllowanceTotal, err)
	}

	result, err := m.adapter.Transfer(ctx, wo.Id, paychan.TransferEvent{
		Id:        evt.Id,
		ToAddress: evt.Destination,
		Amount:    amount,
	}, wo.Session, allowanceTotal)
	if err != nil {
		return err
	}

	evt.TransferId = result.TransferId
	wo.Session = result.State

	if err := m.store.InsertPaymentEvent(ctx, evt); err != nil {
		return apierr.Storage(err)
	}
	if err := m.store.UpdateWorkOrder(ctx, *wo); err != nil {
		return apierr.Storage(err)
	}
	return nil
}

// CloseSession finalizes the payment-channel session and persists the
// resulting settlement reference onto the work order.
func (m *Manager) CloseSession(ctx context.Context, wo *domain.WorkOrder) (paychan.CloseResult, error) {
	result, err := m.adapter.Close(ctx, wo.Id, wo.Session)
	if err != nil {
		return paychan.CloseResult{}, err
	}
	wo.SettlementTxId = result.SettlementTxId
	if err := m.store.UpdateWorkOrder(ctx, *wo); err != nil {
		return paychan.CloseResult{}, apierr.Storage(err)
	}
	return result, nil
}

func (m *Manager) paidQuoteRewardAddresses(ctx context.Context, workOrderId string) (map[string]bool, error) {
	events, err := m.store.ListPaymentEvents(ctx, workOrderId)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	paid := make(map[string]bool, len(events))
	for _, e := range events {
		if e.Type == domain.PaymentQuoteReward {
			paid[e.Destination] = true
		}
	}
	return paid, nil
}

// distinctOldestFirst returns up to max distinct solver addresses from
// quotes in submission order, per spec §4.6 ("selects up to N distinct
// solver addresses from oldest-first quotes").
func distinctOldestFirst(quotes []domain.Quote, max int) []string {
	sorted := append([]domain.Quote(nil), quotes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	seen := make(map[string]bool)
	out := make([]string, 0, max)
	for _, q := range sorted {
		if seen[q.SolverAddr] {
			continue
		}
		seen[q.SolverAddr] = true
		out = append(out, q.SolverAddr)
		if len(out) == max {
			break
		}
	}
	return out
}

// eligibleQuotes narrows quotes to the solvers the session actually
// admitted (distinctOldestFirst's MAX_QUOTE_REWARDS-capped set), mirroring
// engine.eligibleQuotes; duplicated here rather than imported to avoid a
// session<->engine import cycle.
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

func dedupeBySolver(quotes []domain.Quote) []domain.Quote {
	sorted := append([]domain.Quote(nil), quotes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	seen := make(map[string]bool)
	out := make([]domain.Quote, 0, len(sorted))
	for _, q := range sorted {
		if seen[q.SolverAddr] {
			continue
		}
		seen[q.SolverAddr] = true
		out = append(out, q)
	}
	return out
}

// Package engine implements the WorkOrderEngine state machine of spec §4.7:
// create → bid → select → verify → challenge/patch → settle, driving the
// SessionManager and the external verifier behind a per-work-order lock.
// The locking discipline follows OSPay's single-row-write idiom
// generalized from a row mutex to a keyed in-process mutex, since a work
// order is a multi-table aggregate rather than a single UPDATE statement.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/eventbus"
	"github.com/oxzoid/hookmarket/internal/money"
	"github.com/oxzoid/hookmarket/internal/session"
	"github.com/oxzoid/hookmarket/internal/signing"
	"github.com/oxzoid/hookmarket/internal/store"
	"github.com/oxzoid/hookmarket/internal/verifierclient"
)

// Windows holds the state-machine deadline durations, spec §4.7.
type Windows struct {
	Bidding   time.Duration
	Delivery  time.Duration
	Verify    time.Duration
	Challenge time.Duration
	Patch     time.Duration
}

// Engine is the WorkOrderEngine. It is safe for concurrent use; each work
// order's operations are serialized behind a per-id lock, so unrelated
// work orders never block each other.
type Engine struct {
	store    store.Store
	sessions *session.Manager
	verifier *verifierclient.Client
	signer   *signing.Verifier
	windows  Windows
	bus      *eventbus.Bus
	log      *zap.Logger

	milestoneSplits int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(st store.Store, sessions *session.Manager, verifier *verifierclient.Client, signer *signing.Verifier, windows Windows, milestoneSplits int, bus *eventbus.Bus, log *zap.Logger) *Engine {
	return &Engine{
		store:           st,
		sessions:        sessions,
		verifier:        verifier,
		signer:          signer,
		windows:         windows,
		bus:             bus,
		log:             log,
		milestoneSplits: milestoneSplits,
		locks:           make(map[string]*sync.Mutex),
	}
}

// lockFor returns the work order's serialization lock, creating it on
// first use. Locks are never removed; a marketplace's work order count is
// bounded by its lifetime traffic, not unbounded churn.
func (e *Engine) lockFor(workOrderId string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[workOrderId]
	if !ok {
		l = &sync.Mutex{}
		e.locks[workOrderId] = l
	}
	return l
}

func (e *Engine) withLock(workOrderId string, fn func() error) error {
	l := e.lockFor(workOrderId)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (e *Engine) emit(workOrderId, eventType string, payload any) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Emit(domain.Event{WorkOrderId: workOrderId, Type: eventType, Payload: payload}); err != nil && e.log != nil {
		e.log.Warn("engine: event emit failed", zap.String("work_order_id", workOrderId), zap.Error(err))
	}
}

func (e *Engine) bumpSolverStats(ctx context.Context, address string, mutate func(*domain.SolverStats)) error {
	st, err := e.store.GetSolverStats(ctx, address)
	if err != nil {
		return apierr.Storage(err)
	}
	st.Address = address
	mutate(&st)
	return apierr.Storage(e.store.UpsertSolverStats(ctx, st))
}

// CreateWorkOrderInput is the create-work-order request body, spec §6.
type CreateWorkOrderInput struct {
	Title           string
	TemplateType    string
	Params          map[string]any
	BountyCurrency  string
	BountyAmount    string
	RequesterAddress string
}

// CreateWorkOrder implements spec §4.7 operation 1.
func (e *Engine) CreateWorkOrder(ctx context.Context, in CreateWorkOrderInput) (domain.WorkOrder, error) {
	if in.Title == "" || in.TemplateType == "" {
		return domain.WorkOrder{}, apierr.Validation("title and templateType are required")
	}
	if in.BountyAmount == "" {
		return domain.WorkOrder{}, apierr.Validation("bounty.amount is required")
	}
	if _, err := money.Parse(in.BountyAmount); err != nil {
		return domain.WorkOrder{}, apierr.Validationf("bounty.amount is invalid: %v", err)
	}

	now := time.Now().UTC()
	biddingEndsAt := now.Add(e.windows.Bidding)

	wo := domain.WorkOrder{
		Id:           "wo_" + uuid.New().String(),
		CreatedAt:    now,
		Title:        in.Title,
		TemplateType: in.TemplateType,
		Params:       in.Params,
		Bounty:       domain.Bounty{Currency: in.BountyCurrency, Amount: in.BountyAmount},
		RequesterAddr: in.RequesterAddress,
		Status:       domain.StatusBidding,
		Deadlines:    domain.Deadlines{BiddingEndsAt: &biddingEndsAt},
		Challenge:    domain.Challenge{Status: domain.ChallengeNone},
		PayoutSchedule: domain.DefaultPayoutSchedule,
	}

	if err := e.store.InsertWorkOrder(ctx, wo); err != nil {
		return domain.WorkOrder{}, apierr.Storage(err)
	}
	e.emit(wo.Id, "workOrderCreated", wo)
	return wo, nil
}

// SubmitQuoteInput is a solver's signed bid, spec §4.7 operation 2.
type SubmitQuoteInput struct {
	WorkOrderId string
	SolverAddr  string
	Price       string
	EtaMinutes  int64
	ValidUntil  time.Time
	Signature   []byte
}

// SubmitQuote implements spec §4.7 operation 2.
func (e *Engine) SubmitQuote(ctx context.Context, in SubmitQuoteInput) (domain.Quote, error) {
	var result domain.Quote
	err := e.withLock(in.WorkOrderId, func() error {
		wo, err := e.store.GetWorkOrder(ctx, in.WorkOrderId)
		if err != nil {
			return err
		}
		if wo.Status != domain.StatusBidding {
			return apierr.State("work order is not accepting bids")
		}
		now := time.Now().UTC()
		if wo.Deadlines.BiddingEndsAt != nil && now.After(*wo.Deadlines.BiddingEndsAt) {
			return apierr.State("bidding window has closed")
		}
		if in.ValidUntil.Before(now) {
			return apierr.Validation("validUntil must not be in the past")
		}
		price, err := money.Parse(in.Price)
		if err != nil {
			return apierr.Validationf("price is invalid: %v", err)
		}
		bounty, err := money.Parse(wo.Bounty.Amount)
		if err != nil {
			return apierr.Storage(err)
		}
		if price.Cmp(bounty) > 0 {
			return apierr.Validation("price must not exceed bounty amount")
		}

		addr, err := e.signer.RecoverQuoteSigner(signing.QuoteMessage{
			WorkOrderId: in.WorkOrderId,
			Price:       in.Price,
			EtaMinutes:  in.EtaMinutes,
			ValidUntil:  in.ValidUntil.Unix(),
		}, in.Signature)
		if err != nil || !signing.SameAddress(addr.Hex(), in.SolverAddr) {
			return apierr.Authorization("quote signature does not recover to claimed solver address")
		}

		q := domain.Quote{
			Id:          "q_" + uuid.New().String(),
			WorkOrderId: in.WorkOrderId,
			SolverAddr:  in.SolverAddr,
			Price:       in.Price,
			EtaMinutes:  int(in.EtaMinutes),
			ValidUntil:  in.ValidUntil,
			Signature:   string(in.Signature),
			CreatedAt:   now,
		}
		if err := e.store.InsertQuote(ctx, q); err != nil {
			return apierr.Storage(err)
		}
		if err := e.bumpSolverStats(ctx, in.SolverAddr, func(s *domain.SolverStats) { s.QuotesSubmitted++ }); err != nil {
			return err
		}

		e.emit(in.WorkOrderId, "quoteCreated", q)
		result = q
		return nil
	})
	return result, err
}

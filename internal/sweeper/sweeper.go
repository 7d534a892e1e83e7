// Package sweeper implements the DeadlineSweeper of spec §4.8: a
// single-threaded periodic tick that expires bids, auto-selects,
// settles past-challenge work orders, and times out patches. Grounded on
// OSPay's StartSettlementScheduler/StartOrderTimeoutScheduler ticker idiom,
// with a non-reentrant atomic.Bool guard layered on top (the teacher's
// schedulers have no such guard; the spec requires one since a single
// sweep may legitimately outlast its own interval).
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/engine"
)

// Sweeper periodically scans active work orders and drives their deadline
// transitions through the engine.
type Sweeper struct {
	engine   *engine.Engine
	interval time.Duration
	log      *zap.Logger

	running atomic.Bool
}

func New(eng *engine.Engine, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{engine: eng, interval: interval, log: log}
}

// Run blocks ticking until ctx is canceled. Overlapping ticks are skipped,
// not queued: a sweep that exceeds the interval simply delays the next one.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	active, err := s.engine.ActiveWorkOrders(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Warn("sweeper: listing active work orders failed", zap.Error(err))
		}
		return
	}

	for _, wo := range active {
		if err := s.sweepOne(ctx, wo); err != nil && s.log != nil {
			s.log.Warn("sweeper: sweep failed", zap.String("work_order_id", wo.Id), zap.Error(err))
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, wo domain.WorkOrder) error {
	switch wo.Status {
	case domain.StatusBidding:
		return s.engine.SweepBidding(ctx, wo.Id)
	case domain.StatusSelected:
		return s.engine.SweepDelivery(ctx, wo.Id)
	case domain.StatusPassedPendingChallenge:
		return s.engine.SweepChallengeSettle(ctx, wo.Id)
	case domain.StatusChallenged:
		return s.engine.SweepPatchTimeout(ctx, wo.Id)
	default:
		return nil
	}
}

package paychan

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/money"
)

// Mock is a pure in-memory Adapter, built the way OSPay builds its
// synthetic deposit addresses and ledger rows: uuid.New() ids, no
// persistence beyond process lifetime. Suitable for ASSET_MODE=mock.
type Mock struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionHandle // workOrderId -> state
	seenTx   map[string]TransferResult       // workOrderId+eventId -> prior result
}

func NewMock() *Mock {
	return &Mock{
		sessions: make(map[string]domain.SessionHandle),
		seenTx:   make(map[string]TransferResult),
	}
}

func (m *Mock) CreateSession(_ context.Context, workOrderId string, allowanceTotal money.Amount, requester string, solvers []string) (domain.SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[workOrderId]; ok {
		return existing, nil
	}

	participants := append([]string{requester}, solvers...)
	allocations := make([]domain.Allocation, 0, len(participants))
	for i, p := range participants {
		amount := money.Zero()
		if i == 0 {
			amount = allowanceTotal
		}
		allocations = append(allocations, domain.Allocation{Participant: p, Amount: amount.String()})
	}

	state := domain.SessionHandle{
		SessionId:      "mocksess_" + uuid.New().String(),
		AllowanceTotal: allowanceTotal.String(),
		Participants:   participants,
		Allocations:    allocations,
		SessionVersion: 0,
	}
	m.sessions[workOrderId] = state
	return state, nil
}

func (m *Mock) Transfer(_ context.Context, workOrderId string, event TransferEvent, state domain.SessionHandle, allowanceTotal money.Amount) (TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dedupKey := workOrderId + ":" + event.Id
	if prior, ok := m.seenTx[dedupKey]; ok {
		return prior, nil
	}

	if len(state.Participants) == 0 {
		return TransferResult{}, apierr.Adapter(errNoSession)
	}

	next := state
	next.Allocations = append([]domain.Allocation(nil), state.Allocations...)
	next.SessionVersion = state.SessionVersion + 1

	debitIdx := 0
	current, err := money.Parse(next.Allocations[debitIdx].Amount)
	if err != nil {
		return TransferResult{}, apierr.Adapter(err)
	}
	debited := current.Sub(event.Amount)
	if debited.IsNegative() {
		return TransferResult{}, apierr.InsufficientAllowance("mock adapter: transfer would debit participant below zero")
	}
	next.Allocations[debitIdx].Amount = debited.String()

	creditIdx := -1
	for i, p := range next.Participants {
		if p == event.ToAddress {
			creditIdx = i
			break
		}
	}
	if creditIdx == -1 {
		next.Participants = append(next.Participants, event.ToAddress)
		next.Allocations = append(next.Allocations, domain.Allocation{Participant: event.ToAddress, Amount: event.Amount.String()})
	} else {
		creditCurrent, err := money.Parse(next.Allocations[creditIdx].Amount)
		if err != nil {
			return TransferResult{}, apierr.Adapter(err)
		}
		next.Allocations[creditIdx].Amount = creditCurrent.Add(event.Amount).String()
	}

	result := TransferResult{TransferId: "mocktx_" + uuid.New().String(), State: next}
	m.sessions[workOrderId] = next
	m.seenTx[dedupKey] = result
	return result, nil
}

func (m *Mock) Close(_ context.Context, workOrderId string, state domain.SessionHandle) (CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, workOrderId)
	_ = state
	return CloseResult{SettlementTxId: "mocksettle_" + uuid.New().String()}, nil
}

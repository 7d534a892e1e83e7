// Package paychan implements the PaymentChannelAdapter of spec §4.5: a
// narrow capability interface for session creation, per-event transfer and
// session close, with two implementations behind it (mock, real) so the
// engine depends only on the contract.
package paychan

import (
	"context"
	"errors"

	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/money"
)

var errNoSession = errors.New("paychan: transfer requires an existing session")

// TransferEvent describes one debit from participants[0] to ToAddress.
type TransferEvent struct {
	Id        string
	ToAddress string
	Amount    money.Amount
}

// TransferResult is returned by a successful Transfer.
type TransferResult struct {
	TransferId string
	State      domain.SessionHandle
}

// CloseResult is returned by a successful Close.
type CloseResult struct {
	SettlementTxId string
}

// Adapter abstracts session creation, state-submit and close. Two
// interchangeable variants (mock, real) satisfy this contract; the engine
// depends only on it.
type Adapter interface {
	// CreateSession opens a session with allowanceTotal available for
	// transfer out of requester, with solvers pre-registered as
	// participants (at zero allocation).
	CreateSession(ctx context.Context, workOrderId string, allowanceTotal money.Amount, requester string, solvers []string) (domain.SessionHandle, error)

	// Transfer debits event.Amount from state.Participants[0] and credits
	// event.ToAddress, returning the bumped state. Mock rejects a state with
	// no participants (errNoSession); Real forwards state to the session
	// service unchecked. Idempotent per (workOrderId, event.Id).
	Transfer(ctx context.Context, workOrderId string, event TransferEvent, state domain.SessionHandle, allowanceTotal money.Amount) (TransferResult, error)

	// Close finalizes the session on or off chain and returns a settlement reference.
	Close(ctx context.Context, workOrderId string, state domain.SessionHandle) (CloseResult, error)
}

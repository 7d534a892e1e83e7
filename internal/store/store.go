// Package store implements the Store of spec §4.1: typed single-row
// operations over an embedded database, grounded on OSPay's pkg/db (same
// driver, same WAL/pragma tuning, same "whole struct marshaled into the
// row" idiom for nested fields) generalized from OSPay's flat order rows to
// this system's richer work-order aggregate.
package store

import (
	"context"

	"github.com/oxzoid/hookmarket/internal/domain"
)

// Store is the durable persistence surface spec §4.1 names. All mutations
// are single-row and durable before returning.
type Store interface {
	InsertWorkOrder(ctx context.Context, wo domain.WorkOrder) error
	UpdateWorkOrder(ctx context.Context, wo domain.WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (domain.WorkOrder, error)
	ListWorkOrders(ctx context.Context, statusFilter string) ([]domain.WorkOrder, error)

	InsertQuote(ctx context.Context, q domain.Quote) error
	ListQuotes(ctx context.Context, workOrderId string) ([]domain.Quote, error)

	InsertSubmission(ctx context.Context, s domain.Submission) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
	ListSubmissions(ctx context.Context, workOrderId string) ([]domain.Submission, error)

	InsertVerificationReport(ctx context.Context, r domain.VerificationReport) error
	GetVerificationReport(ctx context.Context, id string) (domain.VerificationReport, error)
	GetVerificationReportBySubmission(ctx context.Context, submissionId string) (domain.VerificationReport, error)

	InsertPaymentEvent(ctx context.Context, e domain.PaymentEvent) error
	ListPaymentEvents(ctx context.Context, workOrderId string) ([]domain.PaymentEvent, error)

	UpsertSolverStats(ctx context.Context, s domain.SolverStats) error
	GetSolverStats(ctx context.Context, address string) (domain.SolverStats, error)
	ListSolverStats(ctx context.Context) ([]domain.SolverStats, error)

	Close() error
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleWorkOrder(id string) domain.WorkOrder {
	return domain.WorkOrder{
		Id:             id,
		CreatedAt:      time.Now().UTC(),
		Title:          "title",
		TemplateType:   "template",
		Bounty:         domain.Bounty{Currency: "USD", Amount: "100.0000"},
		RequesterAddr:  "0xRequester",
		Status:         domain.StatusBidding,
		Challenge:      domain.Challenge{Status: domain.ChallengeNone},
		PayoutSchedule: domain.DefaultPayoutSchedule,
	}
}

func TestWorkOrderInsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wo := sampleWorkOrder("wo_1")
	require.NoError(t, s.InsertWorkOrder(ctx, wo))

	got, err := s.GetWorkOrder(ctx, "wo_1")
	require.NoError(t, err)
	require.Equal(t, wo.Title, got.Title)
	require.Equal(t, wo.Status, got.Status)
	require.Equal(t, wo.Bounty, got.Bounty)
	require.Len(t, got.PayoutSchedule, len(domain.DefaultPayoutSchedule))
}

func TestWorkOrderUpdatePersistsSettlementAndExpiredReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wo := sampleWorkOrder("wo_1")
	require.NoError(t, s.InsertWorkOrder(ctx, wo))

	wo.Status = domain.StatusExpired
	wo.ExpiredReason = "no_quotes"
	wo.SettlementTxId = "mocksettle_1"
	require.NoError(t, s.UpdateWorkOrder(ctx, wo))

	got, err := s.GetWorkOrder(ctx, "wo_1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, got.Status)
	require.Equal(t, "no_quotes", got.ExpiredReason)
	require.Equal(t, "mocksettle_1", got.SettlementTxId)
}

func TestUpdateWorkOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateWorkOrder(ctx, sampleWorkOrder("missing"))
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindNotFound, apiErr.Kind)
}

func TestGetWorkOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWorkOrder(context.Background(), "missing")
	require.Error(t, err)
}

func TestListWorkOrdersFiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleWorkOrder("wo_a")
	b := sampleWorkOrder("wo_b")
	b.Status = domain.StatusSelected
	require.NoError(t, s.InsertWorkOrder(ctx, a))
	require.NoError(t, s.InsertWorkOrder(ctx, b))

	bidding, err := s.ListWorkOrders(ctx, string(domain.StatusBidding))
	require.NoError(t, err)
	require.Len(t, bidding, 1)
	require.Equal(t, "wo_a", bidding[0].Id)

	all, err := s.ListWorkOrders(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestQuoteInsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertWorkOrder(ctx, sampleWorkOrder("wo_1")))

	q := domain.Quote{
		Id: "q_1", WorkOrderId: "wo_1", SolverAddr: "0xSolver", Price: "9.0000",
		EtaMinutes: 30, ValidUntil: time.Now().Add(time.Hour).UTC(), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertQuote(ctx, q))

	quotes, err := s.ListQuotes(ctx, "wo_1")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "0xSolver", quotes[0].SolverAddr)
}

func TestDuplicateQuoteIdRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertWorkOrder(ctx, sampleWorkOrder("wo_1")))

	q := domain.Quote{Id: "q_1", WorkOrderId: "wo_1", SolverAddr: "0xSolver", Price: "9.0000", CreatedAt: time.Now().UTC(), ValidUntil: time.Now().UTC()}
	require.NoError(t, s.InsertQuote(ctx, q))
	err := s.InsertQuote(ctx, q)
	require.Error(t, err)
}

func TestSubmissionAndVerificationReportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertWorkOrder(ctx, sampleWorkOrder("wo_1")))

	sub := domain.Submission{
		Id: "sub_1", WorkOrderId: "wo_1", SolverAddr: "0xSolver",
		Artifact:  domain.Artifact{Kind: domain.ArtifactGitCommit, RepoUrl: "repo", CommitSha: "sha", ArtifactHash: "hash"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertSubmission(ctx, sub))

	got, err := s.GetSubmission(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, sub.Artifact, got.Artifact)

	report := domain.VerificationReport{
		Id: "rep_1", SubmissionId: "sub_1", Status: domain.ReportPass,
		Metrics: map[string]any{"coverage": 0.9}, ProducedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertVerificationReport(ctx, report))

	gotReport, err := s.GetVerificationReportBySubmission(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, domain.ReportPass, gotReport.Status)
}

func TestPaymentEventInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertWorkOrder(ctx, sampleWorkOrder("wo_1")))

	evt := domain.PaymentEvent{
		Id: "wo_1:QUOTE_REWARD:0xSolver", WorkOrderId: "wo_1", Type: domain.PaymentQuoteReward,
		Destination: "0xSolver", Amount: "0.0100", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertPaymentEvent(ctx, evt))
	require.NoError(t, s.InsertPaymentEvent(ctx, evt)) // duplicate id, idempotent per spec

	events, err := s.ListPaymentEvents(ctx, "wo_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestSolverStatsUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetSolverStats(ctx, "0xSolver")
	require.NoError(t, err)
	require.Equal(t, int64(0), st.QuotesSubmitted)

	st.QuotesSubmitted = 1
	require.NoError(t, s.UpsertSolverStats(ctx, st))

	st.QuotesSubmitted = 2
	require.NoError(t, s.UpsertSolverStats(ctx, st))

	got, err := s.GetSolverStats(ctx, "0xSOLVER") // address is lowercased
	require.NoError(t, err)
	require.Equal(t, int64(2), got.QuotesSubmitted)

	all, err := s.ListSolverStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
)

// SQLiteStore is a Store backed by an embedded modernc.org/sqlite database,
// following OSPay's pkg/db.Open pragma tuning (WAL, synchronous=NORMAL,
// busy_timeout) and single-process connection pool sizing.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// the pragmas OSPay's pkg/db.Open uses for a single-process embedded
// workload: WAL journaling so readers never block the writer, NORMAL
// synchronous durability, and a busy timeout so concurrent callers queue
// instead of failing with SQLITE_BUSY.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS work_orders (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			title TEXT NOT NULL,
			template_type TEXT NOT NULL,
			params_json TEXT NOT NULL,
			bounty_currency TEXT NOT NULL,
			bounty_amount TEXT NOT NULL,
			requester_addr TEXT NOT NULL,
			status TEXT NOT NULL,
			deadlines_json TEXT NOT NULL,
			selection_json TEXT NOT NULL,
			challenge_json TEXT NOT NULL,
			session_json TEXT NOT NULL,
			payout_schedule_json TEXT NOT NULL,
			report_id TEXT NOT NULL DEFAULT '',
			settlement_tx_id TEXT NOT NULL DEFAULT '',
			expired_reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status)`,

		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			work_order_id TEXT NOT NULL,
			solver_addr TEXT NOT NULL,
			price TEXT NOT NULL,
			eta_minutes INTEGER NOT NULL,
			valid_until TEXT NOT NULL,
			signature TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_work_order ON quotes(work_order_id)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			work_order_id TEXT NOT NULL,
			solver_addr TEXT NOT NULL,
			artifact_json TEXT NOT NULL,
			signature TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_work_order ON submissions(work_order_id)`,

		`CREATE TABLE IF NOT EXISTS verification_reports (
			id TEXT PRIMARY KEY,
			submission_id TEXT NOT NULL,
			status TEXT NOT NULL,
			logs TEXT NOT NULL,
			proof_json TEXT NOT NULL,
			metrics_json TEXT NOT NULL,
			produced_at TEXT NOT NULL,
			artifact_hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_submission ON verification_reports(submission_id)`,

		`CREATE TABLE IF NOT EXISTS payment_events (
			id TEXT PRIMARY KEY,
			work_order_id TEXT NOT NULL,
			type TEXT NOT NULL,
			destination TEXT NOT NULL,
			amount TEXT NOT NULL,
			milestone_key TEXT NOT NULL DEFAULT '',
			transfer_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_work_order ON payment_events(work_order_id)`,

		`CREATE TABLE IF NOT EXISTS solver_stats (
			address TEXT PRIMARY KEY,
			quotes_submitted INTEGER NOT NULL DEFAULT 0,
			quotes_won INTEGER NOT NULL DEFAULT 0,
			deliveries_succeeded INTEGER NOT NULL DEFAULT 0,
			deliveries_failed INTEGER NOT NULL DEFAULT 0,
			on_time_deliveries INTEGER NOT NULL DEFAULT 0,
			total_eta_minutes INTEGER NOT NULL DEFAULT 0,
			total_actual_minutes INTEGER NOT NULL DEFAULT 0,
			challenges_against INTEGER NOT NULL DEFAULT 0,
			challenges_won INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLiteStore) InsertWorkOrder(ctx context.Context, wo domain.WorkOrder) error {
	return s.upsertWorkOrder(ctx, wo, false)
}

func (s *SQLiteStore) UpdateWorkOrder(ctx context.Context, wo domain.WorkOrder) error {
	return s.upsertWorkOrder(ctx, wo, true)
}

func (s *SQLiteStore) upsertWorkOrder(ctx context.Context, wo domain.WorkOrder, isUpdate bool) error {
	params, err := marshalJSON(wo.Params)
	if err != nil {
		return apierr.Storage(err)
	}
	deadlines, err := marshalJSON(wo.Deadlines)
	if err != nil {
		return apierr.Storage(err)
	}
	selection, err := marshalJSON(wo.Selection)
	if err != nil {
		return apierr.Storage(err)
	}
	challenge, err := marshalJSON(wo.Challenge)
	if err != nil {
		return apierr.Storage(err)
	}
	sessionJSON, err := marshalJSON(wo.Session)
	if err != nil {
		return apierr.Storage(err)
	}
	payout, err := marshalJSON(wo.PayoutSchedule)
	if err != nil {
		return apierr.Storage(err)
	}

	if isUpdate {
		res, err := s.db.ExecContext(ctx, `UPDATE work_orders SET
			title=?, template_type=?, params_json=?, bounty_currency=?, bounty_amount=?,
			requester_addr=?, status=?, deadlines_json=?, selection_json=?, challenge_json=?,
			session_json=?, payout_schedule_json=?, report_id=?, settlement_tx_id=?, expired_reason=?
			WHERE id=?`,
			wo.Title, wo.TemplateType, params, wo.Bounty.Currency, wo.Bounty.Amount,
			wo.RequesterAddr, string(wo.Status), deadlines, selection, challenge,
			sessionJSON, payout, wo.ReportId, wo.SettlementTxId, wo.ExpiredReason, wo.Id)
		if err != nil {
			return apierr.Storage(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apierr.Storage(err)
		}
		if n == 0 {
			return apierr.NotFound(fmt.Sprintf("work order %s not found", wo.Id))
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO work_orders
		(id, created_at, title, template_type, params_json, bounty_currency, bounty_amount,
		 requester_addr, status, deadlines_json, selection_json, challenge_json, session_json,
		 payout_schedule_json, report_id, settlement_tx_id, expired_reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		wo.Id, wo.CreatedAt.UTC().Format(time.RFC3339Nano), wo.Title, wo.TemplateType, params,
		wo.Bounty.Currency, wo.Bounty.Amount, wo.RequesterAddr, string(wo.Status), deadlines,
		selection, challenge, sessionJSON, payout, wo.ReportId, wo.SettlementTxId, wo.ExpiredReason)
	if err != nil {
		return apierr.Storage(err)
	}
	return nil
}

func (s *SQLiteStore) GetWorkOrder(ctx context.Context, id string) (domain.WorkOrder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, title, template_type, params_json,
		bounty_currency, bounty_amount, requester_addr, status, deadlines_json, selection_json,
		challenge_json, session_json, payout_schedule_json, report_id, settlement_tx_id, expired_reason
		FROM work_orders WHERE id=?`, id)
	wo, err := scanWorkOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkOrder{}, apierr.NotFound(fmt.Sprintf("work order %s not found", id))
	}
	if err != nil {
		return domain.WorkOrder{}, apierr.Storage(err)
	}
	return wo, nil
}

func (s *SQLiteStore) ListWorkOrders(ctx context.Context, statusFilter string) ([]domain.WorkOrder, error) {
	query := `SELECT id, created_at, title, template_type, params_json,
		bounty_currency, bounty_amount, requester_addr, status, deadlines_json, selection_json,
		challenge_json, session_json, payout_schedule_json, report_id, settlement_tx_id, expired_reason
		FROM work_orders`
	args := []any{}
	if statusFilter != "" {
		query += " WHERE status=?"
		args = append(args, statusFilter)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	defer rows.Close()

	var out []domain.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows.Scan)
		if err != nil {
			return nil, apierr.Storage(err)
		}
		out = append(out, wo)
	}
	return out, apierr.Storage(rows.Err())
}

type scanFunc func(dest ...any) error

func scanWorkOrder(scan scanFunc) (domain.WorkOrder, error) {
	var wo domain.WorkOrder
	var createdAt string
	var params, deadlines, selection, challenge, sessionJSON, payout string
	var status string

	err := scan(&wo.Id, &createdAt, &wo.Title, &wo.TemplateType, &params,
		&wo.Bounty.Currency, &wo.Bounty.Amount, &wo.RequesterAddr, &status, &deadlines,
		&selection, &challenge, &sessionJSON, &payout, &wo.ReportId, &wo.SettlementTxId, &wo.ExpiredReason)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	wo.Status = domain.WorkOrderStatus(status)
	wo.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(params), &wo.Params); err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(deadlines), &wo.Deadlines); err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(selection), &wo.Selection); err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(challenge), &wo.Challenge); err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(sessionJSON), &wo.Session); err != nil {
		return domain.WorkOrder{}, err
	}
	if err := json.Unmarshal([]byte(payout), &wo.PayoutSchedule); err != nil {
		return domain.WorkOrder{}, err
	}
	return wo, nil
}

func (s *SQLiteStore) InsertQuote(ctx context.Context, q domain.Quote) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO quotes
		(id, work_order_id, solver_addr, price, eta_minutes, valid_until, signature, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		q.Id, q.WorkOrderId, q.SolverAddr, q.Price, q.EtaMinutes,
		q.ValidUntil.UTC().Format(time.RFC3339Nano), q.Signature, q.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil && isUniqueConstraintError(err) {
		return apierr.Validationf("quote %s already exists", q.Id)
	}
	return apierr.Storage(err)
}

func (s *SQLiteStore) ListQuotes(ctx context.Context, workOrderId string) ([]domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, work_order_id, solver_addr, price, eta_minutes,
		valid_until, signature, created_at FROM quotes WHERE work_order_id=? ORDER BY created_at ASC`, workOrderId)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	defer rows.Close()

	var out []domain.Quote
	for rows.Next() {
		var q domain.Quote
		var validUntil, createdAt string
		if err := rows.Scan(&q.Id, &q.WorkOrderId, &q.SolverAddr, &q.Price, &q.EtaMinutes,
			&validUntil, &q.Signature, &createdAt); err != nil {
			return nil, apierr.Storage(err)
		}
		if q.ValidUntil, err = time.Parse(time.RFC3339Nano, validUntil); err != nil {
			return nil, apierr.Storage(err)
		}
		if q.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, apierr.Storage(err)
		}
		out = append(out, q)
	}
	return out, apierr.Storage(rows.Err())
}

func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub domain.Submission) error {
	artifact, err := marshalJSON(sub.Artifact)
	if err != nil {
		return apierr.Storage(err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions
		(id, work_order_id, solver_addr, artifact_json, signature, created_at)
		VALUES (?,?,?,?,?,?)`,
		sub.Id, sub.WorkOrderId, sub.SolverAddr, artifact, sub.Signature, sub.CreatedAt.UTC().Format(time.RFC3339Nano))
	return apierr.Storage(err)
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, work_order_id, solver_addr, artifact_json, signature, created_at
		FROM submissions WHERE id=?`, id)
	sub, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, apierr.NotFound(fmt.Sprintf("submission %s not found", id))
	}
	if err != nil {
		return domain.Submission{}, apierr.Storage(err)
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, workOrderId string) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, work_order_id, solver_addr, artifact_json, signature, created_at
		FROM submissions WHERE work_order_id=? ORDER BY created_at ASC`, workOrderId)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, apierr.Storage(err)
		}
		out = append(out, sub)
	}
	return out, apierr.Storage(rows.Err())
}

func scanSubmission(scan scanFunc) (domain.Submission, error) {
	var sub domain.Submission
	var artifact, createdAt string
	if err := scan(&sub.Id, &sub.WorkOrderId, &sub.SolverAddr, &artifact, &sub.Signature, &createdAt); err != nil {
		return domain.Submission{}, err
	}
	if err := json.Unmarshal([]byte(artifact), &sub.Artifact); err != nil {
		return domain.Submission{}, err
	}
	var err error
	sub.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	return sub, err
}

func (s *SQLiteStore) InsertVerificationReport(ctx context.Context, r domain.VerificationReport) error {
	proof, err := marshalJSON(r.Proof)
	if err != nil {
		return apierr.Storage(err)
	}
	metrics, err := marshalJSON(r.Metrics)
	if err != nil {
		return apierr.Storage(err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO verification_reports
		(id, submission_id, status, logs, proof_json, metrics_json, produced_at, artifact_hash)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.Id, r.SubmissionId, string(r.Status), r.Logs, proof, metrics,
		r.ProducedAt.UTC().Format(time.RFC3339Nano), r.ArtifactHash)
	return apierr.Storage(err)
}

func (s *SQLiteStore) GetVerificationReport(ctx context.Context, id string) (domain.VerificationReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, submission_id, status, logs, proof_json, metrics_json,
		produced_at, artifact_hash FROM verification_reports WHERE id=?`, id)
	return scanReport(row.Scan, fmt.Sprintf("verification report %s not found", id))
}

func (s *SQLiteStore) GetVerificationReportBySubmission(ctx context.Context, submissionId string) (domain.VerificationReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, submission_id, status, logs, proof_json, metrics_json,
		produced_at, artifact_hash FROM verification_reports WHERE submission_id=? ORDER BY produced_at DESC LIMIT 1`, submissionId)
	return scanReport(row.Scan, fmt.Sprintf("no verification report for submission %s", submissionId))
}

func scanReport(scan scanFunc, notFoundMsg string) (domain.VerificationReport, error) {
	var r domain.VerificationReport
	var status, proof, metrics, producedAt string
	err := scan(&r.Id, &r.SubmissionId, &status, &r.Logs, &proof, &metrics, &producedAt, &r.ArtifactHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VerificationReport{}, apierr.NotFound(notFoundMsg)
	}
	if err != nil {
		return domain.VerificationReport{}, apierr.Storage(err)
	}
	r.Status = domain.ReportStatus(status)
	if err := json.Unmarshal([]byte(proof), &r.Proof); err != nil {
		return domain.VerificationReport{}, apierr.Storage(err)
	}
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return domain.VerificationReport{}, apierr.Storage(err)
	}
	r.ProducedAt, err = time.Parse(time.RFC3339Nano, producedAt)
	if err != nil {
		return domain.VerificationReport{}, apierr.Storage(err)
	}
	return r, nil
}

func (s *SQLiteStore) InsertPaymentEvent(ctx context.Context, e domain.PaymentEvent) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO payment_events
		(id, work_order_id, type, destination, amount, milestone_key, transfer_id, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.Id, e.WorkOrderId, string(e.Type), e.Destination, e.Amount, e.MilestoneKey, e.TransferId,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil && isUniqueConstraintError(err) {
		return nil // idempotent re-insert of the same payment event id
	}
	return apierr.Storage(err)
}

func (s *SQLiteStore) ListPaymentEvents(ctx context.Context, workOrderId string) ([]domain.PaymentEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, work_order_id, type, destination, amount,
		milestone_key, transfer_id, created_at FROM payment_events WHERE work_order_id=? ORDER BY created_at ASC`, workOrderId)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	defer rows.Close()

	var out []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		var typ, createdAt string
		if err := rows.Scan(&e.Id, &e.WorkOrderId, &typ, &e.Destination, &e.Amount,
			&e.MilestoneKey, &e.TransferId, &createdAt); err != nil {
			return nil, apierr.Storage(err)
		}
		e.Type = domain.PaymentEventType(typ)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, apierr.Storage(err)
		}
		out = append(out, e)
	}
	return out, apierr.Storage(rows.Err())
}

func (s *SQLiteStore) UpsertSolverStats(ctx context.Context, st domain.SolverStats) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO solver_stats
		(address, quotes_submitted, quotes_won, deliveries_succeeded, deliveries_failed,
		 on_time_deliveries, total_eta_minutes, total_actual_minutes, challenges_against, challenges_won)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(address) DO UPDATE SET
			quotes_submitted=excluded.quotes_submitted,
			quotes_won=excluded.quotes_won,
			deliveries_succeeded=excluded.deliveries_succeeded,
			deliveries_failed=excluded.deliveries_failed,
			on_time_deliveries=excluded.on_time_deliveries,
			total_eta_minutes=excluded.total_eta_minutes,
			total_actual_minutes=excluded.total_actual_minutes,
			challenges_against=excluded.challenges_against,
			challenges_won=excluded.challenges_won`,
		strings.ToLower(st.Address), st.QuotesSubmitted, st.QuotesWon, st.DeliveriesSucceeded,
		st.DeliveriesFailed, st.OnTimeDeliveries, st.TotalEtaMinutes, st.TotalActualMinutes,
		st.ChallengesAgainst, st.ChallengesWon)
	return apierr.Storage(err)
}

func (s *SQLiteStore) GetSolverStats(ctx context.Context, address string) (domain.SolverStats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT address, quotes_submitted, quotes_won, deliveries_succeeded,
		deliveries_failed, on_time_deliveries, total_eta_minutes, total_actual_minutes,
		challenges_against, challenges_won FROM solver_stats WHERE address=?`, strings.ToLower(address))
	var st domain.SolverStats
	err := row.Scan(&st.Address, &st.QuotesSubmitted, &st.QuotesWon, &st.DeliveriesSucceeded,
		&st.DeliveriesFailed, &st.OnTimeDeliveries, &st.TotalEtaMinutes, &st.TotalActualMinutes,
		&st.ChallengesAgainst, &st.ChallengesWon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SolverStats{Address: strings.ToLower(address)}, nil
	}
	if err != nil {
		return domain.SolverStats{}, apierr.Storage(err)
	}
	return st, nil
}

func (s *SQLiteStore) ListSolverStats(ctx context.Context) ([]domain.SolverStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, quotes_submitted, quotes_won, deliveries_succeeded,
		deliveries_failed, on_time_deliveries, total_eta_minutes, total_actual_minutes,
		challenges_against, challenges_won FROM solver_stats ORDER BY address ASC`)
	if err != nil {
		return nil, apierr.Storage(err)
	}
	defer rows.Close()

	var out []domain.SolverStats
	for rows.Next() {
		var st domain.SolverStats
		if err := rows.Scan(&st.Address, &st.QuotesSubmitted, &st.QuotesWon, &st.DeliveriesSucceeded,
			&st.DeliveriesFailed, &st.OnTimeDeliveries, &st.TotalEtaMinutes, &st.TotalActualMinutes,
			&st.ChallengesAgainst, &st.ChallengesWon); err != nil {
			return nil, apierr.Storage(err)
		}
		out = append(out, st)
	}
	return out, apierr.Storage(rows.Err())
}

// isUniqueConstraintError matches modernc.org/sqlite's constraint error
// text the way OSPay's sqliteIsUniqueConstraintError does.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	_ "github.com/lib/pq"

	"loan-underwriting-orchestrator/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle; tests pass a sqlmock DB.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterApplication is idempotent: a re-dispatched call leaves the first row intact.
func (s *PostgresStore) RegisterApplication(ctx context.Context, workflowID string, app domain.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (workflow_id, applicant_id, name, amount, income, expenses, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id) DO NOTHING
	`, workflowID, app.ApplicantID, app.Name, app.Amount, app.MonthlyIncome, app.MonthlyExpenses, domain.StateInitiated)
	return err
}

func (s *PostgresStore) QueueReview(ctx context.Context, workflowID string, app domain.Application, suggested domain.SuggestedDecision) error {
	payload, err := json.Marshal(suggested)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_queue (workflow_id, applicant_id, suggested_decision, confidence, suggested_json, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, 'PENDING')
		ON CONFLICT (workflow_id) DO NOTHING
	`, workflowID, app.ApplicantID, suggested.Decision, suggested.Confidence, string(payload))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE applications
		SET state = $2, suggested_decision = $3, suggested_json = $4::jsonb, updated_at = NOW()
		WHERE workflow_id = $1 AND state NOT IN ('FINALIZED', 'ABORTED')
	`, workflowID, domain.StateAwaitingReview, suggested.Decision, string(payload))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) SaveFinalDecision(ctx context.Context, rec domain.FinalRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE applications
		SET state = $2, final_decision = $3, final_json = $4::jsonb, updated_at = NOW()
		WHERE workflow_id = $1
	`, rec.WorkflowID, domain.StateFinalized, rec.FinalDecision, string(payload))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE review_queue
		SET status = 'RESOLVED', resolution = $2, updated_at = NOW()
		WHERE workflow_id = $1
	`, rec.WorkflowID, rec.FinalDecision)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) MarkAborted(ctx context.Context, workflowID string, info domain.AbortInfo) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET state = $2, abort_stage = $3, abort_kind = $4, abort_cause = $5, updated_at = NOW()
		WHERE workflow_id = $1
	`, workflowID, domain.StateAborted, info.Stage, info.Kind, info.Cause)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, workflowID string, state domain.State, detail any) error {
	var payload []byte
	switch v := detail.(type) {
	case nil:
		payload = []byte("{}")
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (workflow_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, workflowID, state, string(payload))
	return err
}

func (s *PostgresStore) ListApplications(ctx context.Context, limit int) ([]domain.ApplicationListItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id, applicant_id, name, amount, state,
		       COALESCE(suggested_decision, ''), COALESCE(final_decision, ''), created_at, updated_at
		FROM applications
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ApplicationListItem, 0)
	for rows.Next() {
		var item domain.ApplicationListItem
		if err := rows.Scan(
			&item.WorkflowID,
			&item.ApplicantID,
			&item.Name,
			&item.Amount,
			&item.State,
			&item.Suggested,
			&item.FinalDecision,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, workflowID string) (domain.ApplicationListItem, error) {
	var item domain.ApplicationListItem
	row := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, applicant_id, name, amount, state,
		       COALESCE(suggested_decision, ''), COALESCE(final_decision, ''), created_at, updated_at
		FROM applications
		WHERE workflow_id = $1
	`, workflowID)
	err := row.Scan(
		&item.WorkflowID,
		&item.ApplicantID,
		&item.Name,
		&item.Amount,
		&item.State,
		&item.Suggested,
		&item.FinalDecision,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ApplicationListItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ApplicationListItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListPendingReviews(ctx context.Context) ([]domain.ReviewQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.workflow_id, r.applicant_id, a.name, a.amount, r.suggested_decision, r.confidence,
		       COALESCE(r.suggested_json->>'reasoning', ''), r.created_at
		FROM review_queue r
		JOIN applications a ON a.workflow_id = r.workflow_id
		WHERE r.status = 'PENDING'
		ORDER BY r.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReviewQueueItem, 0)
	for rows.Next() {
		var item domain.ReviewQueueItem
		if err := rows.Scan(
			&item.WorkflowID,
			&item.ApplicantID,
			&item.Name,
			&item.Amount,
			&item.Suggested,
			&item.Confidence,
			&item.Rationale,
			&item.QueuedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Stats counts approvals and rejections on the suggested decision so that
// applications still awaiting review are included.
func (s *PostgresStore) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE state NOT IN ('FINALIZED', 'ABORTED')),
		       COUNT(*) FILTER (WHERE state = 'FINALIZED'),
		       COUNT(*) FILTER (WHERE state = 'ABORTED'),
		       COUNT(*) FILTER (WHERE suggested_decision = 'approve'),
		       COUNT(*) FILTER (WHERE suggested_decision = 'reject')
		FROM applications
	`)
	if err := row.Scan(&st.Total, &st.InFlight, &st.Finalized, &st.Aborted, &st.Approved, &st.Rejected); err != nil {
		return domain.Stats{}, fmt.Errorf("application stats: %w", err)
	}
	if st.Total > 0 {
		st.ApprovalRate = math.Round(float64(st.Approved)/float64(st.Total)*1000) / 10
	}
	return st, nil
}

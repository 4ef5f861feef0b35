package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// OpenCase records a charged-but-unordered checkout attempt and
// returns the case id. The case stays open until support resolves it.
func (s *Store) OpenCase(ctx context.Context, c *models.ReconciliationCase) (int64, error) {
	query := `
		INSERT INTO reconciliation_cases (session_id, order_ref, transaction_id, amount, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := s.db.GetContext(ctx, &id, query,
		c.SessionID, c.OrderRef, c.TransactionID, c.Amount, c.Reason, models.CaseStatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to open reconciliation case: %w", err)
	}
	return id, nil
}

// GetCase retrieves a reconciliation case by id.
func (s *Store) GetCase(ctx context.Context, id int64) (*models.ReconciliationCase, error) {
	var c models.ReconciliationCase
	err := s.db.GetContext(ctx, &c, "SELECT * FROM reconciliation_cases WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reconciliation case not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListOpenCases retrieves all unresolved cases, oldest first.
func (s *Store) ListOpenCases(ctx context.Context) ([]models.ReconciliationCase, error) {
	var cases []models.ReconciliationCase
	err := s.db.SelectContext(ctx, &cases,
		"SELECT * FROM reconciliation_cases WHERE status = $1 ORDER BY created_at",
		models.CaseStatusOpen)
	return cases, err
}

// ResolveCase marks a case resolved.
func (s *Store) ResolveCase(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE reconciliation_cases SET status = $1, resolved_at = NOW() WHERE id = $2 AND status = $3",
		models.CaseStatusResolved, id, models.CaseStatusOpen)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("reconciliation case not open: %d", id)
	}
	return nil
}

// CountOpenCases returns the number of unresolved cases.
func (s *Store) CountOpenCases(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM reconciliation_cases WHERE status = $1", models.CaseStatusOpen)
	return count, err
}

// RecordAttempt appends one router dispatch to the payment audit log.
func (s *Store) RecordAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (session_id, order_ref, method, outcome, transaction_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &a.ID, query,
		a.SessionID, a.OrderRef, a.Method, a.Outcome, a.TransactionID, a.Amount)
}

// GetAttemptsByOrderRef retrieves the audit trail for one checkout
// attempt.
func (s *Store) GetAttemptsByOrderRef(ctx context.Context, orderRef string) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := s.db.SelectContext(ctx, &attempts,
		"SELECT * FROM payment_attempts WHERE order_ref = $1 ORDER BY created_at", orderRef)
	return attempts, err
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

const (
	depositColumns = `id, user_id, amount, method, verification_code, status,
	verified_by, created_at, verified_at`
	withdrawalColumns = `id, user_id, amount, method, status, admin_note,
	resolved_by, requested_at, resolved_at`
)

// PaymentRepository persists deposits and withdrawals.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PaymentRepository instance.
func NewPaymentRepository(q Querier) *PaymentRepository {
	return &PaymentRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PaymentRepository) WithTx(tx pgx.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var d model.Deposit
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Amount,
		&d.Method,
		&d.VerificationCode,
		&d.Status,
		&d.VerifiedBy,
		&d.CreatedAt,
		&d.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Method,
		&w.Status,
		&w.AdminNote,
		&w.ResolvedBy,
		&w.RequestedAt,
		&w.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateDeposit inserts a pending deposit. Returns ErrDuplicate if the
// verification code collides with another pending deposit.
func (r *PaymentRepository) CreateDeposit(ctx context.Context, d *model.Deposit) (*model.Deposit, error) {
	const query = `
		INSERT INTO deposits (id, user_id, amount, method, verification_code, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING ` + depositColumns

	created, err := scanDeposit(r.q.QueryRow(ctx, query, d.ID, d.UserID, d.Amount, d.Method, d.VerificationCode))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	return created, nil
}

// GetDepositForUpdate locks a deposit by id.
func (r *PaymentRepository) GetDepositForUpdate(ctx context.Context, id uuid.UUID) (*model.Deposit, error) {
	const query = `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return d, nil
}

// GetPendingDepositByCodeForUpdate locks the user's pending deposit carrying
// code.
func (r *PaymentRepository) GetPendingDepositByCodeForUpdate(ctx context.Context, userID int64, code string) (*model.Deposit, error) {
	const query = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE user_id = $1 AND verification_code = $2 AND status = 'pending'
		FOR UPDATE
	`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, userID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit by code: %w", err)
	}

	return d, nil
}

// MarkDepositVerified moves a pending deposit to verified.
func (r *PaymentRepository) MarkDepositVerified(ctx context.Context, id uuid.UUID, verifiedBy int64, at time.Time) error {
	const query = `
		UPDATE deposits
		SET status = 'verified', verified_by = $2, verified_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, verifiedBy, at)
	if err != nil {
		return fmt.Errorf("failed to verify deposit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStaleState
	}

	return nil
}

// ListDeposits returns deposits in the given status, oldest first.
func (r *PaymentRepository) ListDeposits(ctx context.Context, status string, limit int) ([]*model.Deposit, error) {
	const query = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}

	return deposits, nil
}

// CreateWithdrawal inserts a pending withdrawal.
func (r *PaymentRepository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) (*model.Withdrawal, error) {
	const query = `
		INSERT INTO withdrawals (id, user_id, amount, method, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + withdrawalColumns

	created, err := scanWithdrawal(r.q.QueryRow(ctx, query, w.ID, w.UserID, w.Amount, w.Method))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return created, nil
}

// GetWithdrawal retrieves a withdrawal by id.
func (r *PaymentRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return w, nil
}

// GetWithdrawalForUpdate locks a withdrawal by id.
func (r *PaymentRepository) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal: %w", err)
	}

	return w, nil
}

// ResolveWithdrawal moves a pending withdrawal to approved or rejected.
func (r *PaymentRepository) ResolveWithdrawal(ctx context.Context, id uuid.UUID, status string, note *string, resolvedBy int64, at time.Time) error {
	const query = `
		UPDATE withdrawals
		SET status = $2, admin_note = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, status, note, resolvedBy, at)
	if err != nil {
		return fmt.Errorf("failed to resolve withdrawal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStaleState
	}

	return nil
}

// ListWithdrawals returns withdrawals in the given status, oldest first.
func (r *PaymentRepository) ListWithdrawals(ctx context.Context, status string, limit int) ([]*model.Withdrawal, error) {
	const query = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = $1
		ORDER BY requested_at, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}

	return withdrawals, nil
}

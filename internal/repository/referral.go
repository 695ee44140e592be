package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

// ReferralRepository persists referral links.
type ReferralRepository struct {
	q Querier
}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository(q Querier) *ReferralRepository {
	return &ReferralRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ReferralRepository) WithTx(tx pgx.Tx) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Create records that referrerID invited refereeID. A referee can only be
// referred once; the second call is a no-op and reports false.
func (r *ReferralRepository) Create(ctx context.Context, referrerID, refereeID int64) (bool, error) {
	const query = `
		INSERT INTO referrals (referrer_id, referee_id)
		VALUES ($1, $2)
		ON CONFLICT (referee_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, query, referrerID, refereeID)
	if err != nil {
		return false, fmt.Errorf("failed to create referral: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// CountByReferrer returns how many users referrerID has invited.
func (r *ReferralRepository) CountByReferrer(ctx context.Context, referrerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	return count, nil
}

// CountUncredited returns the referrer's referrals not yet paid out.
func (r *ReferralRepository) CountUncredited(ctx context.Context, referrerID int64) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM referrals
		WHERE referrer_id = $1 AND NOT bonus_credited
	`

	var count int
	if err := r.q.QueryRow(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count uncredited referrals: %w", err)
	}

	return count, nil
}

// MarkOldestCredited marks the n oldest uncredited referrals as credited and
// returns how many rows changed.
func (r *ReferralRepository) MarkOldestCredited(ctx context.Context, referrerID int64, n int) (int64, error) {
	const query = `
		UPDATE referrals
		SET bonus_credited = TRUE
		WHERE id IN (
			SELECT id
			FROM referrals
			WHERE referrer_id = $1 AND NOT bonus_credited
			ORDER BY created_at, id
			LIMIT $2
		)
	`

	result, err := r.q.Exec(ctx, query, referrerID, n)
	if err != nil {
		return 0, fmt.Errorf("failed to mark referrals credited: %w", err)
	}

	return result.RowsAffected(), nil
}

// GetUncreditedByRefereeForUpdate locks the referee's referral row if its
// bonus is still unpaid. Returns ErrReferralNotFound otherwise.
func (r *ReferralRepository) GetUncreditedByRefereeForUpdate(ctx context.Context, refereeID int64) (*model.Referral, error) {
	const query = `
		SELECT id, referrer_id, referee_id, bonus_credited, created_at
		FROM referrals
		WHERE referee_id = $1 AND NOT bonus_credited
		FOR UPDATE
	`

	var ref model.Referral
	err := r.q.QueryRow(ctx, query, refereeID).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.RefereeID,
		&ref.BonusCredited,
		&ref.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	return &ref, nil
}

// MarkCredited marks a single referral as paid.
func (r *ReferralRepository) MarkCredited(ctx context.Context, id int64) error {
	const query = `UPDATE referrals SET bonus_credited = TRUE WHERE id = $1 AND NOT bonus_credited`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark referral credited: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStaleState
	}

	return nil
}

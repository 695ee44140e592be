package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

// LedgerRepository persists wallet movements.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Create appends a ledger entry.
func (r *LedgerRepository) Create(ctx context.Context, userID, amount, balanceAfter int64, entryType, reference string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger_entries (user_id, amount, balance_after, type, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, user_id, amount, balance_after, type, reference, created_at
	`

	var entry model.LedgerEntry
	err := r.q.QueryRow(ctx, query, userID, amount, balanceAfter, entryType, reference).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.BalanceAfter,
		&entry.Type,
		&entry.Reference,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByUserID retrieves a user's entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, balance_after, type, reference, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.BalanceAfter,
			&entry.Type,
			&entry.Reference,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// DailyTotals returns per-user totals of entryType for the day containing
// date, largest first. Users with a zero or negative total are omitted.
func (r *LedgerRepository) DailyTotals(ctx context.Context, entryType string, date time.Time, limit int) ([]*model.DailyRank, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	const query = `
		SELECT l.user_id, u.username, COALESCE(SUM(l.amount), 0) AS total
		FROM ledger_entries l
		JOIN users u ON l.user_id = u.user_id
		WHERE l.type = $1
		  AND l.created_at >= $2
		  AND l.created_at < $3
		GROUP BY l.user_id, u.username
		HAVING SUM(l.amount) > 0
		ORDER BY total DESC, l.user_id
		LIMIT $4
	`

	rows, err := r.q.Query(ctx, query, entryType, startOfDay, endOfDay, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily totals: %w", err)
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		err := rows.Scan(
			&rank.UserID,
			&rank.Username,
			&rank.Total,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily totals: %w", err)
	}

	return ranks, nil
}

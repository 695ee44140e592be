package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

const userColumns = `user_id, username, name, phone, wallet, score, role, referral_code,
	referred_by, invalid_bingo_count, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Name,
		&user.Phone,
		&user.Wallet,
		&user.Score,
		&user.Role,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.InvalidBingoCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. The wallet starts at user.Wallet.
// Returns ErrUserExists, ErrUsernameTaken or ErrDuplicate (referral code
// clash) on unique violations.
func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	const query = `
		INSERT INTO users (user_id, username, name, phone, wallet, role, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	role := user.Role
	if role == "" {
		role = model.RoleUser
	}

	created, err := scanUser(r.q.QueryRow(ctx, query,
		user.UserID,
		user.Username,
		user.Name,
		user.Phone,
		user.Wallet,
		role,
		user.ReferralCode,
		user.ReferredBy,
	))
	if err != nil {
		switch uniqueConstraint(err) {
		case "":
			return nil, fmt.Errorf("failed to create user: %w", err)
		case "users_pkey":
			return nil, ErrUserExists
		case "users_username_key":
			return nil, ErrUsernameTaken
		default:
			return nil, ErrDuplicate
		}
	}

	return created, nil
}

// GetByID retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByIDForUpdate is GetByID with a row lock held until the transaction ends.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1 FOR UPDATE`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	return user, nil
}

// LockUsers locks the rows of every existing user in userIDs, lowest id
// first. Ids with no account are skipped.
func (r *UserRepository) LockUsers(ctx context.Context, userIDs ...int64) error {
	const query = `
		SELECT user_id FROM users
		WHERE user_id = ANY($1)
		ORDER BY user_id
		FOR UPDATE
	`

	if _, err := r.q.Exec(ctx, query, userIDs); err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}

	return nil
}

// Credit adds amount to the wallet and returns the new balance.
func (r *UserRepository) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	const query = `
		UPDATE users
		SET wallet = wallet + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING wallet
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}

	return balance, nil
}

// Debit subtracts amount only if the wallet covers it and returns the new
// balance. Returns ErrInsufficientFunds or ErrUserNotFound when no row
// qualifies.
func (r *UserRepository) Debit(ctx context.Context, userID int64, amount int64) (int64, error) {
	const query = `
		UPDATE users
		SET wallet = wallet - $2, updated_at = NOW()
		WHERE user_id = $1 AND wallet >= $2
		RETURNING wallet
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to debit wallet: %w", err)
	}

	exists, err := r.Exists(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientFunds
}

// IncrementScore adds one win to the user's score.
func (r *UserRepository) IncrementScore(ctx context.Context, userID int64) error {
	const query = `UPDATE users SET score = score + 1, updated_at = NOW() WHERE user_id = $1`

	result, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// IncrementInvalidBingo counts a rejected bingo claim against the user.
func (r *UserRepository) IncrementInvalidBingo(ctx context.Context, userID int64) error {
	const query = `
		UPDATE users
		SET invalid_bingo_count = invalid_bingo_count + 1, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment invalid bingo count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetRole updates the user's role.
func (r *UserRepository) SetRole(ctx context.Context, userID int64, role string) error {
	const query = `UPDATE users SET role = $2, updated_at = NOW() WHERE user_id = $1`

	result, err := r.q.Exec(ctx, query, userID, role)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete removes the user. Dependent rows are removed by cascade.
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	const query = `DELETE FROM users WHERE user_id = $1`

	result, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// HasOpenActivity reports whether the user has a pending withdrawal or sits
// on the roster of a waiting or started game.
func (r *UserRepository) HasOpenActivity(ctx context.Context, userID int64) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM withdrawals
			WHERE user_id = $1 AND status = 'pending'
		) OR EXISTS(
			SELECT 1 FROM game_players gp
			JOIN games g ON g.id = gp.game_id
			WHERE gp.user_id = $1 AND g.status IN ('waiting', 'started')
		)
	`

	var open bool
	if err := r.q.QueryRow(ctx, query, userID).Scan(&open); err != nil {
		return false, fmt.Errorf("failed to check open activity: %w", err)
	}

	return open, nil
}

// Leaderboard returns regular users ordered by score, then wallet.
func (r *UserRepository) Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, username, score, wallet
		FROM users
		WHERE role = 'user'
		ORDER BY score DESC, wallet DESC, user_id
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var entry model.LeaderboardEntry
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.Score,
			&entry.Wallet,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, nil
}

// Exists checks if a user with the given id exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	err := r.q.QueryRow(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// ListIDs returns every user id, oldest account first.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT user_id FROM users ORDER BY created_at, user_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return ids, nil
}

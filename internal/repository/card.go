package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

// CardRepository persists player cards.
type CardRepository struct {
	q Querier
}

// NewCardRepository creates a new CardRepository instance.
func NewCardRepository(q Querier) *CardRepository {
	return &CardRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *CardRepository) WithTx(tx pgx.Tx) *CardRepository {
	return &CardRepository{q: tx}
}

// CreatePlaceholder inserts an empty, unaccepted card for a new joiner.
func (r *CardRepository) CreatePlaceholder(ctx context.Context, gameID, userID int64) error {
	const query = `
		INSERT INTO player_cards (game_id, user_id, numbers, seed, accepted)
		VALUES ($1, $2, NULL, NULL, FALSE)
	`

	if _, err := r.q.Exec(ctx, query, gameID, userID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create card placeholder: %w", err)
	}

	return nil
}

// Get retrieves a player's card. Returns ErrCardNotFound if absent.
func (r *CardRepository) Get(ctx context.Context, gameID, userID int64) (*model.PlayerCard, error) {
	const query = `
		SELECT game_id, user_id, numbers, seed, accepted, created_at
		FROM player_cards
		WHERE game_id = $1 AND user_id = $2
	`

	var card model.PlayerCard
	err := r.q.QueryRow(ctx, query, gameID, userID).Scan(
		&card.GameID,
		&card.UserID,
		&card.Numbers,
		&card.Seed,
		&card.Accepted,
		&card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return &card, nil
}

// SetNumbers stores a generated card on an empty placeholder. It reports
// false if the card was already generated or no placeholder exists.
func (r *CardRepository) SetNumbers(ctx context.Context, gameID, userID int64, seed int, numbers []int) (bool, error) {
	const query = `
		UPDATE player_cards
		SET numbers = $3, seed = $4
		WHERE game_id = $1 AND user_id = $2 AND numbers IS NULL
	`

	result, err := r.q.Exec(ctx, query, gameID, userID, numbers, seed)
	if err != nil {
		return false, fmt.Errorf("failed to set card numbers: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Accept marks a generated card as accepted. It reports false if there is
// no generated card.
func (r *CardRepository) Accept(ctx context.Context, gameID, userID int64) (bool, error) {
	const query = `
		UPDATE player_cards
		SET accepted = TRUE
		WHERE game_id = $1 AND user_id = $2 AND numbers IS NOT NULL
	`

	result, err := r.q.Exec(ctx, query, gameID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to accept card: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Delete removes a player's card.
func (r *CardRepository) Delete(ctx context.Context, gameID, userID int64) error {
	const query = `DELETE FROM player_cards WHERE game_id = $1 AND user_id = $2`

	if _, err := r.q.Exec(ctx, query, gameID, userID); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}

	return nil
}

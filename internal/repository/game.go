package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/model"
)

const gameColumns = `id, bet_amount, status, countdown_start, start_time, end_time,
	winner_id, prize_amount, created_by, created_at`

// GameRepository persists games, their rosters and drawn numbers.
type GameRepository struct {
	q Querier
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(q Querier) *GameRepository {
	return &GameRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *GameRepository) WithTx(tx pgx.Tx) *GameRepository {
	return &GameRepository{q: tx}
}

func scanGame(row pgx.Row) (*model.Game, error) {
	var game model.Game
	err := row.Scan(
		&game.ID,
		&game.BetAmount,
		&game.Status,
		&game.CountdownStart,
		&game.StartTime,
		&game.EndTime,
		&game.WinnerID,
		&game.PrizeAmount,
		&game.CreatedBy,
		&game.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Create inserts a waiting game.
func (r *GameRepository) Create(ctx context.Context, betAmount, createdBy int64) (*model.Game, error) {
	const query = `
		INSERT INTO games (bet_amount, status, created_by)
		VALUES ($1, 'waiting', $2)
		RETURNING ` + gameColumns

	game, err := scanGame(r.q.QueryRow(ctx, query, betAmount, createdBy))
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return game, nil
}

// Get retrieves the game row without roster or numbers.
func (r *GameRepository) Get(ctx context.Context, gameID int64) (*model.Game, error) {
	const query = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.q.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// GetForUpdate locks the game row until the transaction ends.
func (r *GameRepository) GetForUpdate(ctx context.Context, gameID int64) (*model.Game, error) {
	const query = `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`

	game, err := scanGame(r.q.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}

	return game, nil
}

// Load fills game.Players and game.Drawn.
func (r *GameRepository) Load(ctx context.Context, game *model.Game) error {
	players, err := r.Players(ctx, game.ID)
	if err != nil {
		return err
	}
	drawn, err := r.Drawn(ctx, game.ID)
	if err != nil {
		return err
	}
	game.Players = players
	game.Drawn = drawn
	return nil
}

// Players returns the roster in join order.
func (r *GameRepository) Players(ctx context.Context, gameID int64) ([]int64, error) {
	const query = `SELECT user_id FROM game_players WHERE game_id = $1 ORDER BY seq`

	rows, err := r.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	defer rows.Close()

	players := []int64{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

// CountPlayers returns the roster size.
func (r *GameRepository) CountPlayers(ctx context.Context, gameID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM game_players WHERE game_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	return count, nil
}

// IsPlayer reports whether userID is on the roster.
func (r *GameRepository) IsPlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM game_players WHERE game_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.q.QueryRow(ctx, query, gameID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check player: %w", err)
	}

	return ok, nil
}

// AddPlayer appends userID to the roster. Returns ErrDuplicate if already
// present.
func (r *GameRepository) AddPlayer(ctx context.Context, gameID, userID int64) error {
	const query = `INSERT INTO game_players (game_id, user_id) VALUES ($1, $2)`

	if _, err := r.q.Exec(ctx, query, gameID, userID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add player: %w", err)
	}

	return nil
}

// RemovePlayer drops userID from the roster and reports whether a row was
// removed.
func (r *GameRepository) RemovePlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	const query = `DELETE FROM game_players WHERE game_id = $1 AND user_id = $2`

	result, err := r.q.Exec(ctx, query, gameID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove player: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Drawn returns the called numbers in call order.
func (r *GameRepository) Drawn(ctx context.Context, gameID int64) ([]int, error) {
	const query = `SELECT number FROM game_numbers WHERE game_id = $1 ORDER BY seq`

	rows, err := r.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get drawn numbers: %w", err)
	}
	defer rows.Close()

	drawn := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan drawn number: %w", err)
		}
		drawn = append(drawn, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drawn numbers: %w", err)
	}

	return drawn, nil
}

// AddNumber records the seq-th call. Returns ErrDuplicate if the number or
// the position was already taken.
func (r *GameRepository) AddNumber(ctx context.Context, gameID int64, seq, number int) error {
	const query = `INSERT INTO game_numbers (game_id, seq, number) VALUES ($1, $2, $3)`

	if _, err := r.q.Exec(ctx, query, gameID, seq, number); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add drawn number: %w", err)
	}

	return nil
}

// SetCountdown stamps countdown_start unless it is already set.
func (r *GameRepository) SetCountdown(ctx context.Context, gameID int64, at time.Time) error {
	const query = `
		UPDATE games
		SET countdown_start = $2
		WHERE id = $1 AND countdown_start IS NULL
	`

	if _, err := r.q.Exec(ctx, query, gameID, at); err != nil {
		return fmt.Errorf("failed to set countdown: %w", err)
	}

	return nil
}

// Start moves a waiting game to started. Returns ErrStaleState if the game
// is no longer waiting.
func (r *GameRepository) Start(ctx context.Context, gameID int64, startTime time.Time, prize int64) error {
	const query = `
		UPDATE games
		SET status = 'started', start_time = $2, prize_amount = $3
		WHERE id = $1 AND status = 'waiting'
	`

	result, err := r.q.Exec(ctx, query, gameID, startTime, prize)
	if err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStaleState
	}

	return nil
}

// Finish moves a started game to finished. winnerID and prize may be nil
// for an admin end; a nil prize keeps the pool stamped at start.
func (r *GameRepository) Finish(ctx context.Context, gameID int64, winnerID, prize *int64, endTime time.Time) error {
	const query = `
		UPDATE games
		SET status = 'finished',
		    winner_id = $2,
		    prize_amount = COALESCE($3, prize_amount),
		    end_time = $4
		WHERE id = $1 AND status = 'started' AND winner_id IS NULL
	`

	result, err := r.q.Exec(ctx, query, gameID, winnerID, prize, endTime)
	if err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStaleState
	}

	return nil
}

// ListWaiting returns waiting games with their roster sizes, by bet.
func (r *GameRepository) ListWaiting(ctx context.Context) ([]*model.GameSummary, error) {
	const query = `
		SELECT g.id, g.bet_amount, COUNT(p.user_id)
		FROM games g
		LEFT JOIN game_players p ON p.game_id = g.id
		WHERE g.status = 'waiting'
		GROUP BY g.id, g.bet_amount
		ORDER BY g.bet_amount, g.id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting games: %w", err)
	}
	defer rows.Close()

	var games []*model.GameSummary
	for rows.Next() {
		var g model.GameSummary
		if err := rows.Scan(&g.ID, &g.BetAmount, &g.Players); err != nil {
			return nil, fmt.Errorf("failed to scan game summary: %w", err)
		}
		games = append(games, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waiting games: %w", err)
	}

	return games, nil
}

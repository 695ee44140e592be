package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(20) NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			wallet BIGINT NOT NULL DEFAULT 0 CHECK (wallet >= 0),
			score INT NOT NULL DEFAULT 0,
			role VARCHAR(16) NOT NULL DEFAULT 'user',
			referral_code VARCHAR(64) NOT NULL UNIQUE,
			referred_by BIGINT,
			invalid_bingo_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_leaderboard ON users(score DESC, wallet DESC);
		`,
	},
	{
		name: "ledger_entries table",
		sql: `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			type VARCHAR(32) NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_ledger_type_time ON ledger_entries(type, created_at DESC);
		`,
	},
	{
		name: "referrals table",
		sql: `
		CREATE TABLE IF NOT EXISTS referrals (
			id BIGSERIAL PRIMARY KEY,
			referrer_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			referee_id BIGINT NOT NULL UNIQUE REFERENCES users(user_id) ON DELETE CASCADE,
			bonus_credited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id, bonus_credited);
		`,
	},
	{
		name: "games tables",
		sql: `
		CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			bet_amount BIGINT NOT NULL CHECK (bet_amount > 0),
			status VARCHAR(16) NOT NULL DEFAULT 'waiting',
			countdown_start TIMESTAMPTZ,
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ,
			winner_id BIGINT,
			prize_amount BIGINT,
			created_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (status <> 'waiting' OR prize_amount IS NULL)
		);
		CREATE INDEX IF NOT EXISTS idx_games_status ON games(status, bet_amount);

		CREATE TABLE IF NOT EXISTS game_players (
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			seq BIGSERIAL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS game_numbers (
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			number INT NOT NULL CHECK (number BETWEEN 1 AND 100),
			called_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_id, seq),
			UNIQUE (game_id, number)
		);

		CREATE TABLE IF NOT EXISTS player_cards (
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			numbers INT[],
			seed INT,
			accepted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_id, user_id)
		);
		`,
	},
	{
		name: "payments tables",
		sql: `
		CREATE TABLE IF NOT EXISTS deposits (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL CHECK (amount > 0),
			method VARCHAR(32) NOT NULL,
			verification_code VARCHAR(6) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			verified_by BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			verified_at TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_pending_code
			ON deposits(verification_code) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits(user_id);

		CREATE TABLE IF NOT EXISTS withdrawals (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL CHECK (amount > 0),
			method VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			admin_note TEXT,
			resolved_by BIGINT,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status, requested_at);
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}

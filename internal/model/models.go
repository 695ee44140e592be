// Package model defines the data models for the bingo bot.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered player account.
type User struct {
	UserID            int64     `db:"user_id"`
	Username          string    `db:"username"`
	Name              string    `db:"name"`
	Phone             string    `db:"phone"`
	Wallet            int64     `db:"wallet"`
	Score             int       `db:"score"`
	Role              string    `db:"role"`
	ReferralCode      string    `db:"referral_code"`
	ReferredBy        *int64    `db:"referred_by"`
	InvalidBingoCount int       `db:"invalid_bingo_count"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// IsAdmin reports whether the stored role grants admin rights.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LedgerEntry records one wallet movement.
type LedgerEntry struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	Amount       int64     `db:"amount"`
	BalanceAfter int64     `db:"balance_after"`
	Type         string    `db:"type"`
	Reference    string    `db:"reference"`
	CreatedAt    time.Time `db:"created_at"`
}

// Ledger entry types for categorizing wallet movements.
const (
	EntryInitial       = "initial"        // Initial wallet on registration
	EntryGameBet       = "game_bet"       // Stake debited on join
	EntryGameWin       = "game_win"       // Prize credited on a valid bingo
	EntryDeposit       = "deposit"        // Verified deposit
	EntryWithdrawal    = "withdrawal"     // Escrow debit on withdrawal request
	EntryRefund        = "refund"         // Rejected withdrawal refund
	EntryReferralBonus = "referral_bonus" // Referral bonus (batched or per referee)
	EntryAdminCredit   = "admin_credit"   // Admin added funds
	EntryAdminDebit    = "admin_debit"    // Admin removed funds
)

// Referral links a referee to the user who invited them.
type Referral struct {
	ID            int64     `db:"id"`
	ReferrerID    int64     `db:"referrer_id"`
	RefereeID     int64     `db:"referee_id"`
	BonusCredited bool      `db:"bonus_credited"`
	CreatedAt     time.Time `db:"created_at"`
}

// Game status values.
const (
	GameWaiting  = "waiting"
	GameStarted  = "started"
	GameFinished = "finished"
)

// Game represents one bingo round.
// Players and Drawn are loaded from the game_players and game_numbers tables.
type Game struct {
	ID             int64      `db:"id"`
	BetAmount      int64      `db:"bet_amount"`
	Status         string     `db:"status"`
	CountdownStart *time.Time `db:"countdown_start"`
	StartTime      *time.Time `db:"start_time"`
	EndTime        *time.Time `db:"end_time"`
	WinnerID       *int64     `db:"winner_id"`
	PrizeAmount    *int64     `db:"prize_amount"`
	CreatedBy      int64      `db:"created_by"`
	CreatedAt      time.Time  `db:"created_at"`

	Players []int64
	Drawn   []int
}

// HasPlayer reports whether userID is on the roster.
func (g *Game) HasPlayer(userID int64) bool {
	for _, id := range g.Players {
		if id == userID {
			return true
		}
	}
	return false
}

// PlayerCard is a player's card for one game.
// Numbers is nil until the player selects a seed.
type PlayerCard struct {
	GameID    int64     `db:"game_id"`
	UserID    int64     `db:"user_id"`
	Numbers   []int     `db:"numbers"`
	Seed      *int      `db:"seed"`
	Accepted  bool      `db:"accepted"`
	CreatedAt time.Time `db:"created_at"`
}

// Generated reports whether a card has been drawn for this placeholder.
func (c *PlayerCard) Generated() bool {
	return len(c.Numbers) > 0
}

// Payment status values shared by deposits and withdrawals.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Deposit is a manually verified top-up request.
type Deposit struct {
	ID               uuid.UUID  `db:"id"`
	UserID           int64      `db:"user_id"`
	Amount           int64      `db:"amount"`
	Method           string     `db:"method"`
	VerificationCode string     `db:"verification_code"`
	Status           string     `db:"status"`
	VerifiedBy       *int64     `db:"verified_by"`
	CreatedAt        time.Time  `db:"created_at"`
	VerifiedAt       *time.Time `db:"verified_at"`
}

// Withdrawal is an escrowed payout request.
type Withdrawal struct {
	ID          uuid.UUID  `db:"id"`
	UserID      int64      `db:"user_id"`
	Amount      int64      `db:"amount"`
	Method      string     `db:"method"`
	Status      string     `db:"status"`
	AdminNote   *string    `db:"admin_note"`
	ResolvedBy  *int64     `db:"resolved_by"`
	RequestedAt time.Time  `db:"requested_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
}

// LeaderboardEntry is one row of the all-time leaderboard.
type LeaderboardEntry struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Score    int    `db:"score"`
	Wallet   int64  `db:"wallet"`
}

// DailyRank represents a user's prize total for one day.
type DailyRank struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Total    int64  `db:"total"`
}

// GameSummary is a waiting game as listed to players.
// ID is nil for a bet option that has no waiting game yet.
type GameSummary struct {
	ID        *int64 `db:"id"`
	BetAmount int64  `db:"bet_amount"`
	Players   int    `db:"players"`
}

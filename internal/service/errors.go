// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bingo-bot/internal/pkg/apperr"
	"bingo-bot/internal/repository"
)

// TxRunner runs fn in a database transaction. *db.Pool satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Lookup errors.
var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrGameNotFound       = apperr.New(apperr.KindNotFound, "game_not_found", "game not found")
	ErrCardNotFound       = apperr.New(apperr.KindNotFound, "card_not_found", "no card selected for this game")
	ErrDepositNotFound    = apperr.New(apperr.KindNotFound, "deposit_not_found", "deposit not found")
	ErrWithdrawalNotFound = apperr.New(apperr.KindNotFound, "withdrawal_not_found", "withdrawal not found")
)

// Wallet and permission errors.
var (
	ErrInsufficientFunds = apperr.New(apperr.KindInsufficientFunds, "insufficient_funds", "insufficient balance")
	ErrInvalidAmount     = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be positive")
	ErrUnauthorized      = apperr.New(apperr.KindUnauthorized, "unauthorized", "admin rights required")
)

// Account errors.
var (
	ErrInvalidUsername   = apperr.New(apperr.KindValidation, "invalid_username", "username must be 3-20 characters")
	ErrUsernameTaken     = apperr.New(apperr.KindConflict, "username_taken", "username already taken")
	ErrAlreadyRegistered = apperr.New(apperr.KindConflict, "already_registered", "already registered")
	ErrAlreadyAdmin      = apperr.New(apperr.KindConflict, "already_admin", "user is already an admin")
	ErrUserBusy          = apperr.New(apperr.KindInvalidState, "user_busy", "user has a pending withdrawal or an open game")
)

// Game errors.
var (
	ErrInvalidBet       = apperr.New(apperr.KindValidation, "invalid_bet", "bet amount is not offered")
	ErrNotJoinable      = apperr.New(apperr.KindInvalidState, "not_joinable", "game is not accepting players")
	ErrAlreadyJoined    = apperr.New(apperr.KindConflict, "already_joined", "already joined this game")
	ErrBetMismatch      = apperr.New(apperr.KindValidation, "bet_mismatch", "bet does not match the game")
	ErrInvalidSeed      = apperr.New(apperr.KindValidation, "invalid_number", "number must be between 1 and 100")
	ErrAlreadySelected  = apperr.New(apperr.KindConflict, "already_selected", "card already selected")
	ErrNotInGame        = apperr.New(apperr.KindInvalidState, "not_in_game", "not a player in this game")
	ErrGameNotWaiting   = apperr.New(apperr.KindInvalidState, "game_not_waiting", "game has already started")
	ErrGameNotStarted   = apperr.New(apperr.KindInvalidState, "game_not_started", "game is not in progress")
	ErrGameOver         = apperr.New(apperr.KindInvalidState, "game_over", "game already has a winner")
	ErrNotEnoughPlayers = apperr.New(apperr.KindInvalidState, "not_enough_players", "not enough players to start")
	ErrExhausted        = apperr.New(apperr.KindInvalidState, "exhausted", "all numbers have been called")
	ErrKicked           = apperr.New(apperr.KindInvalidState, "kicked", "invalid bingo, you have been removed from the game")
)

// Payment errors.
var (
	ErrBelowMinimum     = apperr.New(apperr.KindValidation, "below_minimum", "amount is below the minimum")
	ErrInvalidMethod    = apperr.New(apperr.KindValidation, "invalid_method", "unsupported payment method")
	ErrAlreadyProcessed = apperr.New(apperr.KindConflict, "already_processed", "request already processed")
)

// mapRepoErr translates repository lookup sentinels into service errors and
// wraps anything else.
func mapRepoErr(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repository.ErrCardNotFound):
		return ErrCardNotFound
	case errors.Is(err, repository.ErrDepositNotFound):
		return ErrDepositNotFound
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

// Ledger moves money between the house and user wallets. Credit and Debit
// run inside the caller's transaction so a wallet change commits or rolls
// back together with the state it pays for.
type Ledger struct {
	pool       TxRunner
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
	admins     *Admins
}

// NewLedger creates a new Ledger instance.
func NewLedger(
	pool TxRunner,
	userRepo *repository.UserRepository,
	ledgerRepo *repository.LedgerRepository,
	admins *Admins,
) *Ledger {
	return &Ledger{
		pool:       pool,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		admins:     admins,
	}
}

// Credit adds amount to userID's wallet and records the entry. It returns
// the new balance.
func (l *Ledger) Credit(ctx context.Context, tx pgx.Tx, userID, amount int64, entryType, reference string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := l.userRepo.WithTx(tx).Credit(ctx, userID, amount)
	if err != nil {
		return 0, mapRepoErr(err, "credit wallet")
	}

	if _, err := l.ledgerRepo.WithTx(tx).Create(ctx, userID, amount, balance, entryType, reference); err != nil {
		return 0, err
	}

	return balance, nil
}

// Debit removes amount from userID's wallet if the wallet covers it.
// Returns ErrInsufficientFunds otherwise; the wallet never goes negative.
func (l *Ledger) Debit(ctx context.Context, tx pgx.Tx, userID, amount int64, entryType, reference string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := l.userRepo.WithTx(tx).Debit(ctx, userID, amount)
	if err != nil {
		return 0, mapRepoErr(err, "debit wallet")
	}

	if _, err := l.ledgerRepo.WithTx(tx).Create(ctx, userID, -amount, balance, entryType, reference); err != nil {
		return 0, err
	}

	return balance, nil
}

// AdminAdjust credits (amount > 0) or debits (amount < 0) a wallet on an
// admin's behalf and returns the new balance.
func (l *Ledger) AdminAdjust(ctx context.Context, actorID, userID, amount int64) (int64, error) {
	if err := l.admins.RequireAdmin(ctx, actorID); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	reference := fmt.Sprintf("admin:%d", actorID)
	var balance int64
	err := l.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		if amount > 0 {
			balance, err = l.Credit(ctx, tx, userID, amount, model.EntryAdminCredit, reference)
		} else {
			balance, err = l.Debit(ctx, tx, userID, -amount, model.EntryAdminDebit, reference)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("admin_id", actorID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("balance", balance).
		Msg("Admin wallet adjustment")

	return balance, nil
}

// History returns the user's most recent ledger entries.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	entries, err := l.ledgerRepo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, mapRepoErr(err, "get history")
	}
	return entries, nil
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

const (
	verificationCodeLen     = 6
	verificationCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeAttempts            = 5
	pendingListLimit        = 50
)

// PaymentSettings are the deposit and withdrawal limits.
type PaymentSettings struct {
	MinDeposit    int64
	MinWithdrawal int64
	Methods       []string
}

// PaymentService handles manually verified deposits and escrowed
// withdrawals.
type PaymentService struct {
	pool        TxRunner
	paymentRepo *repository.PaymentRepository
	userRepo    *repository.UserRepository
	ledger      *Ledger
	referrals   *ReferralService
	admins      *Admins
	settings    PaymentSettings
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(
	pool TxRunner,
	paymentRepo *repository.PaymentRepository,
	userRepo *repository.UserRepository,
	ledger *Ledger,
	referrals *ReferralService,
	admins *Admins,
	settings PaymentSettings,
) *PaymentService {
	return &PaymentService{
		pool:        pool,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		referrals:   referrals,
		admins:      admins,
		settings:    settings,
		now:         time.Now,
	}
}

// normalizeMethod returns the configured spelling of method, or "" if the
// method is not accepted.
func (s *PaymentService) normalizeMethod(method string) string {
	for _, m := range s.settings.Methods {
		if strings.EqualFold(m, method) {
			return m
		}
	}
	return ""
}

// NewVerificationCode returns a random code from an unambiguous alphabet.
func NewVerificationCode() (string, error) {
	buf := make([]byte, verificationCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	for i, b := range buf {
		buf[i] = verificationCodeCharset[int(b)%len(verificationCodeCharset)]
	}
	return string(buf), nil
}

// IsVerificationCode reports whether text looks like a deposit code.
func IsVerificationCode(text string) bool {
	if len(text) != verificationCodeLen {
		return false
	}
	for _, r := range strings.ToUpper(text) {
		if !strings.ContainsRune(verificationCodeCharset, r) {
			return false
		}
	}
	return true
}

// InitiateDeposit opens a pending deposit and returns it with the code the
// user quotes in the payment reference.
func (s *PaymentService) InitiateDeposit(ctx context.Context, userID, amount int64, method string) (*model.Deposit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.settings.MinDeposit {
		return nil, ErrBelowMinimum
	}
	normalized := s.normalizeMethod(method)
	if normalized == "" {
		return nil, ErrInvalidMethod
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, mapRepoErr(err, "get user")
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := NewVerificationCode()
		if err != nil {
			return nil, err
		}

		deposit, err := s.paymentRepo.CreateDeposit(ctx, &model.Deposit{
			ID:               uuid.New(),
			UserID:           userID,
			Amount:           amount,
			Method:           normalized,
			VerificationCode: code,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, mapRepoErr(err, "create deposit")
		}

		log.Info().
			Str("deposit_id", deposit.ID.String()).
			Int64("user_id", userID).
			Int64("amount", amount).
			Str("method", normalized).
			Msg("Deposit initiated")
		return deposit, nil
	}

	return nil, fmt.Errorf("failed to allocate a unique verification code after %d attempts", codeAttempts)
}

// VerifyDeposit confirms a deposit on an admin's behalf.
func (s *PaymentService) VerifyDeposit(ctx context.Context, actorID int64, depositID uuid.UUID) (*model.Deposit, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	return s.verify(ctx, actorID, func(tx pgx.Tx) (*model.Deposit, error) {
		return s.paymentRepo.WithTx(tx).GetDepositForUpdate(ctx, depositID)
	})
}

// VerifyDepositByCode confirms the user's own pending deposit carrying code.
func (s *PaymentService) VerifyDepositByCode(ctx context.Context, userID int64, code string) (*model.Deposit, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsVerificationCode(code) {
		return nil, ErrDepositNotFound
	}

	return s.verify(ctx, userID, func(tx pgx.Tx) (*model.Deposit, error) {
		return s.paymentRepo.WithTx(tx).GetPendingDepositByCodeForUpdate(ctx, userID, code)
	})
}

// verify credits a pending deposit, marks it verified and pays the one-shot
// referral bonus, all in one transaction.
func (s *PaymentService) verify(ctx context.Context, actorID int64, load func(tx pgx.Tx) (*model.Deposit, error)) (*model.Deposit, error) {
	var (
		deposit    *model.Deposit
		referrerID int64
	)

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		deposit, err = load(tx)
		if err != nil {
			return mapRepoErr(err, "get deposit")
		}
		if deposit.Status != model.StatusPending {
			return ErrAlreadyProcessed
		}

		// depositor and referrer rows in id order so that two users who
		// refer each other cannot deadlock
		users := s.userRepo.WithTx(tx)
		depositor, err := users.GetByID(ctx, deposit.UserID)
		if err != nil {
			return mapRepoErr(err, "get depositor")
		}
		ids := []int64{depositor.UserID}
		if depositor.ReferredBy != nil {
			ids = append(ids, *depositor.ReferredBy)
		}
		if err := users.LockUsers(ctx, ids...); err != nil {
			return err
		}

		now := s.now()
		if err := s.paymentRepo.WithTx(tx).MarkDepositVerified(ctx, deposit.ID, actorID, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrAlreadyProcessed
			}
			return err
		}

		reference := "deposit:" + deposit.ID.String()
		if _, err := s.ledger.Credit(ctx, tx, deposit.UserID, deposit.Amount, model.EntryDeposit, reference); err != nil {
			return err
		}

		referrerID, err = s.referrals.creditRefereeBonus(ctx, tx, depositor)
		if err != nil {
			return err
		}

		deposit.Status = model.StatusVerified
		deposit.VerifiedBy = &actorID
		deposit.VerifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("deposit_id", deposit.ID.String()).
		Int64("user_id", deposit.UserID).
		Int64("amount", deposit.Amount).
		Int64("verified_by", actorID).
		Msg("Deposit verified")
	if referrerID != 0 {
		log.Info().Int64("referrer_id", referrerID).Int64("referee_id", deposit.UserID).Msg("Referee deposit bonus credited")
	}

	return deposit, nil
}

// RequestWithdrawal escrows amount from the wallet and opens a pending
// withdrawal.
func (s *PaymentService) RequestWithdrawal(ctx context.Context, userID, amount int64, method string) (*model.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.settings.MinWithdrawal {
		return nil, ErrBelowMinimum
	}
	normalized := s.normalizeMethod(method)
	if normalized == "" {
		return nil, ErrInvalidMethod
	}

	var withdrawal *model.Withdrawal
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		if _, err := s.ledger.Debit(ctx, tx, userID, amount, model.EntryWithdrawal, "withdrawal:"+id.String()); err != nil {
			return err
		}

		var err error
		withdrawal, err = s.paymentRepo.WithTx(tx).CreateWithdrawal(ctx, &model.Withdrawal{
			ID:     id,
			UserID: userID,
			Amount: amount,
			Method: normalized,
		})
		return err
	})
	if err != nil {
		return nil, mapRepoErr(err, "request withdrawal")
	}

	log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("Withdrawal requested")
	return withdrawal, nil
}

// ResolveWithdrawal approves or rejects a pending withdrawal. Rejection
// refunds the escrowed amount.
func (s *PaymentService) ResolveWithdrawal(ctx context.Context, actorID int64, withdrawalID uuid.UUID, approve bool, note string) (*model.Withdrawal, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	status := model.StatusRejected
	if approve {
		status = model.StatusApproved
	}
	var notePtr *string
	if note = strings.TrimSpace(note); note != "" {
		notePtr = &note
	}

	var withdrawal *model.Withdrawal
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		payments := s.paymentRepo.WithTx(tx)

		var err error
		withdrawal, err = payments.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return mapRepoErr(err, "get withdrawal")
		}
		if withdrawal.Status != model.StatusPending {
			return ErrAlreadyProcessed
		}

		now := s.now()
		if err := payments.ResolveWithdrawal(ctx, withdrawalID, status, notePtr, actorID, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrAlreadyProcessed
			}
			return err
		}

		if !approve {
			reference := "withdrawal:" + withdrawalID.String()
			if _, err := s.ledger.Credit(ctx, tx, withdrawal.UserID, withdrawal.Amount, model.EntryRefund, reference); err != nil {
				return err
			}
		}

		withdrawal.Status = status
		withdrawal.AdminNote = notePtr
		withdrawal.ResolvedBy = &actorID
		withdrawal.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("withdrawal_id", withdrawalID.String()).
		Str("status", status).
		Int64("admin_id", actorID).
		Msg("Withdrawal resolved")
	return withdrawal, nil
}

// PendingWithdrawals lists withdrawals awaiting an admin, oldest first.
func (s *PaymentService) PendingWithdrawals(ctx context.Context, actorID int64) ([]*model.Withdrawal, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	list, err := s.paymentRepo.ListWithdrawals(ctx, model.StatusPending, pendingListLimit)
	if err != nil {
		return nil, mapRepoErr(err, "list withdrawals")
	}
	return list, nil
}

// PendingDeposits lists deposits awaiting verification, oldest first.
func (s *PaymentService) PendingDeposits(ctx context.Context, actorID int64) ([]*model.Deposit, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	list, err := s.paymentRepo.ListDeposits(ctx, model.StatusPending, pendingListLimit)
	if err != nil {
		return nil, mapRepoErr(err, "list deposits")
	}
	return list, nil
}

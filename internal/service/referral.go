package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

// InviteInfo is what a user needs to invite friends.
type InviteInfo struct {
	Link      string `json:"referral_link"`
	Count     int    `json:"referral_count"`
	Threshold int    `json:"bonus_threshold"`
	Bonus     int64  `json:"bonus_amount"`
}

// ReferralService pays referrers for the users they bring in.
type ReferralService struct {
	pool         TxRunner
	userRepo     *repository.UserRepository
	referralRepo *repository.ReferralRepository
	ledger       *Ledger
	threshold    int
	bonus        int64
	botUsername  string
}

// NewReferralService creates a new ReferralService instance.
func NewReferralService(
	pool TxRunner,
	userRepo *repository.UserRepository,
	referralRepo *repository.ReferralRepository,
	ledger *Ledger,
	threshold int,
	bonus int64,
	botUsername string,
) *ReferralService {
	return &ReferralService{
		pool:         pool,
		userRepo:     userRepo,
		referralRepo: referralRepo,
		ledger:       ledger,
		threshold:    threshold,
		bonus:        bonus,
		botUsername:  botUsername,
	}
}

// referralAward returns how many full batches of uncredited referrals can be
// paid and the total bonus for them.
func referralAward(uncredited, threshold int, bonus int64) (batches int, amount int64) {
	if threshold <= 0 || uncredited < threshold {
		return 0, 0
	}
	batches = uncredited / threshold
	return batches, int64(batches) * bonus
}

// CheckAndAwardBonus pays one bonus per full batch of uncredited referrals
// and marks exactly that many of the oldest referrals credited. It returns
// the amount credited, 0 when no batch is complete.
func (s *ReferralService) CheckAndAwardBonus(ctx context.Context, referrerID int64) (int64, error) {
	var awarded int64

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		// serializes concurrent checks for the same referrer
		if _, err := s.userRepo.WithTx(tx).GetByIDForUpdate(ctx, referrerID); err != nil {
			return mapRepoErr(err, "lock referrer")
		}

		referrals := s.referralRepo.WithTx(tx)
		count, err := referrals.CountUncredited(ctx, referrerID)
		if err != nil {
			return err
		}

		batches, amount := referralAward(count, s.threshold, s.bonus)
		if batches == 0 {
			return nil
		}

		marked, err := referrals.MarkOldestCredited(ctx, referrerID, batches*s.threshold)
		if err != nil {
			return err
		}
		if marked != int64(batches*s.threshold) {
			return fmt.Errorf("marked %d referrals, expected %d", marked, batches*s.threshold)
		}

		if amount > 0 {
			reference := fmt.Sprintf("referral_batch:%d", batches)
			if _, err := s.ledger.Credit(ctx, tx, referrerID, amount, model.EntryReferralBonus, reference); err != nil {
				return err
			}
		}

		awarded = amount
		return nil
	})
	if err != nil {
		return 0, err
	}

	if awarded > 0 {
		log.Info().
			Int64("referrer_id", referrerID).
			Int64("amount", awarded).
			Msg("Referral bonus awarded")
	}

	return awarded, nil
}

// creditRefereeBonus pays the referrer of referee once, the first time a
// deposit by referee is verified. It runs inside the deposit transaction and
// returns the referrer paid, or 0 if nothing was due.
func (s *ReferralService) creditRefereeBonus(ctx context.Context, tx pgx.Tx, referee *model.User) (int64, error) {
	if referee.ReferredBy == nil || s.bonus <= 0 {
		return 0, nil
	}

	// referrer row before referral row, the same order CheckAndAwardBonus
	// takes; a no-op when verify already holds it
	if _, err := s.userRepo.WithTx(tx).GetByIDForUpdate(ctx, *referee.ReferredBy); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}

	referrals := s.referralRepo.WithTx(tx)
	ref, err := referrals.GetUncreditedByRefereeForUpdate(ctx, referee.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrReferralNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if err := referrals.MarkCredited(ctx, ref.ID); err != nil {
		return 0, err
	}

	reference := fmt.Sprintf("referee:%d", referee.UserID)
	if _, err := s.ledger.Credit(ctx, tx, ref.ReferrerID, s.bonus, model.EntryReferralBonus, reference); err != nil {
		return 0, err
	}

	return ref.ReferrerID, nil
}

// resolveReferrer returns referrerID if it names an existing user other
// than the referee, nil otherwise.
func (s *ReferralService) resolveReferrer(ctx context.Context, tx pgx.Tx, referrerID *int64, refereeID int64) (*int64, error) {
	if referrerID == nil || *referrerID == refereeID {
		return nil, nil
	}

	exists, err := s.userRepo.WithTx(tx).Exists(ctx, *referrerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	id := *referrerID
	return &id, nil
}

// record links refereeID to referrerID inside the registration transaction.
func (s *ReferralService) record(ctx context.Context, tx pgx.Tx, referrerID, refereeID int64) error {
	_, err := s.referralRepo.WithTx(tx).Create(ctx, referrerID, refereeID)
	return err
}

// InviteInfo returns the user's referral link and progress.
func (s *ReferralService) InviteInfo(ctx context.Context, userID int64) (*InviteInfo, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, mapRepoErr(err, "get user")
	}

	count, err := s.referralRepo.CountByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &InviteInfo{
		Link:      ReferralLink(s.botUsername, userID),
		Count:     count,
		Threshold: s.threshold,
		Bonus:     s.bonus,
	}, nil
}

// ReferralLink builds the deep link that opens the bot with a referral
// payload.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", botUsername, userID)
}

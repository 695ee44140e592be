package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 20

	// attempts at a unique referral code before giving up
	referralCodeAttempts = 5
)

// RegisterRequest carries what a new player supplies on sign-up.
type RegisterRequest struct {
	UserID     int64
	Username   string
	Name       string
	Phone      string
	ReferrerID *int64
}

// AccountService handles user account operations.
type AccountService struct {
	pool           TxRunner
	userRepo       *repository.UserRepository
	ledger         *Ledger
	referrals      *ReferralService
	admins         *Admins
	initialBalance int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	pool TxRunner,
	userRepo *repository.UserRepository,
	ledger *Ledger,
	referrals *ReferralService,
	admins *Admins,
	initialBalance int64,
) *AccountService {
	return &AccountService{
		pool:           pool,
		userRepo:       userRepo,
		ledger:         ledger,
		referrals:      referrals,
		admins:         admins,
		initialBalance: initialBalance,
	}
}

// ValidUsername reports whether username has an acceptable length.
func ValidUsername(username string) bool {
	n := utf8.RuneCountInString(username)
	return n >= minUsernameLen && n <= maxUsernameLen
}

func newReferralCode(userID int64) string {
	return fmt.Sprintf("BINGO%d%d", userID, 1000+rand.Intn(9000))
}

// Register creates the account with the initial wallet recorded in the
// ledger, links the referrer when there is one, then gives the referrer a
// chance to complete a bonus batch.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if !ValidUsername(req.Username) {
		return nil, ErrInvalidUsername
	}

	var (
		user *model.User
		err  error
	)
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		user, err = s.register(ctx, req, newReferralCode(req.UserID))
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserExists):
			return nil, ErrAlreadyRegistered
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		}
		return nil, mapRepoErr(err, "register user")
	}

	log.Info().
		Int64("user_id", user.UserID).
		Str("username", user.Username).
		Msg("User registered")

	if user.ReferredBy != nil {
		if _, err := s.referrals.CheckAndAwardBonus(ctx, *user.ReferredBy); err != nil {
			log.Error().Err(err).Int64("referrer_id", *user.ReferredBy).Msg("Failed to check referral bonus")
		}
	}

	return user, nil
}

func (s *AccountService) register(ctx context.Context, req RegisterRequest, code string) (*model.User, error) {
	var user *model.User

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		referredBy, err := s.referrals.resolveReferrer(ctx, tx, req.ReferrerID, req.UserID)
		if err != nil {
			return err
		}

		user, err = s.userRepo.WithTx(tx).Create(ctx, &model.User{
			UserID:       req.UserID,
			Username:     req.Username,
			Name:         req.Name,
			Phone:        req.Phone,
			Role:         model.RoleUser,
			ReferralCode: code,
			ReferredBy:   referredBy,
		})
		if err != nil {
			return err
		}

		if referredBy != nil {
			if err := s.referrals.record(ctx, tx, *referredBy, req.UserID); err != nil {
				return err
			}
		}

		if s.initialBalance > 0 {
			balance, err := s.ledger.Credit(ctx, tx, req.UserID, s.initialBalance, model.EntryInitial, "")
			if err != nil {
				return err
			}
			user.Wallet = balance
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser retrieves a user by id.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err, "get user")
	}
	return user, nil
}

// Profile settles any complete referral batch and returns the user together
// with the bonus just credited.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*model.User, int64, error) {
	bonus, err := s.referrals.CheckAndAwardBonus(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return user, bonus, nil
}

// IsAdmin reports whether userID holds admin rights.
func (s *AccountService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.admins.IsAdmin(ctx, userID)
}

// RequireAdmin returns ErrUnauthorized unless userID is an admin.
func (s *AccountService) RequireAdmin(ctx context.Context, userID int64) error {
	return s.admins.RequireAdmin(ctx, userID)
}

// Promote grants targetID the admin role.
func (s *AccountService) Promote(ctx context.Context, actorID, targetID int64) error {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return err
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return mapRepoErr(err, "get user")
	}
	if target.IsAdmin() {
		return ErrAlreadyAdmin
	}

	if err := s.userRepo.SetRole(ctx, targetID, model.RoleAdmin); err != nil {
		return mapRepoErr(err, "promote user")
	}

	log.Info().Int64("admin_id", actorID).Int64("user_id", targetID).Msg("User promoted to admin")
	return nil
}

// Kick deletes targetID's account. Users with a pending withdrawal or a seat
// in an unfinished game are refused with ErrUserBusy.
func (s *AccountService) Kick(ctx context.Context, actorID, targetID int64) error {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return err
	}

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		users := s.userRepo.WithTx(tx)

		if _, err := users.GetByIDForUpdate(ctx, targetID); err != nil {
			return mapRepoErr(err, "get user")
		}
		open, err := users.HasOpenActivity(ctx, targetID)
		if err != nil {
			return mapRepoErr(err, "check user activity")
		}
		if open {
			return ErrUserBusy
		}
		if err := users.Delete(ctx, targetID); err != nil {
			return mapRepoErr(err, "kick user")
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Warn().Int64("admin_id", actorID).Int64("user_id", targetID).Msg("User kicked")
	return nil
}

// UserIDs lists every registered user for an admin broadcast.
func (s *AccountService) UserIDs(ctx context.Context, actorID int64) ([]int64, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	ids, err := s.userRepo.ListIDs(ctx)
	if err != nil {
		return nil, mapRepoErr(err, "list users")
	}
	return ids, nil
}

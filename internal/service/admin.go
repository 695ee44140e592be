package service

import (
	"context"
	"errors"
	"fmt"

	"bingo-bot/internal/repository"
)

// Admins decides who may run admin operations: the bootstrap ids from
// configuration plus any user whose stored role is admin.
type Admins struct {
	userRepo  *repository.UserRepository
	bootstrap map[int64]struct{}
}

// NewAdmins creates a new Admins instance.
func NewAdmins(userRepo *repository.UserRepository, bootstrapIDs []int64) *Admins {
	ids := make(map[int64]struct{}, len(bootstrapIDs))
	for _, id := range bootstrapIDs {
		ids[id] = struct{}{}
	}
	return &Admins{userRepo: userRepo, bootstrap: ids}
}

// IsAdmin reports whether userID holds admin rights.
func (a *Admins) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if _, ok := a.bootstrap[userID]; ok {
		return true, nil
	}

	user, err := a.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check admin: %w", err)
	}

	return user.IsAdmin(), nil
}

// RequireAdmin returns ErrUnauthorized unless userID is an admin.
func (a *Admins) RequireAdmin(ctx context.Context, userID int64) error {
	ok, err := a.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

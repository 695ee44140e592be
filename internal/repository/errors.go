package repository

import "errors"

// Common errors for repository operations.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrGameNotFound       = errors.New("game not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrReferralNotFound   = errors.New("referral not found")
	ErrDepositNotFound    = errors.New("deposit not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrDuplicate          = errors.New("duplicate key")
	ErrStaleState         = errors.New("row is not in the expected state")
)

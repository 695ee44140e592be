// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bingo-bot/internal/model"
	"bingo-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated pool.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func createUser(t *testing.T, repo *UserRepository, id int64, username string, wallet int64) *model.User {
	t.Helper()
	user, err := repo.Create(context.Background(), &model.User{
		UserID:       id,
		Username:     username,
		Wallet:       wallet,
		ReferralCode: "BINGO" + username,
	})
	require.NoError(t, err)
	return user
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user := createUser(t, repo, 12345, "testuser", 10)
	assert.Equal(t, int64(12345), user.UserID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, int64(10), user.Wallet)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Nil(t, user.ReferredBy)
	assert.False(t, user.CreatedAt.IsZero())

	_, err := repo.Create(ctx, &model.User{UserID: 12345, Username: "other", ReferralCode: "X1"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = repo.Create(ctx, &model.User{UserID: 999, Username: "testuser", ReferralCode: "X2"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = repo.Create(ctx, &model.User{UserID: 998, Username: "fresh", ReferralCode: "BINGOtestuser"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	createUser(t, repo, 12345, "testuser", 10)

	user, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CreditDebit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	createUser(t, repo, 1, "alice", 30)

	balance, err := repo.Credit(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	balance, err = repo.Debit(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = repo.Debit(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = repo.Debit(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.Credit(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ConcurrentDebitNeverNegative(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	createUser(t, repo, 1, "alice", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, 1, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Wallet)
}

func TestUserRepository_ScoreRoleDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	createUser(t, repo, 1, "alice", 10)

	require.NoError(t, repo.IncrementScore(ctx, 1))
	require.NoError(t, repo.IncrementInvalidBingo(ctx, 1))
	require.NoError(t, repo.SetRole(ctx, 1, model.RoleAdmin))

	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, user.Score)
	assert.Equal(t, 1, user.InvalidBingoCount)
	assert.True(t, user.IsAdmin())

	require.NoError(t, repo.Delete(ctx, 1))
	exists, err := repo.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, repo.Delete(ctx, 1), ErrUserNotFound)
}

func TestUserRepository_Leaderboard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	createUser(t, repo, 1, "alice", 10)
	createUser(t, repo, 2, "bob", 50)
	createUser(t, repo, 3, "carol", 5)
	createUser(t, repo, 4, "admin", 999)

	require.NoError(t, repo.IncrementScore(ctx, 3))
	require.NoError(t, repo.SetRole(ctx, 4, model.RoleAdmin))

	entries, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[0].UserID) // highest score
	assert.Equal(t, int64(2), entries[1].UserID) // then wallet
	assert.Equal(t, int64(1), entries[2].UserID)
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_CreateAndHistory(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 10)

	_, err := repo.Create(ctx, 1, 10, 10, model.EntryInitial, "")
	require.NoError(t, err)
	entry, err := repo.Create(ctx, 1, -5, 5, model.EntryGameBet, "game:1")
	require.NoError(t, err)
	assert.Equal(t, int64(-5), entry.Amount)
	assert.Equal(t, "game:1", entry.Reference)

	entries, err := repo.GetByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryGameBet, entries[0].Type)
}

func TestLedgerRepository_DailyTotals(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 0)
	createUser(t, users, 2, "bob", 0)

	_, err := repo.Create(ctx, 1, 98, 98, model.EntryGameWin, "game:1")
	require.NoError(t, err)
	_, err = repo.Create(ctx, 2, 49, 49, model.EntryGameWin, "game:2")
	require.NoError(t, err)
	_, err = repo.Create(ctx, 2, 49, 98, model.EntryGameWin, "game:3")
	require.NoError(t, err)
	_, err = repo.Create(ctx, 2, 500, 598, model.EntryDeposit, "")
	require.NoError(t, err)

	ranks, err := repo.DailyTotals(ctx, model.EntryGameWin, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	assert.Equal(t, int64(98), ranks[0].Total)
	assert.Equal(t, int64(98), ranks[1].Total)
	assert.Equal(t, int64(1), ranks[0].UserID)

	ranks, err = repo.DailyTotals(ctx, model.EntryGameWin, time.Now().Add(-48*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, ranks)
}

// ============================================================================
// ReferralRepository Tests
// ============================================================================

func TestReferralRepository_Batches(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewReferralRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "referrer", 0)
	for i := int64(2); i <= 6; i++ {
		createUser(t, users, i, "ref"+string(rune('a'+i)), 0)
		created, err := repo.Create(ctx, 1, i)
		require.NoError(t, err)
		assert.True(t, created)
	}

	created, err := repo.Create(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created, "a referee is referred only once")

	count, err := repo.CountUncredited(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	marked, err := repo.MarkOldestCredited(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), marked)

	count, err = repo.CountUncredited(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	total, err := repo.CountByReferrer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	// the newest referee is the one left unpaid
	ref, err := repo.GetUncreditedByRefereeForUpdate(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ref.ReferrerID)
	require.NoError(t, repo.MarkCredited(ctx, ref.ID))
	assert.ErrorIs(t, repo.MarkCredited(ctx, ref.ID), ErrStaleState)

	_, err = repo.GetUncreditedByRefereeForUpdate(ctx, 2)
	assert.ErrorIs(t, err, ErrReferralNotFound)
}

// ============================================================================
// GameRepository / CardRepository Tests
// ============================================================================

func TestGameRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 0)
	createUser(t, users, 2, "bob", 0)

	game, err := games.Create(ctx, 50, 99)
	require.NoError(t, err)
	assert.Equal(t, model.GameWaiting, game.Status)
	assert.Nil(t, game.PrizeAmount)

	require.NoError(t, games.AddPlayer(ctx, game.ID, 2))
	require.NoError(t, games.AddPlayer(ctx, game.ID, 1))
	assert.ErrorIs(t, games.AddPlayer(ctx, game.ID, 1), ErrDuplicate)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, games.SetCountdown(ctx, game.ID, now))
	require.NoError(t, games.SetCountdown(ctx, game.ID, now.Add(time.Minute)))

	summaries, err := games.ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Players)

	require.NoError(t, games.Start(ctx, game.ID, now, 100))
	assert.ErrorIs(t, games.Start(ctx, game.ID, now, 100), ErrStaleState)

	require.NoError(t, games.AddNumber(ctx, game.ID, 1, 42))
	require.NoError(t, games.AddNumber(ctx, game.ID, 2, 7))
	assert.ErrorIs(t, games.AddNumber(ctx, game.ID, 3, 42), ErrDuplicate)

	got, err := games.Get(ctx, game.ID)
	require.NoError(t, err)
	require.NoError(t, games.Load(ctx, got))
	assert.Equal(t, []int64{2, 1}, got.Players)
	assert.Equal(t, []int{42, 7}, got.Drawn)
	assert.Equal(t, model.GameStarted, got.Status)
	require.NotNil(t, got.CountdownStart)
	assert.True(t, got.CountdownStart.Equal(now))
	require.NotNil(t, got.PrizeAmount)
	assert.Equal(t, int64(100), *got.PrizeAmount)

	removed, err := games.RemovePlayer(ctx, game.ID, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	count, err := games.CountPlayers(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	winner, prize := int64(1), int64(49)
	require.NoError(t, games.Finish(ctx, game.ID, &winner, &prize, now))
	assert.ErrorIs(t, games.Finish(ctx, game.ID, nil, nil, now), ErrStaleState)

	got, err = games.Get(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameFinished, got.Status)
	assert.Equal(t, int64(1), *got.WinnerID)
	assert.Equal(t, int64(49), *got.PrizeAmount)

	_, err = games.Get(ctx, game.ID+100)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestCardRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	cards := NewCardRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 0)
	game, err := games.Create(ctx, 10, 99)
	require.NoError(t, err)

	require.NoError(t, cards.CreatePlaceholder(ctx, game.ID, 1))
	assert.ErrorIs(t, cards.CreatePlaceholder(ctx, game.ID, 1), ErrDuplicate)

	card, err := cards.Get(ctx, game.ID, 1)
	require.NoError(t, err)
	assert.False(t, card.Generated())
	assert.Nil(t, card.Seed)

	ok, err := cards.Accept(ctx, game.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "placeholder cannot be accepted")

	numbers := []int{3, 1, 2}
	ok, err = cards.SetNumbers(ctx, game.ID, 1, 17, numbers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cards.SetNumbers(ctx, game.ID, 1, 18, []int{4, 5, 6})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cards.Accept(ctx, game.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	card, err = cards.Get(ctx, game.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, numbers, card.Numbers, "stored order is preserved")
	assert.Equal(t, 17, *card.Seed)
	assert.True(t, card.Accepted)

	require.NoError(t, cards.Delete(ctx, game.ID, 1))
	_, err = cards.Get(ctx, game.ID, 1)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

// ============================================================================
// PaymentRepository Tests
// ============================================================================

func TestPaymentRepository_Deposits(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewPaymentRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 0)

	d, err := repo.CreateDeposit(ctx, &model.Deposit{
		ID: uuid.New(), UserID: 1, Amount: 100, Method: "telebirr", VerificationCode: "ABC123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, d.Status)

	_, err = repo.CreateDeposit(ctx, &model.Deposit{
		ID: uuid.New(), UserID: 1, Amount: 60, Method: "cbe", VerificationCode: "ABC123",
	})
	assert.ErrorIs(t, err, ErrDuplicate, "pending codes are unique")

	pending, err := repo.ListDeposits(ctx, model.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got, err := repo.GetPendingDepositByCodeForUpdate(ctx, 1, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	require.NoError(t, repo.MarkDepositVerified(ctx, d.ID, 1, time.Now()))
	assert.ErrorIs(t, repo.MarkDepositVerified(ctx, d.ID, 1, time.Now()), ErrStaleState)

	_, err = repo.GetPendingDepositByCodeForUpdate(ctx, 1, "ABC123")
	assert.ErrorIs(t, err, ErrDepositNotFound)

	// the code is free again once the first deposit left pending
	_, err = repo.CreateDeposit(ctx, &model.Deposit{
		ID: uuid.New(), UserID: 1, Amount: 60, Method: "cbe", VerificationCode: "ABC123",
	})
	require.NoError(t, err)

	_, err = repo.GetDepositForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDepositNotFound)
}

func TestPaymentRepository_Withdrawals(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewPaymentRepository(pool)
	ctx := context.Background()

	createUser(t, users, 1, "alice", 0)

	w, err := repo.CreateWithdrawal(ctx, &model.Withdrawal{ID: uuid.New(), UserID: 1, Amount: 50, Method: "telebirr"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, w.Status)

	list, err := repo.ListWithdrawals(ctx, model.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	note := "bad account"
	require.NoError(t, repo.ResolveWithdrawal(ctx, w.ID, model.StatusRejected, &note, 7, time.Now()))
	assert.ErrorIs(t, repo.ResolveWithdrawal(ctx, w.ID, model.StatusApproved, nil, 7, time.Now()), ErrStaleState)

	got, err := repo.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, note, *got.AdminNote)
	assert.Equal(t, int64(7), *got.ResolvedBy)

	_, err = repo.GetWithdrawalForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

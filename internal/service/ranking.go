package service

import (
	"context"
	"time"

	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

// DefaultRankingLimit is the size of the leaderboards shown to players.
const DefaultRankingLimit = 10

// RankingService handles leaderboards.
type RankingService struct {
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
	timezone   *time.Location
	now        func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(
	userRepo *repository.UserRepository,
	ledgerRepo *repository.LedgerRepository,
	timezone *time.Location,
) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		timezone:   timezone,
		now:        time.Now,
	}
}

func rankingLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return DefaultRankingLimit
	}
	return limit
}

// Leaderboard returns the regular players with the most wins, wallet as the
// tie-breaker.
func (s *RankingService) Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	entries, err := s.userRepo.Leaderboard(ctx, rankingLimit(limit))
	if err != nil {
		return nil, mapRepoErr(err, "get leaderboard")
	}
	return entries, nil
}

// DailyWinners returns today's biggest prize totals.
func (s *RankingService) DailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	today := s.now().In(s.timezone)
	ranks, err := s.ledgerRepo.DailyTotals(ctx, model.EntryGameWin, today, rankingLimit(limit))
	if err != nil {
		return nil, mapRepoErr(err, "get daily winners")
	}
	return ranks, nil
}

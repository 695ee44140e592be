package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/model"
	"bingo-bot/internal/repository"
)

// GameSettings are the tunables of a bingo round.
type GameSettings struct {
	BetOptions []int64
	HouseCut   decimal.Decimal
	Countdown  time.Duration
	MinPlayers int
}

// GameStatus is a game as seen by one requester.
type GameStatus struct {
	GameID         int64      `json:"game_id"`
	Status         string     `json:"status"`
	BetAmount      int64      `json:"bet_amount"`
	Players        []int64    `json:"players"`
	Drawn          []int      `json:"numbers_called"`
	CountdownStart *time.Time `json:"countdown_start,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	PrizeAmount    *int64     `json:"prize_amount,omitempty"`
	WinnerID       *int64     `json:"winner_id,omitempty"`
	Card           []int      `json:"card,omitempty"`
	Grid           *CardGrid  `json:"grid,omitempty"`
	CardAccepted   bool       `json:"card_accepted"`
}

// CardGrid is a card laid out row by row for display.
type CardGrid = [bingo.GridSize][bingo.GridSize]int

// CallResult is the outcome of drawing the next number.
type CallResult struct {
	Number    int   `json:"number"`
	Drawn     []int `json:"numbers_called"`
	Remaining int   `json:"remaining"`
}

// WinResult is the outcome of a valid bingo claim.
type WinResult struct {
	GameID int64 `json:"game_id"`
	Prize  int64 `json:"prize"`
	Line   []int `json:"line"`
}

// GameService runs bingo rounds: waiting -> started -> finished.
type GameService struct {
	pool     TxRunner
	gameRepo *repository.GameRepository
	cardRepo *repository.CardRepository
	userRepo *repository.UserRepository
	ledger   *Ledger
	admins   *Admins
	settings GameSettings
	rng      bingo.Rand
	now      func() time.Time
}

// NewGameService creates a new GameService instance.
func NewGameService(
	pool TxRunner,
	gameRepo *repository.GameRepository,
	cardRepo *repository.CardRepository,
	userRepo *repository.UserRepository,
	ledger *Ledger,
	admins *Admins,
	settings GameSettings,
) *GameService {
	if settings.MinPlayers < 2 {
		settings.MinPlayers = 2
	}
	return &GameService{
		pool:     pool,
		gameRepo: gameRepo,
		cardRepo: cardRepo,
		userRepo: userRepo,
		ledger:   ledger,
		admins:   admins,
		settings: settings,
		rng:      bingo.DefaultRand,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *GameService) SetClock(now func() time.Time) {
	s.now = now
}

// SetRand replaces the number caller's random source.
func (s *GameService) SetRand(r bingo.Rand) {
	s.rng = r
}

func (s *GameService) isBetOption(bet int64) bool {
	for _, option := range s.settings.BetOptions {
		if option == bet {
			return true
		}
	}
	return false
}

func gameRef(gameID int64) string {
	return fmt.Sprintf("game:%d", gameID)
}

// shouldAutoStart reports whether a waiting game's countdown has run out
// with enough players on the roster.
func shouldAutoStart(status string, countdownStart *time.Time, players, minPlayers int, now time.Time, countdown time.Duration) bool {
	if status != model.GameWaiting || countdownStart == nil || players < minPlayers {
		return false
	}
	return now.Sub(*countdownStart) >= countdown
}

// Create opens a waiting game at one of the configured bets.
func (s *GameService) Create(ctx context.Context, actorID, bet int64) (*model.Game, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !s.isBetOption(bet) {
		return nil, ErrInvalidBet
	}

	game, err := s.gameRepo.Create(ctx, bet, actorID)
	if err != nil {
		return nil, mapRepoErr(err, "create game")
	}

	log.Info().Int64("game_id", game.ID).Int64("bet", bet).Int64("admin_id", actorID).Msg("Game created")
	return game, nil
}

// Join stakes bet and puts userID on the roster with an empty card. The
// first joiner starts the countdown.
func (s *GameService) Join(ctx context.Context, gameID, userID, bet int64) error {
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if game.Status != model.GameWaiting {
			return ErrNotJoinable
		}

		joined, err := games.IsPlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		if bet != game.BetAmount {
			return ErrBetMismatch
		}

		if _, err := s.ledger.Debit(ctx, tx, userID, bet, model.EntryGameBet, gameRef(gameID)); err != nil {
			return err
		}

		if err := games.AddPlayer(ctx, gameID, userID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyJoined
			}
			return err
		}
		if err := s.cardRepo.WithTx(tx).CreatePlaceholder(ctx, gameID, userID); err != nil {
			return err
		}

		return games.SetCountdown(ctx, gameID, s.now())
	})
	if err != nil {
		return err
	}

	log.Info().Int64("game_id", gameID).Int64("user_id", userID).Int64("bet", bet).Msg("Player joined game")
	return nil
}

// SelectNumber generates the player's card from seed. A card can be drawn
// only once per game.
func (s *GameService) SelectNumber(ctx context.Context, gameID, userID int64, seed int) (*model.PlayerCard, error) {
	if !bingo.ValidSeed(seed) {
		return nil, ErrInvalidSeed
	}

	var card *model.PlayerCard
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)
		cards := s.cardRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if game.Status != model.GameWaiting {
			return ErrGameNotWaiting
		}

		joined, err := games.IsPlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if !joined {
			return ErrNotInGame
		}

		numbers := bingo.GenerateCard(int64(seed))
		ok, err := cards.SetNumbers(ctx, gameID, userID, seed, numbers)
		if err != nil {
			return err
		}

		card, err = cards.Get(ctx, gameID, userID)
		if err != nil {
			return mapRepoErr(err, "get card")
		}
		if !ok {
			return ErrAlreadySelected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// AcceptCard confirms the player's generated card.
func (s *GameService) AcceptCard(ctx context.Context, gameID, userID int64) error {
	if _, err := s.gameRepo.Get(ctx, gameID); err != nil {
		return mapRepoErr(err, "get game")
	}

	ok, err := s.cardRepo.Accept(ctx, gameID, userID)
	if err != nil {
		return mapRepoErr(err, "accept card")
	}
	if !ok {
		return ErrCardNotFound
	}
	return nil
}

// Status returns the game as requesterID sees it, starting it first if its
// countdown has run out. Non-players may only look at waiting games.
func (s *GameService) Status(ctx context.Context, gameID, requesterID int64) (*GameStatus, error) {
	game, err := s.gameRepo.Get(ctx, gameID)
	if err != nil {
		return nil, mapRepoErr(err, "get game")
	}
	players, err := s.gameRepo.Players(ctx, gameID)
	if err != nil {
		return nil, mapRepoErr(err, "get players")
	}

	if shouldAutoStart(game.Status, game.CountdownStart, len(players), s.settings.MinPlayers, s.now(), s.settings.Countdown) {
		if err := s.autoStart(ctx, gameID); err != nil {
			return nil, err
		}
		if game, err = s.gameRepo.Get(ctx, gameID); err != nil {
			return nil, mapRepoErr(err, "get game")
		}
	}

	if err := s.gameRepo.Load(ctx, game); err != nil {
		return nil, mapRepoErr(err, "load game")
	}

	member := game.HasPlayer(requesterID)
	if !member && game.Status != model.GameWaiting {
		return nil, ErrNotInGame
	}

	status := &GameStatus{
		GameID:         game.ID,
		Status:         game.Status,
		BetAmount:      game.BetAmount,
		Players:        game.Players,
		Drawn:          game.Drawn,
		CountdownStart: game.CountdownStart,
		StartTime:      game.StartTime,
		EndTime:        game.EndTime,
		PrizeAmount:    game.PrizeAmount,
		WinnerID:       game.WinnerID,
	}

	if member {
		card, err := s.cardRepo.Get(ctx, gameID, requesterID)
		switch {
		case err == nil:
			grid := bingo.Grid(card.Numbers)
			status.Card = card.Numbers
			status.Grid = &grid
			status.CardAccepted = card.Accepted
		case !errors.Is(err, repository.ErrCardNotFound):
			return nil, mapRepoErr(err, "get card")
		}
	}

	return status, nil
}

// autoStart re-checks the start condition under the game lock so that only
// one concurrent reader performs the transition.
func (s *GameService) autoStart(ctx context.Context, gameID int64) error {
	started := false
	var prize int64

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		count, err := games.CountPlayers(ctx, gameID)
		if err != nil {
			return err
		}

		now := s.now()
		if !shouldAutoStart(game.Status, game.CountdownStart, count, s.settings.MinPlayers, now, s.settings.Countdown) {
			return nil
		}

		prize = bingo.Pool(game.BetAmount, count)
		if err := games.Start(ctx, gameID, now, prize); err != nil {
			return err
		}
		started = true
		return nil
	})
	if err != nil {
		return err
	}

	if started {
		log.Info().Int64("game_id", gameID).Int64("pool", prize).Msg("Game auto-started")
	}
	return nil
}

// AdminStart starts a waiting game ahead of its countdown.
func (s *GameService) AdminStart(ctx context.Context, actorID, gameID, bet int64) (int64, error) {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return 0, err
	}

	var prize int64
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if game.Status != model.GameWaiting {
			return ErrGameNotWaiting
		}
		if bet != game.BetAmount {
			return ErrBetMismatch
		}

		count, err := games.CountPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if count < s.settings.MinPlayers {
			return ErrNotEnoughPlayers
		}

		prize = bingo.Pool(game.BetAmount, count)
		return games.Start(ctx, gameID, s.now(), prize)
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("game_id", gameID).Int64("admin_id", actorID).Int64("pool", prize).Msg("Game started by admin")
	return prize, nil
}

// CallNumber draws the next number of a started game. Only players on the
// roster and admins may call.
func (s *GameService) CallNumber(ctx context.Context, gameID, callerID int64) (*CallResult, error) {
	admin, err := s.admins.IsAdmin(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var result *CallResult
	err = s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if !admin {
			joined, err := games.IsPlayer(ctx, gameID, callerID)
			if err != nil {
				return err
			}
			if !joined {
				return ErrNotInGame
			}
		}
		if game.Status != model.GameStarted {
			return ErrGameNotStarted
		}
		if game.EndTime != nil && s.now().After(*game.EndTime) {
			return ErrGameNotStarted
		}

		drawn, err := games.Drawn(ctx, gameID)
		if err != nil {
			return err
		}

		n, err := bingo.Draw(drawn, s.rng)
		if err != nil {
			if errors.Is(err, bingo.ErrExhausted) {
				return ErrExhausted
			}
			return err
		}

		if err := games.AddNumber(ctx, gameID, len(drawn)+1, n); err != nil {
			return err
		}

		drawn = append(drawn, n)
		result = &CallResult{
			Number:    n,
			Drawn:     drawn,
			Remaining: bingo.Remaining(drawn),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CheckWin settles a bingo claim. A valid claim finishes the game and pays
// the prize. An invalid claim removes the claimant from the roster, forfeits
// the stake and returns ErrKicked once that removal is committed.
func (s *GameService) CheckWin(ctx context.Context, gameID, claimantID int64) (*WinResult, error) {
	var (
		result *WinResult
		kicked bool
	)

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)
		cards := s.cardRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if game.WinnerID != nil || game.Status == model.GameFinished {
			return ErrGameOver
		}
		if game.Status != model.GameStarted {
			return ErrGameNotStarted
		}

		joined, err := games.IsPlayer(ctx, gameID, claimantID)
		if err != nil {
			return err
		}
		if !joined {
			return ErrNotInGame
		}

		card, err := cards.Get(ctx, gameID, claimantID)
		if err != nil {
			return mapRepoErr(err, "get card")
		}
		if !card.Generated() {
			return ErrCardNotFound
		}

		drawn, err := games.Drawn(ctx, gameID)
		if err != nil {
			return err
		}

		line := bingo.WinningLine(card.Numbers, drawn)
		if line == nil {
			if _, err := games.RemovePlayer(ctx, gameID, claimantID); err != nil {
				return err
			}
			if err := cards.Delete(ctx, gameID, claimantID); err != nil {
				return err
			}
			if err := s.userRepo.WithTx(tx).IncrementInvalidBingo(ctx, claimantID); err != nil {
				return mapRepoErr(err, "record invalid bingo")
			}
			kicked = true
			return nil
		}

		count, err := games.CountPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		prize := bingo.Payout(bingo.Pool(game.BetAmount, count), s.settings.HouseCut)

		if err := games.Finish(ctx, gameID, &claimantID, &prize, s.now()); err != nil {
			return err
		}
		if prize > 0 {
			if _, err := s.ledger.Credit(ctx, tx, claimantID, prize, model.EntryGameWin, gameRef(gameID)); err != nil {
				return err
			}
		}
		if err := s.userRepo.WithTx(tx).IncrementScore(ctx, claimantID); err != nil {
			return mapRepoErr(err, "increment score")
		}

		result = &WinResult{GameID: gameID, Prize: prize, Line: line}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if kicked {
		log.Warn().Int64("game_id", gameID).Int64("user_id", claimantID).Msg("Invalid bingo claim, player removed")
		return nil, ErrKicked
	}

	log.Info().
		Int64("game_id", gameID).
		Int64("winner_id", claimantID).
		Int64("prize", result.Prize).
		Msg("Bingo! Game finished")

	return result, nil
}

// AdminEnd finishes a started game without a winner or payout.
func (s *GameService) AdminEnd(ctx context.Context, actorID, gameID int64) error {
	if err := s.admins.RequireAdmin(ctx, actorID); err != nil {
		return err
	}

	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		games := s.gameRepo.WithTx(tx)

		game, err := games.GetForUpdate(ctx, gameID)
		if err != nil {
			return mapRepoErr(err, "get game")
		}
		if game.Status != model.GameStarted {
			return ErrGameNotStarted
		}
		return games.Finish(ctx, gameID, nil, nil, s.now())
	})
	if err != nil {
		return err
	}

	log.Info().Int64("game_id", gameID).Int64("admin_id", actorID).Msg("Game ended by admin")
	return nil
}

// Available lists waiting games, plus an empty entry for every configured
// bet that has no waiting game.
func (s *GameService) Available(ctx context.Context) ([]*model.GameSummary, error) {
	games, err := s.gameRepo.ListWaiting(ctx)
	if err != nil {
		return nil, mapRepoErr(err, "list games")
	}

	open := make(map[int64]bool, len(games))
	for _, g := range games {
		open[g.BetAmount] = true
	}
	for _, bet := range s.settings.BetOptions {
		if !open[bet] {
			games = append(games, &model.GameSummary{BetAmount: bet})
		}
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].BetAmount < games[j].BetAmount
	})
	return games, nil
}

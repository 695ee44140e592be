// Package httpapi serves the JSON API used by the web client.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/config"
	"bingo-bot/internal/model"
	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

const shutdownTimeout = 10 * time.Second

// AccountService is the part of the account service the API uses.
type AccountService interface {
	Profile(ctx context.Context, userID int64) (*model.User, int64, error)
	Promote(ctx context.Context, actorID, targetID int64) error
	Kick(ctx context.Context, actorID, targetID int64) error
}

// ReferralService is the part of the referral service the API uses.
type ReferralService interface {
	InviteInfo(ctx context.Context, userID int64) (*service.InviteInfo, error)
}

// RankingService is the part of the ranking service the API uses.
type RankingService interface {
	Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)
	DailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error)
}

// GameService is the part of the game service the API uses.
type GameService interface {
	Available(ctx context.Context) ([]*model.GameSummary, error)
	Create(ctx context.Context, actorID, bet int64) (*model.Game, error)
	Status(ctx context.Context, gameID, requesterID int64) (*service.GameStatus, error)
	Join(ctx context.Context, gameID, userID, bet int64) error
	SelectNumber(ctx context.Context, gameID, userID int64, seed int) (*model.PlayerCard, error)
	AcceptCard(ctx context.Context, gameID, userID int64) error
	CallNumber(ctx context.Context, gameID, callerID int64) (*service.CallResult, error)
	CheckWin(ctx context.Context, gameID, claimantID int64) (*service.WinResult, error)
	AdminStart(ctx context.Context, actorID, gameID, bet int64) (int64, error)
	AdminEnd(ctx context.Context, actorID, gameID int64) error
}

// PaymentService is the part of the payment service the API uses.
type PaymentService interface {
	InitiateDeposit(ctx context.Context, userID, amount int64, method string) (*model.Deposit, error)
	VerifyDepositByCode(ctx context.Context, userID int64, code string) (*model.Deposit, error)
	VerifyDeposit(ctx context.Context, actorID int64, depositID uuid.UUID) (*model.Deposit, error)
	RequestWithdrawal(ctx context.Context, userID, amount int64, method string) (*model.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, actorID int64, withdrawalID uuid.UUID, approve bool, note string) (*model.Withdrawal, error)
	PendingWithdrawals(ctx context.Context, actorID int64) ([]*model.Withdrawal, error)
	PendingDeposits(ctx context.Context, actorID int64) ([]*model.Deposit, error)
}

// TokenParser resolves a launch token to a user id.
type TokenParser interface {
	Parse(token string) (int64, error)
}

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators of the API.
type Deps struct {
	Accounts  AccountService
	Referrals ReferralService
	Rankings  RankingService
	Games     GameService
	Payments  PaymentService
	Tokens    TokenParser
	Health    HealthChecker
	Locks     *lock.UserLock
}

// Server is the HTTP front end.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
}

// NewServer builds the router and the listener configuration.
func NewServer(cfg *config.HTTPConfig, deps Deps) *Server {
	if deps.Locks == nil {
		deps.Locks = lock.NewUserLock(lock.DefaultWait)
	}

	engine := gin.New()
	engine.Use(recoveryMiddleware(), loggerMiddleware())

	h := &handler{deps: deps}
	registerRoutes(engine, h, deps.Tokens)

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("HTTP API listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func registerRoutes(r *gin.Engine, h *handler, tokens TokenParser) {
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.Use(authMiddleware(tokens))
	{
		api.GET("/me", h.me)
		api.GET("/leaderboard", h.leaderboard)
		api.GET("/winners", h.dailyWinners)
		api.GET("/invite", h.invite)

		games := api.Group("/games")
		{
			games.GET("", h.listGames)
			games.POST("", h.createGame)
			games.GET("/:id", h.gameStatus)
			games.POST("/:id/join", h.joinGame)
			games.POST("/:id/select", h.selectNumber)
			games.POST("/:id/accept", h.acceptCard)
			games.POST("/:id/call", h.callNumber)
			games.POST("/:id/bingo", h.checkWin)
			games.POST("/:id/start", h.startGame)
			games.POST("/:id/end", h.endGame)
		}

		api.POST("/deposits", h.initiateDeposit)
		api.POST("/deposits/verify", h.verifyDepositByCode)
		api.POST("/withdrawals", h.requestWithdrawal)

		admin := api.Group("/admin")
		{
			admin.GET("/withdrawals", h.pendingWithdrawals)
			admin.POST("/withdrawals/:id/resolve", h.resolveWithdrawal)
			admin.GET("/deposits", h.pendingDeposits)
			admin.POST("/deposits/:id/verify", h.verifyDeposit)
			admin.POST("/users/:id/promote", h.promoteUser)
			admin.DELETE("/users/:id", h.kickUser)
		}
	}
}

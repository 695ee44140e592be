// Package main is the entry point for the Bingo bot and its web API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bingo-bot/internal/bot"
	"bingo-bot/internal/config"
	"bingo-bot/internal/httpapi"
	"bingo-bot/internal/pkg/auth"
	"bingo-bot/internal/pkg/db"
	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/repository"
	"bingo-bot/internal/service"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(&cfg.Log)

	if cfg.Auth.Secret == "" {
		log.Fatal().Msg("auth.secret (AUTH_SECRET) is required")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	houseCut, err := cfg.Game.HouseCutDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid house cut")
	}

	userRepo := repository.NewUserRepository(dbPool)
	ledgerRepo := repository.NewLedgerRepository(dbPool)
	referralRepo := repository.NewReferralRepository(dbPool)
	gameRepo := repository.NewGameRepository(dbPool)
	cardRepo := repository.NewCardRepository(dbPool)
	paymentRepo := repository.NewPaymentRepository(dbPool)

	admins := service.NewAdmins(userRepo, cfg.Admin.IDs)
	ledger := service.NewLedger(dbPool, userRepo, ledgerRepo, admins)
	referralService := service.NewReferralService(
		dbPool,
		userRepo,
		referralRepo,
		ledger,
		cfg.Referral.Threshold,
		cfg.Referral.Bonus,
		cfg.Bot.Username,
	)
	accountService := service.NewAccountService(
		dbPool,
		userRepo,
		ledger,
		referralService,
		admins,
		cfg.Wallet.InitialBalance,
	)
	gameService := service.NewGameService(
		dbPool,
		gameRepo,
		cardRepo,
		userRepo,
		ledger,
		admins,
		service.GameSettings{
			BetOptions: cfg.Game.BetOptions,
			HouseCut:   houseCut,
			Countdown:  cfg.Game.Countdown,
			MinPlayers: cfg.Game.MinPlayers,
		},
	)
	paymentService := service.NewPaymentService(
		dbPool,
		paymentRepo,
		userRepo,
		ledger,
		referralService,
		admins,
		service.PaymentSettings{
			MinDeposit:    cfg.Payment.MinDeposit,
			MinWithdrawal: cfg.Payment.MinWithdrawal,
			Methods:       cfg.Payment.Methods,
		},
	)
	rankingService := service.NewRankingService(userRepo, ledgerRepo, time.Local)

	issuer := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	userLock := lock.NewUserLock(lock.DefaultWait)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:          cfg,
		AccountService:  accountService,
		ReferralService: referralService,
		GameService:     gameService,
		PaymentService:  paymentService,
		RankingService:  rankingService,
		Ledger:          ledger,
		Issuer:          issuer,
		UserLock:        userLock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := httpapi.NewServer(&cfg.HTTP, httpapi.Deps{
		Accounts:  accountService,
		Referrals: referralService,
		Rankings:  rankingService,
		Games:     gameService,
		Payments:  paymentService,
		Tokens:    issuer,
		Health:    dbPool,
		Locks:     userLock,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return telegramBot.Run(gctx) })
	g.Go(func() error { return api.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown with error")
		return
	}
	log.Info().Msg("Stopped gracefully")
}

func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/config"
	"bingo-bot/internal/handler"
	"bingo-bot/internal/pkg/auth"
	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

const (
	pendingSignupTTL   = 24 * time.Hour
	pendingSweepPeriod = time.Hour
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	pending *handler.PendingSignups

	accountHandler *handler.AccountHandler
	gameHandler    *handler.GameHandler
	paymentHandler *handler.PaymentHandler
	adminHandler   *handler.AdminHandler
	rankingHandler *handler.RankingHandler
	accountService *service.AccountService
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config          *config.Config
	AccountService  *service.AccountService
	ReferralService *service.ReferralService
	GameService     *service.GameService
	PaymentService  *service.PaymentService
	RankingService  *service.RankingService
	Ledger          *service.Ledger
	Issuer          *auth.Issuer
	UserLock        *lock.UserLock
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		pending:        handler.NewPendingSignups(pendingSignupTTL),
		accountService: deps.AccountService,
	}

	b.accountHandler = handler.NewAccountHandler(deps.AccountService, deps.ReferralService, deps.Ledger, b.pending, deps.UserLock)
	b.gameHandler = handler.NewGameHandler(deps.GameService, deps.AccountService, deps.Issuer, deps.Config.WebApp.URL)
	b.paymentHandler = handler.NewPaymentHandler(deps.PaymentService, deps.Config.Payment.Methods, deps.UserLock)
	b.adminHandler = handler.NewAdminHandler(deps.AccountService, deps.Ledger, deps.UserLock)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/register", b.accountHandler.HandleRegister)
	b.bot.Handle(tele.OnContact, b.accountHandler.HandleContact)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/invite", b.accountHandler.HandleInvite)

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/winners", b.rankingHandler.HandleWinners)

	b.bot.Handle("/games", b.gameHandler.HandleGames)
	b.bot.Handle("/play", b.gameHandler.HandlePlay)

	b.bot.Handle("/deposit", b.paymentHandler.HandleDeposit)
	b.bot.Handle("/withdraw", b.paymentHandler.HandleWithdraw)
	b.bot.Handle(tele.OnText, b.paymentHandler.HandleText)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.accountService))
	adminGroup.Handle("/newgame", b.gameHandler.HandleNewGame)
	adminGroup.Handle("/startgame", b.gameHandler.HandleStartGame)
	adminGroup.Handle("/endgame", b.gameHandler.HandleEndGame)
	adminGroup.Handle("/deposits", b.paymentHandler.HandleDeposits)
	adminGroup.Handle("/verify", b.paymentHandler.HandleVerify)
	adminGroup.Handle("/withdrawals", b.paymentHandler.HandleWithdrawals)
	adminGroup.Handle("/approve", b.paymentHandler.HandleApprove)
	adminGroup.Handle("/reject", b.paymentHandler.HandleReject)
	adminGroup.Handle("/promote", b.adminHandler.HandlePromote)
	adminGroup.Handle("/kick", b.adminHandler.HandleKick)
	adminGroup.Handle("/credit", b.adminHandler.HandleCredit)
	adminGroup.Handle("/debit", b.adminHandler.HandleDebit)
	adminGroup.Handle("/broadcast", b.adminHandler.HandleBroadcast)
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")

	go b.sweepPending(ctx)
	go b.bot.Start()

	<-ctx.Done()
	b.Stop()
	return nil
}

func (b *Bot) sweepPending(ctx context.Context) {
	ticker := time.NewTicker(pendingSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.pending.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("Expired pending signups removed")
			}
		}
	}
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

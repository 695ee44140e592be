package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

// broadcastDelay keeps broadcasts under Telegram's per-bot send rate.
const broadcastDelay = 50 * time.Millisecond

// AdminHandler handles admin-only account commands.
type AdminHandler struct {
	accountService *service.AccountService
	ledger         *service.Ledger
	userLock       *lock.UserLock
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService, ledger *service.Ledger, userLock *lock.UserLock) *AdminHandler {
	return &AdminHandler{
		accountService: accountService,
		ledger:         ledger,
		userLock:       userLock,
	}
}

// HandlePromote handles /promote <user_id>.
func (h *AdminHandler) HandlePromote(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 1, "❌ Usage: /promote <user_id>")
	if err != nil {
		return c.Reply(err.Error())
	}

	if err := h.accountService.Promote(context.Background(), sender.ID, args[0]); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ User %d is now an admin", args[0]))
}

// HandleKick handles /kick <user_id>.
func (h *AdminHandler) HandleKick(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 1, "❌ Usage: /kick <user_id>")
	if err != nil {
		return c.Reply(err.Error())
	}

	if err := h.accountService.Kick(context.Background(), sender.ID, args[0]); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ User %d removed", args[0]))
}

// HandleCredit handles /credit <user_id> <amount>.
func (h *AdminHandler) HandleCredit(c tele.Context) error {
	return h.adjust(c, 1, "❌ Usage: /credit <user_id> <amount>\nExample: /credit 123456789 100")
}

// HandleDebit handles /debit <user_id> <amount>.
func (h *AdminHandler) HandleDebit(c tele.Context) error {
	return h.adjust(c, -1, "❌ Usage: /debit <user_id> <amount>\nExample: /debit 123456789 100")
}

func (h *AdminHandler) adjust(c tele.Context, sign int64, usage string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 2, usage)
	if err != nil {
		return c.Reply(err.Error())
	}
	targetID, amount := args[0], args[1]
	if amount <= 0 {
		return c.Reply("❌ Amount must be greater than 0")
	}

	ctx := context.Background()
	var balance int64
	err = h.userLock.Do(ctx, targetID, func() error {
		var err error
		balance, err = h.ledger.AdminAdjust(ctx, sender.ID, targetID, sign*amount)
		return err
	})
	if err != nil {
		return replyError(c, err)
	}

	label := "➕ Added:"
	if sign < 0 {
		label = "➖ Removed:"
	}
	return c.Reply(fmt.Sprintf("✅ Done\n\n👤 User: %d\n%s %d\n💰 Wallet: %d", targetID, label, amount, balance))
}

// HandleBroadcast handles /broadcast <message>, sending it to every user.
func (h *AdminHandler) HandleBroadcast(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return c.Reply("❌ Usage: /broadcast <message>")
	}

	ids, err := h.accountService.UserIDs(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	_ = c.Reply(fmt.Sprintf("📣 Sending to %d users...", len(ids)))

	bot := c.Bot()
	go func() {
		sent := broadcast(bot, ids, "📣 "+text, broadcastDelay)
		log.Info().
			Int64("admin_id", sender.ID).
			Int("recipients", len(ids)).
			Int("sent", sent).
			Msg("Broadcast finished")
	}()
	return nil
}

// broadcast sends text to each user in turn and returns how many sends
// succeeded.
func broadcast(b messenger, ids []int64, text string, delay time.Duration) int {
	sent := 0
	for i, id := range ids {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}
		if _, err := b.Send(&tele.User{ID: id}, text); err != nil {
			log.Debug().Err(err).Int64("user_id", id).Msg("Broadcast send failed")
			continue
		}
		sent++
	}
	return sent
}

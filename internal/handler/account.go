package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

const historyLimit = 10

// AccountHandler handles registration and wallet commands.
type AccountHandler struct {
	accountService  *service.AccountService
	referralService *service.ReferralService
	ledger          *service.Ledger
	pending         *PendingSignups
	userLock        *lock.UserLock
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accountService *service.AccountService,
	referralService *service.ReferralService,
	ledger *service.Ledger,
	pending *PendingSignups,
	userLock *lock.UserLock,
) *AccountHandler {
	return &AccountHandler{
		accountService:  accountService,
		referralService: referralService,
		ledger:          ledger,
		pending:         pending,
		userLock:        userLock,
	}
}

// HandleStart handles /start [ref_<id>].
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if referrerID, ok := ParseReferralPayload(c.Message().Payload); ok {
		h.pending.SetReferrer(sender.ID, referrerID)
		log.Debug().Int64("user_id", sender.ID).Int64("referrer_id", referrerID).Msg("Referral link opened")
	}

	user, err := h.accountService.GetUser(context.Background(), sender.ID)
	if err == nil {
		return c.Reply(fmt.Sprintf(
			"👋 Welcome back %s!\n\n💰 Wallet: %d\n\n/games - open games\n/play - open the bingo board",
			displayName(user.Username, user.UserID), user.Wallet,
		))
	}

	menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	menu.Reply(menu.Row(menu.Contact("📱 Share phone number")))

	return c.Reply(
		"🎱 Welcome to Bingo!\n\n"+
			"1. Share your phone number with the button below (optional)\n"+
			"2. Register with /register <username>\n\n"+
			"Usernames are 3-20 characters.",
		menu,
	)
}

// HandleContact stores the phone number a user shares before registering.
func (h *AccountHandler) HandleContact(c tele.Context) error {
	sender := c.Sender()
	contact := c.Message().Contact
	if sender == nil || contact == nil {
		return nil
	}
	if contact.UserID != sender.ID {
		return c.Reply("❌ Please share your own contact")
	}

	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	h.pending.SetContact(sender.ID, contact.PhoneNumber, name)
	return c.Reply("✅ Phone number saved. Now register with /register <username>", &tele.ReplyMarkup{RemoveKeyboard: true})
}

// HandleRegister handles /register <username>.
func (h *AccountHandler) HandleRegister(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /register <username>\nExample: /register lucky_star")
	}

	if !service.ValidUsername(strings.TrimSpace(args[0])) {
		return replyError(c, service.ErrInvalidUsername)
	}

	// kept until the account exists so a failed attempt can be retried
	signup := h.pending.Peek(sender.ID)
	name := signup.Name
	if name == "" {
		name = strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	}

	ctx := context.Background()
	var registered string
	var wallet int64
	err := h.userLock.Do(ctx, sender.ID, func() error {
		user, err := h.accountService.Register(ctx, service.RegisterRequest{
			UserID:     sender.ID,
			Username:   args[0],
			Name:       name,
			Phone:      signup.Phone,
			ReferrerID: signup.ReferrerID,
		})
		if err != nil {
			return err
		}
		registered, wallet = user.Username, user.Wallet
		return nil
	})
	if err != nil {
		return replyError(c, err)
	}
	h.pending.Forget(sender.ID)

	return c.Reply(fmt.Sprintf(
		"🎉 Registered as @%s\n\n"+
			"💰 Starting wallet: %d\n\n"+
			"Commands:\n"+
			"/games - open games\n"+
			"/play - open the bingo board\n"+
			"/balance - wallet and referral bonus\n"+
			"/deposit <amount> <method> - top up\n"+
			"/withdraw <amount> [method] - cash out\n"+
			"/invite - your referral link",
		registered, wallet,
	))
}

// HandleBalance handles /balance. Settles any complete referral batch first.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := context.Background()
	user, bonus, err := h.accountService.Profile(ctx, sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	msg := fmt.Sprintf(
		"📊 Account\n%s\n👤 %s\n💰 Wallet: %d\n🏆 Score: %d\n🎟 Referral code: %s\n%s",
		divider, displayName(user.Username, user.UserID), user.Wallet, user.Score, user.ReferralCode, divider,
	)
	if bonus > 0 {
		msg += fmt.Sprintf("\n🎁 Referral bonus credited: +%d", bonus)
	}
	return c.Reply(msg)
}

// HandleHistory handles /history.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entries, err := h.ledger.History(context.Background(), sender.ID, historyLimit)
	if err != nil {
		return replyError(c, err)
	}
	if len(entries) == 0 {
		return c.Reply("📜 No wallet activity yet")
	}

	var b strings.Builder
	b.WriteString("📜 Recent activity\n" + divider + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %+d → %d (%s)\n", e.CreatedAt.Format("01-02 15:04"), e.Amount, e.BalanceAfter, e.Type)
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleInvite handles /invite.
func (h *AccountHandler) HandleInvite(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	info, err := h.referralService.InviteInfo(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"🤝 Invite friends\n\n"+
			"🔗 %s\n\n"+
			"👥 Invited: %d\n"+
			"🎁 Every %d friends earn you %d",
		info.Link, info.Count, info.Threshold, info.Bonus,
	))
}

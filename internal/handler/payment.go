package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/model"
	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

// PaymentHandler handles deposits and withdrawals.
type PaymentHandler struct {
	paymentService *service.PaymentService
	methods        []string
	userLock       *lock.UserLock
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, methods []string, userLock *lock.UserLock) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		methods:        methods,
		userLock:       userLock,
	}
}

func (h *PaymentHandler) methodList() string {
	return strings.Join(h.methods, ", ")
}

// HandleDeposit handles /deposit <amount> <method>.
func (h *PaymentHandler) HandleDeposit(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	usage := fmt.Sprintf("❌ Usage: /deposit <amount> <method>\nMethods: %s", h.methodList())
	if len(args) < 2 {
		return c.Reply(usage)
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply(usage)
	}

	deposit, err := h.paymentService.InitiateDeposit(context.Background(), sender.ID, amount, args[1])
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"🧾 Deposit request\n%s\n"+
			"💵 Amount: %d\n"+
			"🏦 Method: %s\n"+
			"🔑 Code: %s\n%s\n"+
			"Send %d with the code as the payment reference, then send the code here to confirm.",
		divider, deposit.Amount, deposit.Method, deposit.VerificationCode, divider, deposit.Amount,
	))
}

// HandleText confirms a deposit when a private message is a bare
// verification code. Anything else is ignored.
func (h *PaymentHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}

	code := strings.ToUpper(strings.TrimSpace(c.Text()))
	if !service.IsVerificationCode(code) {
		return nil
	}

	ctx := context.Background()
	var deposit *model.Deposit
	err := h.userLock.Do(ctx, sender.ID, func() error {
		var err error
		deposit, err = h.paymentService.VerifyDepositByCode(ctx, sender.ID, code)
		return err
	})
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Deposit of %d confirmed", deposit.Amount))
}

// HandleWithdraw handles /withdraw <amount> [method]. The amount is held
// until an admin resolves the request.
func (h *PaymentHandler) HandleWithdraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	usage := fmt.Sprintf("❌ Usage: /withdraw <amount> [method]\nMethods: %s", h.methodList())
	if len(args) < 1 {
		return c.Reply(usage)
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply(usage)
	}
	method := ""
	if len(args) > 1 {
		method = args[1]
	} else if len(h.methods) > 0 {
		method = h.methods[0]
	}

	ctx := context.Background()
	var withdrawal *model.Withdrawal
	err = h.userLock.Do(ctx, sender.ID, func() error {
		var err error
		withdrawal, err = h.paymentService.RequestWithdrawal(ctx, sender.ID, amount, method)
		return err
	})
	if err != nil {
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"📤 Withdrawal requested\n%s\n💵 Amount: %d\n🏦 Method: %s\n🆔 %s\n%s\nAn admin will review it shortly.",
		divider, withdrawal.Amount, withdrawal.Method, withdrawal.ID, divider,
	))
}

// HandleDeposits handles /deposits, the pending deposit queue.
func (h *PaymentHandler) HandleDeposits(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	deposits, err := h.paymentService.PendingDeposits(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	if len(deposits) == 0 {
		return c.Reply("📭 No pending deposits")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Pending deposits\n%s\n", divider)
	for _, d := range deposits {
		fmt.Fprintf(&b, "%s\n  user %d · %d via %s · code %s\n", d.ID, d.UserID, d.Amount, d.Method, d.VerificationCode)
	}
	b.WriteString(divider + "\n/verify <deposit_id> to credit")
	return c.Reply(b.String())
}

// HandleVerify handles /verify <deposit_id>.
func (h *PaymentHandler) HandleVerify(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	id, ok := parseUUIDArg(c.Args())
	if !ok {
		return c.Reply("❌ Usage: /verify <deposit_id>")
	}

	deposit, err := h.paymentService.VerifyDeposit(context.Background(), sender.ID, id)
	if err != nil {
		return replyError(c, err)
	}

	notify(c.Bot(), deposit.UserID, fmt.Sprintf("✅ Your deposit of %d has been confirmed", deposit.Amount))
	return c.Reply(fmt.Sprintf("✅ Deposit %s verified, %d credited to user %d", deposit.ID, deposit.Amount, deposit.UserID))
}

// HandleWithdrawals handles /withdrawals, the pending withdrawal queue.
func (h *PaymentHandler) HandleWithdrawals(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	withdrawals, err := h.paymentService.PendingWithdrawals(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	if len(withdrawals) == 0 {
		return c.Reply("📭 No pending withdrawals")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📤 Pending withdrawals\n%s\n", divider)
	for _, w := range withdrawals {
		fmt.Fprintf(&b, "%s\n  user %d · %d via %s\n", w.ID, w.UserID, w.Amount, w.Method)
	}
	b.WriteString(divider + "\n/approve <id> [note] or /reject <id> [note]")
	return c.Reply(b.String())
}

// HandleApprove handles /approve <id> [note].
func (h *PaymentHandler) HandleApprove(c tele.Context) error {
	return h.resolve(c, true)
}

// HandleReject handles /reject <id> [note]; the held amount is refunded.
func (h *PaymentHandler) HandleReject(c tele.Context) error {
	return h.resolve(c, false)
}

func (h *PaymentHandler) resolve(c tele.Context, approve bool) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	id, ok := parseUUIDArg(args)
	if !ok {
		if approve {
			return c.Reply("❌ Usage: /approve <withdrawal_id> [note]")
		}
		return c.Reply("❌ Usage: /reject <withdrawal_id> [note]")
	}
	note := strings.Join(args[1:], " ")

	withdrawal, err := h.paymentService.ResolveWithdrawal(context.Background(), sender.ID, id, approve, note)
	if err != nil {
		return replyError(c, err)
	}

	userMsg := fmt.Sprintf("✅ Your withdrawal of %d was approved", withdrawal.Amount)
	if !approve {
		userMsg = fmt.Sprintf("↩️ Your withdrawal of %d was rejected and refunded", withdrawal.Amount)
	}
	if note != "" {
		userMsg += "\n📝 " + note
	}
	notify(c.Bot(), withdrawal.UserID, userMsg)

	return c.Reply(fmt.Sprintf("✅ Withdrawal %s %s", withdrawal.ID, withdrawal.Status))
}

func parseUUIDArg(args []string) (uuid.UUID, bool) {
	if len(args) < 1 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// messenger is satisfied by *tele.Bot.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// notify sends a private message, logging instead of failing when the user
// has blocked the bot.
func notify(b messenger, userID int64, text string) {
	if _, err := b.Send(&tele.User{ID: userID}, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to notify user")
	}
}

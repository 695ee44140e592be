package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/pkg/auth"
	"bingo-bot/internal/service"
)

// GameHandler handles game listing and admin round control.
type GameHandler struct {
	gameService    *service.GameService
	accountService *service.AccountService
	issuer         *auth.Issuer
	webAppURL      string
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	gameService *service.GameService,
	accountService *service.AccountService,
	issuer *auth.Issuer,
	webAppURL string,
) *GameHandler {
	return &GameHandler{
		gameService:    gameService,
		accountService: accountService,
		issuer:         issuer,
		webAppURL:      webAppURL,
	}
}

// HandleGames handles /games, one line per bet option.
func (h *GameHandler) HandleGames(c tele.Context) error {
	games, err := h.gameService.Available(context.Background())
	if err != nil {
		return replyError(c, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎱 Open games\n%s\n", divider)
	for _, g := range games {
		if g.ID == nil {
			fmt.Fprintf(&b, "💵 Bet %d: no game yet\n", g.BetAmount)
			continue
		}
		fmt.Fprintf(&b, "💵 Bet %d: game #%d, %d players\n", g.BetAmount, *g.ID, g.Players)
	}
	b.WriteString(divider + "\nUse /play to join from the board.")
	return c.Reply(b.String())
}

// LaunchURL returns the web client URL carrying a launch token for userID.
func LaunchURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse web app url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HandlePlay handles /play with a button that opens the web client.
func (h *GameHandler) HandlePlay(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if _, err := h.accountService.GetUser(context.Background(), sender.ID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Reply("❌ Register first with /register <username>")
		}
		return replyError(c, err)
	}

	token, err := h.issuer.Issue(sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	link, err := LaunchURL(h.webAppURL, token)
	if err != nil {
		return replyError(c, err)
	}

	menu := &tele.ReplyMarkup{}
	if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
		menu.Inline(menu.Row(menu.WebApp("🎱 Play Bingo", &tele.WebApp{URL: link})))
	} else {
		menu.Inline(menu.Row(menu.URL("🎱 Play Bingo", link)))
	}
	return c.Reply("Tap to open the bingo board:", menu)
}

// HandleNewGame handles /newgame <bet>.
func (h *GameHandler) HandleNewGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 1, "❌ Usage: /newgame <bet>\nExample: /newgame 20")
	if err != nil {
		return c.Reply(err.Error())
	}

	game, err := h.gameService.Create(context.Background(), sender.ID, args[0])
	if err != nil {
		return replyError(c, err)
	}

	log.Info().Int64("admin_id", sender.ID).Int64("game_id", game.ID).Int64("bet", game.BetAmount).Msg("Game created from chat")
	return c.Reply(fmt.Sprintf("✅ Game #%d created with bet %d", game.ID, game.BetAmount))
}

// HandleStartGame handles /startgame <id> <bet>.
func (h *GameHandler) HandleStartGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 2, "❌ Usage: /startgame <game_id> <bet>\nExample: /startgame 12 20")
	if err != nil {
		return c.Reply(err.Error())
	}

	pool, err := h.gameService.AdminStart(context.Background(), sender.ID, args[0], args[1])
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🚀 Game #%d started\n💰 Pool: %d", args[0], pool))
}

// HandleEndGame handles /endgame <id>.
func (h *GameHandler) HandleEndGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args, err := parseInt64Args(c.Args(), 1, "❌ Usage: /endgame <game_id>")
	if err != nil {
		return c.Reply(err.Error())
	}

	if err := h.gameService.AdminEnd(context.Background(), sender.ID, args[0]); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🏁 Game #%d ended without a winner", args[0]))
}

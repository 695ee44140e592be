package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/service"
)

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{rankingService: rankingService}
}

// HandleTop handles /top, the all-time leaderboard by score.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	entries, err := h.rankingService.Leaderboard(context.Background(), service.DefaultRankingLimit)
	if err != nil {
		return replyError(c, err)
	}
	if len(entries) == 0 {
		return c.Reply("📊 No players ranked yet")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d\n%s\n", service.DefaultRankingLimit, divider)
	for i, e := range entries {
		fmt.Fprintf(&b, "%s %s: %d wins\n", rankLabel(i), displayName(e.Username, e.UserID), e.Score)
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleWinners handles /winners, today's biggest prize winners.
func (h *RankingHandler) HandleWinners(c tele.Context) error {
	ranks, err := h.rankingService.DailyWinners(context.Background(), service.DefaultRankingLimit)
	if err != nil {
		return replyError(c, err)
	}
	if len(ranks) == 0 {
		return c.Reply("📊 No winners today yet")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Today's winners\n%s\n", divider)
	for i, r := range ranks {
		fmt.Fprintf(&b, "%s %s: +%d\n", rankLabel(i), displayName(r.Username, r.UserID), r.Total)
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bingo-bot/internal/model"
	"bingo-bot/internal/service"
)

type handler struct {
	deps Deps
}

type betRequest struct {
	BetAmount int64 `json:"bet_amount"`
}

type selectRequest struct {
	Number int `json:"number"`
}

type moneyRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type resolveRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Note   string `json:"note"`
}

func (h *handler) health(c *gin.Context) {
	if err := h.deps.Health.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) me(c *gin.Context) {
	user, bonus, err := h.deps.Accounts.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":        user.UserID,
		"username":       user.Username,
		"name":           user.Name,
		"wallet":         user.Wallet,
		"score":          user.Score,
		"role":           user.Role,
		"referral_code":  user.ReferralCode,
		"referral_bonus": bonus,
	})
}

func (h *handler) leaderboard(c *gin.Context) {
	entries, err := h.deps.Rankings.Leaderboard(c.Request.Context(), limitParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for i, e := range entries {
		out = append(out, gin.H{"rank": i + 1, "user_id": e.UserID, "username": e.Username, "score": e.Score, "wallet": e.Wallet})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

func (h *handler) dailyWinners(c *gin.Context) {
	ranks, err := h.deps.Rankings.DailyWinners(c.Request.Context(), limitParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ranks))
	for i, r := range ranks {
		out = append(out, gin.H{"rank": i + 1, "user_id": r.UserID, "username": r.Username, "total": r.Total})
	}
	c.JSON(http.StatusOK, gin.H{"winners": out})
}

func (h *handler) invite(c *gin.Context) {
	info, err := h.deps.Referrals.InviteInfo(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) listGames(c *gin.Context) {
	games, err := h.deps.Games.Available(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(games))
	for _, g := range games {
		out = append(out, gin.H{"game_id": g.ID, "bet_amount": g.BetAmount, "players": g.Players})
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

func (h *handler) createGame(c *gin.Context) {
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	game, err := h.deps.Games.Create(c.Request.Context(), currentUser(c), req.BetAmount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": game.Status, "game_id": game.ID, "bet_amount": game.BetAmount})
}

func (h *handler) gameStatus(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	status, err := h.deps.Games.Status(c.Request.Context(), gameID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) joinGame(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	err := h.deps.Locks.Do(ctx, userID, func() error {
		return h.deps.Games.Join(ctx, gameID, userID, req.BetAmount)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined", "game_id": gameID})
}

func (h *handler) selectNumber(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	card, err := h.deps.Games.SelectNumber(c.Request.Context(), gameID, currentUser(c), req.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "selected", "card": card.Numbers})
}

func (h *handler) acceptCard(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	if err := h.deps.Games.AcceptCard(c.Request.Context(), gameID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *handler) callNumber(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	result, err := h.deps.Games.CallNumber(c.Request.Context(), gameID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) checkWin(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	var result *service.WinResult
	err := h.deps.Locks.Do(ctx, userID, func() error {
		var err error
		result, err = h.deps.Games.CheckWin(ctx, gameID, userID)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "won", "game_id": result.GameID, "prize": result.Prize, "line": result.Line})
}

func (h *handler) startGame(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	pool, err := h.deps.Games.AdminStart(c.Request.Context(), currentUser(c), gameID, req.BetAmount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.GameStarted, "game_id": gameID, "pool": pool})
}

func (h *handler) endGame(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	if err := h.deps.Games.AdminEnd(c.Request.Context(), currentUser(c), gameID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.GameFinished, "game_id": gameID})
}

func (h *handler) initiateDeposit(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	deposit, err := h.deps.Payments.InitiateDeposit(c.Request.Context(), currentUser(c), req.Amount, req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, depositView(deposit))
}

func (h *handler) verifyDepositByCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	var deposit *model.Deposit
	err := h.deps.Locks.Do(ctx, userID, func() error {
		var err error
		deposit, err = h.deps.Payments.VerifyDepositByCode(ctx, userID, req.Code)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, depositView(deposit))
}

func (h *handler) requestWithdrawal(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	var withdrawal *model.Withdrawal
	err := h.deps.Locks.Do(ctx, userID, func() error {
		var err error
		withdrawal, err = h.deps.Payments.RequestWithdrawal(ctx, userID, req.Amount, req.Method)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawalView(withdrawal))
}

func (h *handler) pendingWithdrawals(c *gin.Context) {
	list, err := h.deps.Payments.PendingWithdrawals(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, w := range list {
		out = append(out, withdrawalView(w))
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": out})
}

func (h *handler) resolveWithdrawal(c *gin.Context) {
	id, ok := uuidParam(c)
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action must be approve or reject")
		return
	}
	withdrawal, err := h.deps.Payments.ResolveWithdrawal(c.Request.Context(), currentUser(c), id, req.Action == "approve", req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawalView(withdrawal))
}

func (h *handler) pendingDeposits(c *gin.Context) {
	list, err := h.deps.Payments.PendingDeposits(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, d := range list {
		out = append(out, depositView(d))
	}
	c.JSON(http.StatusOK, gin.H{"deposits": out})
}

func (h *handler) verifyDeposit(c *gin.Context) {
	id, ok := uuidParam(c)
	if !ok {
		return
	}
	deposit, err := h.deps.Payments.VerifyDeposit(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, depositView(deposit))
}

func (h *handler) promoteUser(c *gin.Context) {
	target, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.deps.Accounts.Promote(c.Request.Context(), currentUser(c), target); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "promoted", "user_id": target})
}

func (h *handler) kickUser(c *gin.Context) {
	target, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.deps.Accounts.Kick(c.Request.Context(), currentUser(c), target); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "user_id": target})
}

func depositView(d *model.Deposit) gin.H {
	return gin.H{
		"deposit_id":        d.ID,
		"user_id":           d.UserID,
		"amount":            d.Amount,
		"method":            d.Method,
		"verification_code": d.VerificationCode,
		"status":            d.Status,
		"created_at":        d.CreatedAt,
		"verified_at":       d.VerifiedAt,
	}
}

func withdrawalView(w *model.Withdrawal) gin.H {
	return gin.H{
		"withdrawal_id": w.ID,
		"user_id":       w.UserID,
		"amount":        w.Amount,
		"method":        w.Method,
		"status":        w.Status,
		"admin_note":    w.AdminNote,
		"requested_at":  w.RequestedAt,
		"resolved_at":   w.ResolvedAt,
	}
}

func gameIDParam(c *gin.Context) (int64, bool) {
	return int64Param(c, "id")
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func uuidParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		return service.DefaultRankingLimit
	}
	return limit
}

package storage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultLeaderboardSize = 10
const maxLeaderboardSize = 100

var (
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrServerTimeoutStr        = "server-timeout"
	ErrUnknownStr              = "unknown-error"
)

// ResultStore is the subset of the repo the HTTP layer needs.
type ResultStore interface {
	RecordResult(ctx context.Context, result MatchResult) error
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)
	BestScore(ctx context.Context, playerId string) (int, error)
}

type leaderboardHandler struct {
	repo ResultStore
}

func NewLeaderboardHandler(repo ResultStore) *leaderboardHandler {
	return &leaderboardHandler{repo: repo}
}

func (lh *leaderboardHandler) TopScoresHandler(ctx *gin.Context) {
	limit := defaultLeaderboardSize
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
			ctx.Abort()
			return
		}
		limit = min(parsed, maxLeaderboardSize)
	}

	entries, err := lh.repo.TopScores(ctx.Request.Context(), limit)
	if err != nil {
		lh.abortWithStoreError(ctx, "TopScores", err)
		return
	}

	body := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		body = append(body, gin.H{
			"player_id":  entry.PlayerId,
			"best_score": entry.BestScore,
			"wins":       entry.Wins,
			"matches":    entry.Matches,
		})
	}
	ctx.JSON(http.StatusOK, body)
}

// RecordResultHandler stores the caller's own finished run. The player id
// comes from the verified token, never from the body.
func (lh *leaderboardHandler) RecordResultHandler(ctx *gin.Context) {
	id := ctx.GetString("id")

	if id == "" {
		slog.Error("Unexpected error, id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		return
	}

	var body struct {
		RoomCode string `json:"room_code"`
		Score    int    `json:"score"`
		Outcome  string `json:"outcome"`
		Forfeit  bool   `json:"forfeit"`
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	switch body.Outcome {
	case "WIN", "LOSE", "DRAW":
	default:
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if body.Score < 0 {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	err := lh.repo.RecordResult(ctx.Request.Context(), MatchResult{
		PlayerId: id,
		RoomCode: body.RoomCode,
		Score:    body.Score,
		Outcome:  body.Outcome,
		Forfeit:  body.Forfeit,
	})
	if err != nil {
		lh.abortWithStoreError(ctx, "RecordResult", err)
		return
	}

	ctx.Status(http.StatusCreated)
}

func (lh *leaderboardHandler) BestScoreHandler(ctx *gin.Context) {
	id := ctx.GetString("id")

	if id == "" {
		slog.Error("Unexpected error, id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		return
	}

	best, err := lh.repo.BestScore(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNoScores) {
			ctx.JSON(http.StatusOK, gin.H{"best_score": 0})
			return
		}
		lh.abortWithStoreError(ctx, "BestScore", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"best_score": best})
}

func (lh *leaderboardHandler) abortWithStoreError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
		ctx.Abort()
	case errors.Is(err, context.Canceled):
		ctx.Status(499)
		ctx.Abort()
	default:
		slog.Error(op+": Database returned an unexpected error",
			"error", err.Error(),
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
	}
}

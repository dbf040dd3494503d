package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ahmadeko2017/dino-online/crypto"
)

var (
	ErrMissingTokenStr = "missing-token"
	ErrExpiredTokenStr = "expired-token"
	ErrUnknownStr      = "unknown-error"
)

// TokenManager issues and verifies the anonymous session tokens.
type TokenManager interface {
	Generate(id string, now time.Time) (string, error)
	Verify(tokenString string) (string, error)
}

type authHandler struct {
	tokens       TokenManager
	cookieMaxAge time.Duration
}

func NewAuthHandler(tokens TokenManager, cookieMaxAge time.Duration) *authHandler {
	return &authHandler{tokens: tokens, cookieMaxAge: cookieMaxAge}
}

// AnonymousHandler mints a fresh player identity. There are no accounts;
// losing the cookie simply means becoming a new player.
func (ah *authHandler) AnonymousHandler(ctx *gin.Context) {
	id := "player_" + uuid.NewString()

	token, err := ah.tokens.Generate(id, time.Now())
	if err != nil {
		slog.Error("Anonymous: Token generation error",
			"error", err.Error(),
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return
	}

	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.JSON(http.StatusCreated, gin.H{"id": id, "token": token})
}

// RequireAuthMiddleware accepts the token from the cookie or, for
// non-browser clients, an Authorization bearer header.
func (ah *authHandler) RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie("token")
		if err != nil {
			header := ctx.GetHeader("Authorization")
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				token = after
			}
		}
		if token == "" {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		id, err := ah.tokens.Verify(token)

		if err != nil {
			clientIP := ctx.ClientIP()
			userAgent := ctx.Request.UserAgent()
			redactedToken := redactToken(token)

			switch {
			case errors.Is(err, crypto.ErrInvalidSigningAlg),
				errors.Is(err, crypto.ErrInvalidTokenSignature),
				errors.Is(err, crypto.ErrCorruptedToken):

				slog.Warn("RequireAuthMiddleware: suspicious token attempt",
					"ip", clientIP,
					"user_agent", userAgent,
					"error", err.Error(),
					"token", redactedToken,
				)

				time.Sleep(trollTime)
				ctx.Status(http.StatusInternalServerError)
				ctx.Abort()

			case errors.Is(err, crypto.ErrExpiredToken):
				slog.Info("RequireAuthMiddleware: token expired", "ip", clientIP, "token", redactedToken)
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)
				ctx.Abort()

			default:

				slog.Error("RequireAuthMiddleware: internal auth error",
					"ip", clientIP,
					"error", err.Error(),
					"token", redactedToken,
				)

				ctx.String(http.StatusUnauthorized, ErrUnknownStr)
				ctx.Abort()
			}

			return
		}
		ctx.Set("id", id)
		ctx.Next()
	}
}

// redactToken keeps the header and body but masks most of the signature so
// logs stay useful without leaking a replayable credential.
func redactToken(token string) string {
	tokenParts := strings.Split(token, ".")
	if len(tokenParts) != 3 {
		return token
	}
	sneak := ""
	r := []rune(tokenParts[2])

	if len(r) >= 10 {
		sneak = string(r[:10]) + strings.Repeat("*", len(r)-10)
	} else {
		sneak = tokenParts[2]
	}
	return tokenParts[0] + "." + tokenParts[1] + "." + sneak
}

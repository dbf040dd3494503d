package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ahmadeko2017/dino-online/auth"
	"github.com/ahmadeko2017/dino-online/config"
	"github.com/ahmadeko2017/dino-online/crypto"
	"github.com/ahmadeko2017/dino-online/realtime"
	"github.com/ahmadeko2017/dino-online/storage"
	"github.com/ahmadeko2017/dino-online/store"
)

const resultRetention = 90 * 24 * time.Hour

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		// No Origin means a non-browser client; the token still gates access.
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {

	// logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	tokenManager := crypto.NewJWTManager(cfg.JWTKey, cfg.TokenMaxAge)

	authHandler := auth.NewAuthHandler(tokenManager, cfg.TokenMaxAge)
	syncServer := realtime.NewServer(store.NewMemory(), logger)
	leaderboardHandler := storage.NewLeaderboardHandler(pgRepo)

	go pruneLoop(pgRepo)

	r := CreateServer(cfg.AllowedOrigins)

	{
		auth := r.Group("/auth")
		auth.POST("/anonymous", authHandler.AnonymousHandler)
	}

	protected := r.Group("/")
	protected.Use(authHandler.RequireAuthMiddleware(time.Second * 2))
	{
		protected.GET("/sync", realtime.SyncHandler(syncServer))

		protected.GET("/leaderboard", leaderboardHandler.TopScoresHandler)
		protected.POST("/leaderboard", leaderboardHandler.RecordResultHandler)
		protected.GET("/leaderboard/me", leaderboardHandler.BestScoreHandler)
	}

	r.Run(cfg.Addr)
}

func pruneLoop(repo *storage.PostgresRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		pruned, err := repo.PruneOlderThan(ctx, resultRetention)
		cancel()
		if err != nil {
			slog.Error("pruneLoop: failed to prune old results", "error", err.Error())
			continue
		}
		if pruned > 0 {
			slog.Info("pruneLoop: removed old results", "rows", pruned)
		}
	}
}

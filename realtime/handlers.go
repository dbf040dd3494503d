package realtime

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SyncHandler upgrades an authenticated request and hands the connection to
// the store server. Origin checks already happened in the router middleware.
func SyncHandler(srv *Server) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetString("id")

		if id == "" {
			slog.Error("Unexpected error, id not found. What is the middleware doing?",
				"ip", ctx.ClientIP(),
				"user_agent", ctx.Request.UserAgent(),
			)

			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
			return
		}

		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)

		if err != nil {
			slog.Error("WS upgrade failed", "error", err, "player", id)
			return
		}

		go srv.HandleConn(conn, id)
	}
}

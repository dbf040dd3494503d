package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahmadeko2017/dino-online/client"
	"github.com/ahmadeko2017/dino-online/config"
	"github.com/ahmadeko2017/dino-online/game"
	"github.com/ahmadeko2017/dino-online/match"
	"github.com/ahmadeko2017/dino-online/realtime"
	"github.com/ahmadeko2017/dino-online/session"
)

// botNotifier logs the room events and keeps the bot in the loop: every
// finished match requests a rematch, and landing back in the waiting room
// re-readies. Both go through goroutines since Notifier callbacks must not
// call back into the coordinator.
type botNotifier struct {
	c *client.Client
}

func (b *botNotifier) OpponentJoined() { slog.Info("opponent joined") }

func (b *botNotifier) WaitingRoom(rs session.ReadyState) {
	slog.Info("waiting room", "players", rs.PlayerCount, "myReady", rs.MyReady, "oppReady", rs.OppReady)
}

func (b *botNotifier) MatchStarted() { slog.Info("match started") }

func (b *botNotifier) MatchEnded(res match.Result) {
	slog.Info("match ended",
		"outcome", res.Outcome.String(),
		"forfeit", res.Forfeit,
		"myScore", res.MyScore,
		"oppScore", res.OppScore,
	)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.c.Coordinator.RequestRematch(ctx); err != nil {
			slog.Error("rematch request failed", "error", err)
		}
	}()
}

func (b *botNotifier) RematchStatus(rs session.RematchState) {
	slog.Info("rematch status", "my", rs.MyWants, "opp", rs.OppWants)
}

func (b *botNotifier) BackToWaitingRoom() {
	slog.Info("back to waiting room")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.c.Coordinator.Ready(ctx); err != nil {
			slog.Error("re-ready failed", "error", err)
		}
	}()
}

func (b *botNotifier) Chat(msg session.ChatMessage) {
	slog.Info("chat", "from", msg.Sender, "text", msg.Text)
}

func authenticate(serverURL string) (id, token string, err error) {
	res, err := http.Post(serverURL+"/auth/anonymous", "application/json", bytes.NewReader(nil))
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("auth rejected: %s", res.Status)
	}
	var body struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", "", err
	}
	return body.ID, body.Token, nil
}

// autopilot reads the local world each frame and dodges the nearest obstacle:
// duck under high birds, jump over everything else.
func autopilot(c *client.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		snap := c.Runner.Snapshot()
		if snap.GameOver {
			continue
		}

		ducking := false
		for _, ob := range snap.Obstacles {
			front := ob.X - (game.DinoX + game.DinoWidth)
			if front > 130*snap.Speed {
				continue
			}
			if ob.X+ob.Width < game.DinoX {
				continue
			}
			// A gap under the obstacle wide enough for a ducking dino
			// means duck; anything grounded gets jumped.
			if ob.Y+ob.Height <= game.GroundY-game.DinoDuckHeight {
				ducking = true
			} else if front < 60*snap.Speed {
				c.Runner.PressJump()
			}
		}
		c.Runner.HoldDuck(ducking)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal(err)
	}

	id, token, err := authenticate(cfg.ServerURL)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("authenticated", "id", id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(cfg.ServerURL, "http") + "/sync"
	sync, err := realtime.Dial(ctx, wsURL, token)
	if err != nil {
		log.Fatal(err)
	}
	defer sync.Close()

	notify := &botNotifier{}
	c := client.New(client.Config{
		Store:           sync,
		ClientID:        id,
		Notifier:        notify,
		Recorder:        client.NewHTTPRecorder(cfg.ServerURL, token),
		HeartbeatWindow: cfg.HeartbeatWindow,
		Log:             logger,
	})
	notify.c = c

	if cfg.RoomCode == "" {
		code, err := c.Manager.CreateRoom(ctx)
		if err != nil {
			log.Fatal(err)
		}
		slog.Info("room created", "code", code)
	} else {
		if err := c.Manager.JoinRoom(ctx, cfg.RoomCode); err != nil {
			log.Fatal(err)
		}
		slog.Info("room joined", "code", cfg.RoomCode)
	}
	c.Coordinator.EnteredRoom()

	if err := c.Coordinator.Ready(ctx); err != nil {
		log.Fatal(err)
	}

	stop := make(chan struct{})
	go autopilot(c, stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	close(stop)
	c.Runner.Stop()
	if err := c.Manager.LeaveRoom(context.Background()); err != nil {
		slog.Error("leave room failed", "error", err)
	}
}

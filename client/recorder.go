package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmadeko2017/dino-online/match"
)

// HTTPRecorder submits finished matches to the server's leaderboard endpoint
// with the player's bearer token.
type HTTPRecorder struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRecorder(baseURL, token string) *HTTPRecorder {
	return &HTTPRecorder{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRecorder) RecordResult(ctx context.Context, roomCode string, result match.Result) error {
	body, err := json.Marshal(map[string]any{
		"room_code": roomCode,
		"score":     result.MyScore,
		"outcome":   result.Outcome.String(),
		"forfeit":   result.Forfeit,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/leaderboard", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return fmt.Errorf("leaderboard submission rejected: %s", res.Status)
	}
	return nil
}

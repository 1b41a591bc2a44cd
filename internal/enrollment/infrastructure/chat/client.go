package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to the chat service's participant endpoint. Best effort by
// contract: callers log failures and move on, the chat service reconciles.
type Client struct {
	log  *slog.Logger
	base string
	http *http.Client
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:  log,
		base: baseURL,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) AddParticipant(ctx context.Context, courseID, userID string) error {
	body, err := json.Marshal(map[string]string{
		"course_id": courseID,
		"user_id":   userID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/internal/rooms/participants", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat service returned %d", resp.StatusCode)
	}
	return nil
}

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/learnhub/settlement/internal/payment/application"
)

// Client wraps the external payment processor's checkout-session API.
// Timeouts and 5xx responses are retried with backoff and ultimately
// classified as ErrProcessorUnavailable: the payment stays pending and the
// caller may try again, which is distinct from "payment failed".
type Client struct {
	log         *slog.Logger
	base        string
	apiKey      string
	successURL  string
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
}

func NewClient(log *slog.Logger, baseURL, apiKey, successURL string) *Client {
	return &Client{
		log:         log,
		base:        baseURL,
		apiKey:      apiKey,
		successURL:  successURL,
		http:        &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
}

type createSessionBody struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	SuccessURL  string            `json:"success_url"`
}

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

func (c *Client) CreateSession(ctx context.Context, req application.SessionRequest) (application.Session, error) {
	body, err := json.Marshal(createSessionBody{
		AmountCents: req.AmountCents,
		Currency:    "usd",
		Description: req.CourseTitle,
		// Trusted metadata: the verify and webhook paths read these values
		// back from our Payment row, the processor just echoes them.
		Metadata: map[string]string{
			"user_id":       req.UserID,
			"course_id":     req.CourseID,
			"instructor_id": req.InstructorID,
		},
		SuccessURL: c.successURL + "?session_id={CHECKOUT_SESSION_ID}",
	})
	if err != nil {
		return application.Session{}, err
	}

	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &out); err != nil {
		return application.Session{}, err
	}
	return application.Session{ID: out.ID, RedirectURL: out.URL}, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (application.SessionState, error) {
	var out sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &out); err != nil {
		return application.SessionState{}, err
	}
	return application.SessionState{
		ID:     out.ID,
		Status: out.Status,
		Paid:   out.PaymentStatus == "paid",
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", application.ErrProcessorUnavailable, ctx.Err())
			case <-time.After(c.backoff * time.Duration(1<<(attempt-2))):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if !retryableNetErr(err) {
				return err
			}
			lastErr = err
			c.log.Warn("processor call failed, retrying", "path", path, "attempt", attempt, "err", err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("processor returned %d", resp.StatusCode)
			c.log.Warn("processor call failed, retrying", "path", path, "attempt", attempt, "err", lastErr)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("processor rejected request: %d", resp.StatusCode)
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		return decodeErr
	}
	return fmt.Errorf("%w: %v", application.ErrProcessorUnavailable, lastErr)
}

func retryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	// Connection refused / reset style failures are worth a retry too.
	return errors.Is(err, context.DeadlineExceeded) || isConnErr(err)
}

func isConnErr(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/cenkalti/backoff/v4"
)

const maxResponseBytes = 1 << 20

// Config configures the HTTP gateway client.
type Config struct {
	BaseURL        string
	KeyID          string
	KeySecret      string
	WebhookSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to a Razorpay-compatible REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new gateway client.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type orderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var order Order
	err := c.do(ctx, http.MethodPost, "/v1/orders", req.Receipt, orderBody{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}, &order)
	if err != nil {
		return Order{}, err
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("gateway returned an order without id")
	}
	return order, nil
}

func (c *Client) VerifyCallback(orderID, paymentID, signature string) bool {
	return verify(c.cfg.KeySecret, []byte(orderID+"|"+paymentID), signature)
}

func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	return verify(c.cfg.WebhookSecret, body, signature)
}

type payoutBody struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Mode        string            `json:"mode"`
	Purpose     string            `json:"purpose"`
	ReferenceID string            `json:"reference_id"`
	Narration   string            `json:"narration,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

func (c *Client) Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error) {
	var receipt TransferReceipt
	err := c.do(ctx, http.MethodPost, "/v1/payouts", req.IdempotencyKey, payoutBody{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Mode:        "IMPS",
		Purpose:     "payout",
		ReferenceID: req.IdempotencyKey,
		Narration:   req.Narration,
		Notes:       map[string]string{"recipient_id": req.RecipientID},
	}, &receipt)
	if err != nil {
		return TransferReceipt{}, err
	}
	return receipt, nil
}

type refundBody struct {
	Amount  int64             `json:"amount"`
	Receipt string            `json:"receipt"`
	Notes   map[string]string `json:"notes,omitempty"`
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (RefundReceipt, error) {
	var receipt RefundReceipt
	path := "/v1/payments/" + req.PaymentID + "/refund"
	err := c.do(ctx, http.MethodPost, path, req.IdempotencyKey, refundBody{
		Amount:  req.Amount,
		Receipt: req.IdempotencyKey,
		Notes:   map[string]string{"reason": req.Reason},
	}, &receipt)
	if err != nil {
		return RefundReceipt{}, err
	}
	return receipt, nil
}

// do sends one JSON request with bounded, jittered retries. Every attempt
// gets its own deadline.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build gateway request: %w", err))
		}
		req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set("X-Payout-Idempotency", idempotencyKey)
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("failed to read gateway response: %w", err)
		}

		if resp.StatusCode >= 300 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode gateway response: %w", err))
			}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "Gateway call failed, retrying",
			attr.String("path", path),
			attr.Int("attempt", attempt),
			attr.String("retry_in", wait.String()),
			attr.Error(err),
		)
	}

	err = backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return statusErr
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempt, err)
}

var _ Gateway = (*Client)(nil)

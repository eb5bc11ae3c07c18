package paymentgateway

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the boundary to the external payment provider.
type Gateway interface {
	// CreateOrder opens a checkout order for amount in minor units.
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	// VerifyCallback checks the checkout callback signature. No network.
	VerifyCallback(orderID, paymentID, signature string) bool
	// VerifyWebhook checks a webhook body against its signature header.
	VerifyWebhook(body []byte, signature string) bool
	// Transfer sends a payout to a recipient. Retried calls with the same
	// IdempotencyKey do not transfer twice.
	Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error)
	// Refund returns a captured payment.
	Refund(ctx context.Context, req RefundRequest) (RefundReceipt, error)
}

type OrderRequest struct {
	Amount   int64
	Currency string
	// Receipt is the merchant reference, the registration id.
	Receipt string
	Notes   map[string]string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type TransferRequest struct {
	IdempotencyKey string
	RecipientID    string
	Amount         int64
	Currency       string
	Narration      string
}

type TransferReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	UTR    string `json:"utr,omitempty"`
}

type RefundRequest struct {
	IdempotencyKey string
	PaymentID      string
	Amount         int64
	Reason         string
}

type RefundReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrUnavailable is returned once retries against the gateway are exhausted.
var ErrUnavailable = errors.New("payment gateway unavailable")

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the response is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

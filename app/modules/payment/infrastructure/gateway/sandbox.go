package paymentgateway

import (
	"context"
	"sync"
)

// Sandbox is an in-process gateway for development and tests. Order ids are
// derived from the receipt, and callbacks are signed with the same secret
// VerifyCallback checks.
type Sandbox struct {
	keySecret     string
	webhookSecret string

	// Optional failure injection.
	CreateOrderFunc func(ctx context.Context, req OrderRequest) (Order, error)
	TransferFunc    func(ctx context.Context, req TransferRequest) (TransferReceipt, error)
	RefundFunc      func(ctx context.Context, req RefundRequest) (RefundReceipt, error)

	mu        sync.Mutex
	transfers map[string]TransferReceipt
	refunds   map[string]RefundReceipt
}

// NewSandbox creates a sandbox gateway.
func NewSandbox(keySecret, webhookSecret string) *Sandbox {
	if keySecret == "" {
		keySecret = "sandbox-secret"
	}
	return &Sandbox{
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		transfers:     make(map[string]TransferReceipt),
		refunds:       make(map[string]RefundReceipt),
	}
}

func (s *Sandbox) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if s.CreateOrderFunc != nil {
		return s.CreateOrderFunc(ctx, req)
	}
	return Order{
		ID:       s.OrderID(req.Receipt),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

// OrderID is the deterministic order id for a receipt.
func (s *Sandbox) OrderID(receipt string) string {
	return "order_sbx_" + sign(s.keySecret, []byte("order:"+receipt))[:16]
}

// SignCallback signs a callback the way the checkout would.
func (s *Sandbox) SignCallback(orderID, paymentID string) string {
	return SignCallback(s.keySecret, orderID, paymentID)
}

func (s *Sandbox) VerifyCallback(orderID, paymentID, signature string) bool {
	return verify(s.keySecret, []byte(orderID+"|"+paymentID), signature)
}

func (s *Sandbox) VerifyWebhook(body []byte, signature string) bool {
	return verify(s.webhookSecret, body, signature)
}

func (s *Sandbox) Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error) {
	if s.TransferFunc != nil {
		return s.TransferFunc(ctx, req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.transfers[req.IdempotencyKey]; ok {
		return r, nil
	}
	r := TransferReceipt{ID: "pout_sbx_" + req.IdempotencyKey, Status: "processed"}
	s.transfers[req.IdempotencyKey] = r
	return r, nil
}

func (s *Sandbox) Refund(ctx context.Context, req RefundRequest) (RefundReceipt, error) {
	if s.RefundFunc != nil {
		return s.RefundFunc(ctx, req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.refunds[req.IdempotencyKey]; ok {
		return r, nil
	}
	r := RefundReceipt{ID: "rfnd_sbx_" + req.IdempotencyKey, Status: "processed"}
	s.refunds[req.IdempotencyKey] = r
	return r, nil
}

// TransferCount returns how many distinct transfers were made.
func (s *Sandbox) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

var _ Gateway = (*Sandbox)(nil)

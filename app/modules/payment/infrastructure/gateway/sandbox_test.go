package paymentgateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_DeterministicOrders(t *testing.T) {
	s := NewSandbox("secret", "hook")

	a, err := s.CreateOrder(context.Background(), OrderRequest{Amount: 5000, Currency: "INR", Receipt: "reg-1"})
	require.NoError(t, err)
	b, err := s.CreateOrder(context.Background(), OrderRequest{Amount: 5000, Currency: "INR", Receipt: "reg-1"})
	require.NoError(t, err)
	c, err := s.CreateOrder(context.Background(), OrderRequest{Amount: 5000, Currency: "INR", Receipt: "reg-2"})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.True(t, s.VerifyCallback(a.ID, "pay_1", s.SignCallback(a.ID, "pay_1")))
}

func TestSandbox_TransferIsIdempotent(t *testing.T) {
	s := NewSandbox("secret", "")

	first, err := s.Transfer(context.Background(), TransferRequest{IdempotencyKey: "p1", Amount: 10})
	require.NoError(t, err)
	second, err := s.Transfer(context.Background(), TransferRequest{IdempotencyKey: "p1", Amount: 10})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.TransferCount())
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":5000,"status":"captured"}}}}`)
	p, ok, err := ParseWebhook(body)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CapturedPayment{PaymentID: "pay_1", OrderID: "order_1", Amount: 5000}, p)

	_, ok, err = ParseWebhook([]byte(`{"event":"payment.failed"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

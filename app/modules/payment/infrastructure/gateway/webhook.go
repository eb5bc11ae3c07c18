package paymentgateway

import (
	"encoding/json"
	"fmt"
)

// WebhookEventPaymentCaptured is the only webhook event acted on.
const WebhookEventPaymentCaptured = "payment.captured"

// WebhookEvent is the subset of the gateway webhook envelope we read.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// CapturedPayment is a verified payment.captured notification.
type CapturedPayment struct {
	PaymentID string
	OrderID   string
	Amount    int64
}

// ParseWebhook decodes a webhook body. ok is false for events other than
// payment.captured.
func ParseWebhook(body []byte) (CapturedPayment, bool, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return CapturedPayment{}, false, fmt.Errorf("invalid webhook body: %w", err)
	}
	if evt.Event != WebhookEventPaymentCaptured {
		return CapturedPayment{}, false, nil
	}
	entity := evt.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		return CapturedPayment{}, false, fmt.Errorf("webhook payment is missing id or order_id")
	}
	return CapturedPayment{PaymentID: entity.ID, OrderID: entity.OrderID, Amount: entity.Amount}, true, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus represents the delivery state of a webhook.
type WebhookStatus string

const (
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// WebhookDeliveryLog records each webhook delivery attempt for an event.
type WebhookDeliveryLog struct {
	ID         uuid.UUID     `json:"id"`
	EventSeq   uint64        `json:"event_seq"`
	WebhookURL string        `json:"webhook_url"`
	Payload    string        `json:"payload"` // JSON string
	HTTPStatus *int          `json:"http_status"`
	Attempt    int           `json:"attempt"`
	Status     WebhookStatus `json:"status"`
	LastError  *string       `json:"last_error"`
	CreatedAt  time.Time     `json:"created_at"`
}

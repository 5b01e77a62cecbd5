package message

import "time"

// WebhookRequest is the body posted by the external chat client.
type WebhookRequest struct {
	Username string `json:"username" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// IngestedEvent is published to NATS after a message is durably stored.
type IngestedEvent struct {
	EventID   string    `json:"event_id"`
	MessageID int64     `json:"message_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

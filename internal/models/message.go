package models

import (
	"time"
)

type MessageClass string

const (
	MessageClassImmediate MessageClass = "immediate"
	MessageClassScheduled MessageClass = "scheduled"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
)

// IsTerminal reports whether a message can no longer change state.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// Message is the unit of delivery. Recipient is stored encrypted at rest
// when encryption is enabled; the struct always carries plaintext.
type Message struct {
	Key            int64         `db:"key"`
	CreatedAt      time.Time     `db:"created_at"`
	Class          MessageClass  `db:"message_class"`
	Body           string        `db:"body"`
	Recipient      string        `db:"recipient"`
	ScheduledAt    *time.Time    `db:"scheduled_at"`
	SentAt         *time.Time    `db:"sent_at"`
	Status         MessageStatus `db:"status"`
	GatewayCode    *string       `db:"gateway_code"`
	GatewayMessage *string       `db:"gateway_message"`
	GatewayMsgID   *string       `db:"gateway_msg_id"`
}

// SendOutcome records the terminal result of one delivery attempt.
type SendOutcome struct {
	Accepted     bool
	Code         string
	Message      string
	GatewayMsgID string
	CompletedAt  time.Time
}

// Status returns the terminal status implied by the outcome.
func (o SendOutcome) TerminalStatus() MessageStatus {
	if o.Accepted {
		return MessageStatusSent
	}
	return MessageStatusFailed
}

// MessageStats summarizes stored messages for reporting.
type MessageStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Sending int64 `json:"sending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

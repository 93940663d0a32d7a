// Package domain contains payment records, the payment state machine and
// the durable provider event log used for webhook deduplication.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents payment lifecycle states.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusRetry      Status = "RETRY"
	StatusRefunded   Status = "REFUNDED"
)

// Terminal states accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRefunded
}

var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusFailed:     {StatusRetry},
	// A webhook can land after the last local attempt already failed.
	StatusRetry:   {StatusProcessing, StatusSuccess},
	StatusSuccess: {StatusRefunded},
}

// TransitionAllowed reports whether from -> to is a legal payment edge.
func TransitionAllowed(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is one charge attempt series against a customer. AttemptCount
// counts provider calls made for this payment across retries.
type Payment struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	CustomerID            snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	SubscriptionID        *snowflake.ID     `gorm:"index" json:"subscription_id,omitempty"`
	Amount                int64             `gorm:"not null" json:"amount"`
	Currency              string            `gorm:"type:text;not null" json:"currency"`
	Status                Status            `gorm:"type:text;not null;index" json:"status"`
	AttemptCount          int               `gorm:"not null;default:0" json:"attempt_count"`
	FailureReason         string            `gorm:"type:text" json:"failure_reason,omitempty"`
	ProviderTransactionID string            `gorm:"type:text;index" json:"provider_transaction_id,omitempty"`
	IdempotencyKey        string            `gorm:"type:text;not null;uniqueIndex" json:"idempotency_key"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	DueAt                 time.Time         `gorm:"not null" json:"due_at"`
	PaidAt                *time.Time        `json:"paid_at,omitempty"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Outcome is the terminal result reported by a provider, either inline from
// a charge call or asynchronously through a webhook.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeRefunded Outcome = "refunded"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeRefunded
}

// Provider event types carried on webhooks.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// EventRecord stores every provider event exactly once. The composite
// unique index on (provider, provider_event_id) makes redelivery a no-op.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:idx_provider_event" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:idx_provider_event" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	PaymentID       snowflake.ID   `gorm:"index" json:"payment_id"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrNotFound          = errors.New("payment_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnknownEventType  = errors.New("unknown_event_type")
)

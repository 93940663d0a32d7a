// Package domain contains persistence models and lifecycle rules for
// subscriptions.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	"gorm.io/datatypes"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusBlocked   Status = "BLOCKED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Live reports whether the subscription occupies a (customer, plan) slot.
// At most one live subscription may exist per pair.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusBlocked
}

// Terminal states are immutable once reached.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled, StatusExpired},
	StatusActive:  {StatusBlocked, StatusCancelled, StatusExpired},
	StatusBlocked: {StatusActive, StatusCancelled, StatusExpired},
}

// TransitionAllowed reports whether from -> to is a legal lifecycle edge.
func TransitionAllowed(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Subscription captures a customer's billing agreement to one plan.
// Amount and currency are snapshots of the plan at creation time.
type Subscription struct {
	ID            snowflake.ID             `gorm:"primaryKey" json:"id"`
	CustomerID    snowflake.ID             `gorm:"not null;index" json:"customer_id"`
	PlanID        snowflake.ID             `gorm:"not null;index" json:"plan_id"`
	PlanCode      string                   `gorm:"type:text;not null" json:"plan_code"`
	Status        Status                   `gorm:"type:text;not null" json:"status"`
	BillingPeriod plandomain.BillingPeriod `gorm:"type:text;not null" json:"billing_period"`
	Amount        int64                    `gorm:"not null" json:"amount"`
	Currency      string                   `gorm:"type:text;not null" json:"currency"`
	StartAt       time.Time                `gorm:"not null" json:"start_at"`
	NextBillingAt *time.Time               `json:"next_billing_at,omitempty"`
	EndAt         *time.Time               `json:"end_at,omitempty"`
	Metadata      datatypes.JSONMap        `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

var (
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrInvalidBillingPeriod  = errors.New("invalid_billing_period")
	ErrDuplicateSubscription = errors.New("duplicate_subscription")
	ErrNotFound              = errors.New("subscription_not_found")
	ErrInvalidTransition     = errors.New("invalid_transition")
)

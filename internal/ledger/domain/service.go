// Package domain defines the billing ledger contract. The ledger is the
// single writer for customers, subscriptions, payments and usage; all
// state transitions go through it.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
)

type CreateCustomerRequest struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Company  string         `json:"company,omitempty"`
	Tier     string         `json:"tier,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CreateSubscriptionRequest struct {
	CustomerID    snowflake.ID             `json:"customer_id"`
	PlanCode      string                   `json:"plan_code"`
	BillingPeriod plandomain.BillingPeriod `json:"billing_period"`
	StartAt       *time.Time               `json:"start_at,omitempty"`
}

type CreatePaymentRequest struct {
	CustomerID     snowflake.ID  `json:"customer_id"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	IdempotencyKey string        `json:"idempotency_key"`
	DueAt          *time.Time    `json:"due_at,omitempty"`
}

// PaymentResult is the terminal outcome applied to a payment, whether it
// came from an inline provider response or a webhook.
type PaymentResult struct {
	PaymentID             snowflake.ID
	Outcome               paymentdomain.Outcome
	ProviderTransactionID string
	FailureReason         string
	// Final marks the outcome as the last local attempt; a failed final
	// outcome blocks the linked subscription instead of queueing a retry.
	Final bool
}

type RecordUsageRequest struct {
	SubscriptionID snowflake.ID         `json:"subscription_id"`
	UsageType      usagedomain.UsageType `json:"usage_type"`
	Quantity       int64                `json:"quantity"`
	RecordedAt     *time.Time           `json:"recorded_at,omitempty"`
}

type Service interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*customerdomain.Customer, error)
	GetCustomer(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error)

	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error)
	GetSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error)
	ListSubscriptions(ctx context.Context, customerID snowflake.ID) ([]subscriptiondomain.Subscription, error)
	CancelSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error)

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*paymentdomain.Payment, error)
	GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*paymentdomain.Payment, error)
	ListPayments(ctx context.Context, customerID snowflake.ID) ([]paymentdomain.Payment, error)
	MarkProcessing(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error)
	MarkRetrying(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error)
	ApplyPaymentResult(ctx context.Context, result PaymentResult) (*paymentdomain.Payment, error)

	RecordUsage(ctx context.Context, req RecordUsageRequest) (*usagedomain.UsageRecord, error)
	ListUsage(ctx context.Context, subscriptionID snowflake.ID) ([]usagedomain.UsageRecord, error)
	SumUsage(ctx context.Context, subscriptionID snowflake.ID, usageType usagedomain.UsageType, from, to time.Time) (int64, error)

	// RecordProviderEvent stores a provider event, returning false when the
	// same event was seen before.
	RecordProviderEvent(ctx context.Context, event *paymentdomain.EventRecord) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID snowflake.ID) error
}

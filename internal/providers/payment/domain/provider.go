// Package domain defines the outbound payment provider contract.
package domain

import (
	"context"
	"errors"
)

var (
	// ErrDeclined is a permanent rejection; retrying cannot help.
	ErrDeclined = errors.New("payment_declined")
	// ErrUnavailable is a transient provider failure worth retrying.
	ErrUnavailable = errors.New("provider_unavailable")
)

// IsTransient reports whether err is worth a retry and should count
// against provider health. Declines are business outcomes, not outages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeclined) {
		return false
	}
	return true
}

type CreateAccountRequest struct {
	CustomerID string
	Email      string
	Name       string
}

type CreateAccountResponse struct {
	ProviderAccountID string
}

type CreateSubscriptionRequest struct {
	ProviderAccountID string
	PlanCode          string
	Amount            int64
	Currency          string
}

type CreateSubscriptionResponse struct {
	ProviderSubscriptionID string
}

type ChargeRequest struct {
	PaymentID      string
	CustomerID     string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

type ChargeResponse struct {
	TransactionID string
}

// PaymentProvider is the outbound gateway. Charge either returns a
// transaction or an error; asynchronous settlement arrives via webhooks.
type PaymentProvider interface {
	Name() string
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResponse, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// WebhookVerifier authenticates inbound provider callbacks.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}

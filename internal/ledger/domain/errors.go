package domain

import "errors"

var (
	ErrCustomerArchived      = errors.New("customer_archived")
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrMissingIdempotencyKey = errors.New("missing_idempotency_key")
	ErrInvalidOutcome        = errors.New("invalid_outcome")
)

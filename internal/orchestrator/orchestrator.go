// Package orchestrator coordinates customer, subscription and charge flows
// across the ledger, the rate limiter, the provider circuit breaker and the
// outbound payment provider.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paycore/internal/breaker"
	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/paycore/internal/observability/metrics"
	providerdomain "github.com/smallbiznis/paycore/internal/providers/payment/domain"
	"github.com/smallbiznis/paycore/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when the caller's quota for the operation
// class is exhausted.
var ErrRateLimited = errors.New("rate_limited")

// RateLimitedError wraps ErrRateLimited with the wait hint for the tier's
// window so the transport can emit a Retry-After.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Operation classes for rate limiting.
const (
	OpPayment      = "payment"
	OpSubscription = "subscription"
	OpUsage        = "usage"
)

type Orchestrator struct {
	ledger   ledgerdomain.Service
	provider providerdomain.PaymentProvider
	verifier providerdomain.WebhookVerifier
	limiter  *ratelimit.Limiter
	breaker  *breaker.Breaker
	charge   config.ChargeConfig
	clk      clock.Clock
	log      *zap.Logger
	metrics  *obsmetrics.Metrics

	// sleep waits between charge retries; swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (o *Orchestrator) rateLimited(tier, operation string) error {
	return &RateLimitedError{RetryAfter: o.limiter.RetryAfter(tier, operation)}
}

// providerCall runs op against the payment provider under the circuit
// breaker with the configured timeout, so every provider interaction feeds
// the same health accounting.
func (o *Orchestrator) providerCall(ctx context.Context, op func(context.Context) error) error {
	return o.breaker.Call(ctx, func(ctx context.Context) error {
		if timeout := time.Duration(o.charge.ProviderTimeoutSeconds) * time.Second; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return op(ctx)
	})
}

func (o *Orchestrator) CreateCustomer(ctx context.Context, req ledgerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	customer, err := o.ledger.CreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	// Provider account creation is best effort; billing works without it
	// until the first charge needs a provider-side account.
	if err := o.providerCall(ctx, func(ctx context.Context) error {
		_, err := o.provider.CreateAccount(ctx, providerdomain.CreateAccountRequest{
			CustomerID: customer.ID.String(),
			Email:      customer.Email,
			Name:       customer.Name,
		})
		return err
	}); err != nil {
		o.log.Warn("provider account creation failed",
			zap.String("customer_id", customer.ID.String()),
			zap.Error(err),
		)
	}
	return customer, nil
}

func (o *Orchestrator) GetCustomer(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	return o.ledger.GetCustomer(ctx, id)
}

func (o *Orchestrator) CreateSubscription(ctx context.Context, req ledgerdomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	customer, err := o.ledger.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !o.limiter.Allow(ctx, customer.ID.String(), customer.Tier, OpSubscription) {
		return nil, o.rateLimited(customer.Tier, OpSubscription)
	}

	sub, err := o.ledger.CreateSubscription(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := o.providerCall(ctx, func(ctx context.Context) error {
		_, err := o.provider.CreateSubscription(ctx, providerdomain.CreateSubscriptionRequest{
			ProviderAccountID: customer.ID.String(),
			PlanCode:          sub.PlanCode,
			Amount:            sub.Amount,
			Currency:          sub.Currency,
		})
		return err
	}); err != nil {
		o.log.Warn("provider subscription creation failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
	return sub, nil
}

func (o *Orchestrator) GetSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return o.ledger.GetSubscription(ctx, id)
}

func (o *Orchestrator) ListSubscriptions(ctx context.Context, customerID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return o.ledger.ListSubscriptions(ctx, customerID)
}

func (o *Orchestrator) CancelSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return o.ledger.CancelSubscription(ctx, id)
}

func (o *Orchestrator) RecordUsage(ctx context.Context, req ledgerdomain.RecordUsageRequest) (*usagedomain.UsageRecord, error) {
	sub, err := o.ledger.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	customer, err := o.ledger.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	if !o.limiter.Allow(ctx, customer.ID.String(), customer.Tier, OpUsage) {
		return nil, o.rateLimited(customer.Tier, OpUsage)
	}
	return o.ledger.RecordUsage(ctx, req)
}

func (o *Orchestrator) ListUsage(ctx context.Context, subscriptionID snowflake.ID) ([]usagedomain.UsageRecord, error) {
	return o.ledger.ListUsage(ctx, subscriptionID)
}

func (o *Orchestrator) SumUsage(ctx context.Context, subscriptionID snowflake.ID, usageType usagedomain.UsageType, from, to time.Time) (int64, error) {
	return o.ledger.SumUsage(ctx, subscriptionID, usageType, from, to)
}

package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paycore/internal/breaker"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	providerdomain "github.com/smallbiznis/paycore/internal/providers/payment/domain"
	"go.uber.org/zap"
)

// ChargePayment runs the synchronous charge pipeline: admission, ledger
// record, then the provider call under the circuit breaker with bounded
// retries. Replays with the same idempotency key reuse the original payment
// and never double-charge.
func (o *Orchestrator) ChargePayment(ctx context.Context, req ledgerdomain.CreatePaymentRequest) (*paymentdomain.Payment, error) {
	customer, err := o.ledger.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !o.limiter.Allow(ctx, customer.ID.String(), customer.Tier, OpPayment) {
		return nil, o.rateLimited(customer.Tier, OpPayment)
	}

	payment, err := o.ledger.CreatePayment(ctx, req)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case paymentdomain.StatusPending, paymentdomain.StatusRetry:
		// Chargeable.
	default:
		// A replay of a settled or in-flight payment returns the existing
		// record without touching the provider.
		return payment, nil
	}

	attempts := o.charge.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Duration(o.charge.RetryBackoffSeconds) * time.Second
	maxBackoff := time.Duration(o.charge.RetryMaxBackoffSeconds) * time.Second

	// Caller cancellation stops the scheduling of further attempts, but an
	// attempt already in flight runs to completion and its outcome is
	// applied, so a dropped client never strands a payment in PROCESSING.
	settleCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return payment, err
		}
		// An OPEN breaker sheds the charge before any ledger write. The
		// payment stays chargeable for a later call or a webhook; circuit
		// pressure is not a payment failure.
		if !o.breaker.Available() {
			o.metrics.RecordChargeOutcome(ctx, "shed")
			return payment, breaker.ErrCircuitOpen
		}

		payment, err = o.ledger.MarkProcessing(settleCtx, payment.ID)
		if err != nil {
			return nil, err
		}
		o.metrics.RecordChargeAttempt(ctx, payment.AttemptCount)

		var resp *providerdomain.ChargeResponse
		chargeErr := o.providerCall(settleCtx, func(ctx context.Context) error {
			var err error
			resp, err = o.provider.Charge(ctx, providerdomain.ChargeRequest{
				PaymentID:      payment.ID.String(),
				CustomerID:     payment.CustomerID.String(),
				Amount:         payment.Amount,
				Currency:       payment.Currency,
				IdempotencyKey: payment.IdempotencyKey,
			})
			return err
		})

		if chargeErr == nil {
			result := ledgerdomain.PaymentResult{
				PaymentID: payment.ID,
				Outcome:   paymentdomain.OutcomeSuccess,
			}
			if resp != nil {
				result.ProviderTransactionID = resp.TransactionID
			}
			payment, err = o.ledger.ApplyPaymentResult(settleCtx, result)
			if err != nil {
				return nil, err
			}
			o.metrics.RecordChargeOutcome(ctx, "success")
			return payment, nil
		}

		if errors.Is(chargeErr, breaker.ErrCircuitOpen) {
			// Lost the probe slot to a concurrent caller after marking
			// PROCESSING; park the payment back in RETRY and surface the
			// outage instead of burning the retry budget.
			if _, err := o.ledger.ApplyPaymentResult(settleCtx, ledgerdomain.PaymentResult{
				PaymentID:     payment.ID,
				Outcome:       paymentdomain.OutcomeFailed,
				FailureReason: chargeErr.Error(),
			}); err != nil {
				return nil, err
			}
			payment, err = o.ledger.MarkRetrying(settleCtx, payment.ID)
			if err != nil {
				return nil, err
			}
			o.metrics.RecordChargeOutcome(ctx, "shed")
			return payment, chargeErr
		}

		if errors.Is(chargeErr, providerdomain.ErrDeclined) {
			payment, err = o.ledger.ApplyPaymentResult(settleCtx, ledgerdomain.PaymentResult{
				PaymentID:     payment.ID,
				Outcome:       paymentdomain.OutcomeFailed,
				FailureReason: chargeErr.Error(),
				Final:         true,
			})
			if err != nil {
				return nil, err
			}
			o.metrics.RecordChargeOutcome(ctx, "declined")
			return payment, providerdomain.ErrDeclined
		}

		final := payment.AttemptCount >= attempts
		payment, err = o.ledger.ApplyPaymentResult(settleCtx, ledgerdomain.PaymentResult{
			PaymentID:     payment.ID,
			Outcome:       paymentdomain.OutcomeFailed,
			FailureReason: chargeErr.Error(),
			Final:         final,
		})
		if err != nil {
			return nil, err
		}
		if final {
			o.log.Warn("charge exhausted retries",
				zap.String("payment_id", payment.ID.String()),
				zap.Int("attempts", payment.AttemptCount),
				zap.Error(chargeErr),
			)
			o.metrics.RecordChargeOutcome(ctx, "failed")
			return payment, chargeErr
		}

		payment, err = o.ledger.MarkRetrying(settleCtx, payment.ID)
		if err != nil {
			return nil, err
		}
		if err := o.sleep(ctx, backoff); err != nil {
			return payment, err
		}
		backoff *= 2
		if maxBackoff > 0 && backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (o *Orchestrator) GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	return o.ledger.GetPayment(ctx, id)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

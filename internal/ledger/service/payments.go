package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditservice "github.com/smallbiznis/paycore/internal/audit/service"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	"github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	"github.com/smallbiznis/paycore/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePayment is idempotent on the idempotency key: replays return the
// payment created by the first call.
func (s *service) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*paymentdomain.Payment, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}

	existing, err := s.payments.FindByIdempotencyKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	s.locks.Lock(req.CustomerID)
	defer s.locks.Unlock(req.CustomerID)

	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByID(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}

		now := s.clk.Now().UTC()
		dueAt := now
		if req.DueAt != nil {
			dueAt = req.DueAt.UTC()
		}
		payment = &paymentdomain.Payment{
			ID:             s.node.Generate(),
			CustomerID:     customer.ID,
			SubscriptionID: req.SubscriptionID,
			Amount:         req.Amount,
			Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
			Status:         paymentdomain.StatusPending,
			IdempotencyKey: key,
			DueAt:          dueAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.payments.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, auditservice.Entry{
			EntityType: "payment",
			EntityID:   payment.ID.String(),
			Action:     "payment.created",
			ToState:    string(payment.Status),
		})
		return nil
	})
	if err != nil {
		// A concurrent replay can win the insert race; hand back its row.
		if db.IsDuplicateKeyErr(err) {
			return s.payments.FindByIdempotencyKey(ctx, s.db, key)
		}
		return nil, err
	}
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return payment, nil
}

func (s *service) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*paymentdomain.Payment, error) {
	return s.payments.FindByIdempotencyKey(ctx, s.db, key)
}

func (s *service) ListPayments(ctx context.Context, customerID snowflake.ID) ([]paymentdomain.Payment, error) {
	return s.payments.ListByCustomer(ctx, s.db, customerID)
}

// MarkProcessing moves a payment into PROCESSING and counts the attempt.
func (s *service) MarkProcessing(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	return s.transition(ctx, paymentID, paymentdomain.StatusProcessing, func(p *paymentdomain.Payment) {
		p.AttemptCount++
	})
}

func (s *service) MarkRetrying(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	return s.transition(ctx, paymentID, paymentdomain.StatusRetry, nil)
}

func (s *service) transition(ctx context.Context, paymentID snowflake.ID, to paymentdomain.Status, mutate func(*paymentdomain.Payment)) (*paymentdomain.Payment, error) {
	probe, err := s.payments.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, paymentdomain.ErrNotFound
	}

	s.locks.Lock(probe.CustomerID)
	defer s.locks.Unlock(probe.CustomerID)

	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.payments.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}
		if payment.Status == to {
			return nil
		}
		if !paymentdomain.TransitionAllowed(payment.Status, to) {
			s.logInvalidTransition(payment, to)
			return nil
		}

		from := payment.Status
		payment.Status = to
		if mutate != nil {
			mutate(payment)
		}
		payment.UpdatedAt = s.clk.Now().UTC()
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, auditservice.Entry{
			EntityType: "payment",
			EntityID:   payment.ID.String(),
			Action:     "payment.transition",
			FromState:  string(from),
			ToState:    string(to),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ApplyPaymentResult applies a terminal provider outcome. Replays of an
// already-applied outcome return the payment unchanged; outcomes that do
// not fit the current state are logged and ignored.
func (s *service) ApplyPaymentResult(ctx context.Context, result domain.PaymentResult) (*paymentdomain.Payment, error) {
	if !result.Outcome.Valid() {
		return nil, domain.ErrInvalidOutcome
	}

	probe, err := s.payments.FindByID(ctx, s.db, result.PaymentID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, paymentdomain.ErrNotFound
	}

	s.locks.Lock(probe.CustomerID)
	defer s.locks.Unlock(probe.CustomerID)

	var payment *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.payments.FindByIDForUpdate(ctx, tx, result.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		switch result.Outcome {
		case paymentdomain.OutcomeSuccess:
			return s.applySuccess(ctx, tx, payment, result)
		case paymentdomain.OutcomeFailed:
			return s.applyFailure(ctx, tx, payment, result)
		case paymentdomain.OutcomeRefunded:
			return s.applyRefund(ctx, tx, payment, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) applySuccess(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, result domain.PaymentResult) error {
	if payment.Status == paymentdomain.StatusSuccess {
		return nil
	}
	if !paymentdomain.TransitionAllowed(payment.Status, paymentdomain.StatusSuccess) {
		s.logInvalidTransition(payment, paymentdomain.StatusSuccess)
		return nil
	}

	now := s.clk.Now().UTC()
	from := payment.Status
	payment.Status = paymentdomain.StatusSuccess
	payment.PaidAt = &now
	payment.FailureReason = ""
	if result.ProviderTransactionID != "" {
		payment.ProviderTransactionID = result.ProviderTransactionID
	}
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return err
	}
	s.audit.Record(ctx, tx, auditservice.Entry{
		EntityType: "payment",
		EntityID:   payment.ID.String(),
		Action:     "payment.succeeded",
		FromState:  string(from),
		ToState:    string(payment.Status),
	})
	return s.settleSubscription(ctx, tx, payment, subscriptiondomain.StatusActive)
}

func (s *service) applyFailure(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, result domain.PaymentResult) error {
	if payment.Status == paymentdomain.StatusFailed {
		return nil
	}
	if !paymentdomain.TransitionAllowed(payment.Status, paymentdomain.StatusFailed) {
		s.logInvalidTransition(payment, paymentdomain.StatusFailed)
		return nil
	}

	now := s.clk.Now().UTC()
	from := payment.Status
	payment.Status = paymentdomain.StatusFailed
	payment.FailureReason = result.FailureReason
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return err
	}
	s.audit.Record(ctx, tx, auditservice.Entry{
		EntityType: "payment",
		EntityID:   payment.ID.String(),
		Action:     "payment.failed",
		FromState:  string(from),
		ToState:    string(payment.Status),
		Detail:     map[string]any{"reason": result.FailureReason},
	})
	if result.Final {
		return s.settleSubscription(ctx, tx, payment, subscriptiondomain.StatusBlocked)
	}
	return nil
}

func (s *service) applyRefund(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, result domain.PaymentResult) error {
	if payment.Status == paymentdomain.StatusRefunded {
		return nil
	}
	if !paymentdomain.TransitionAllowed(payment.Status, paymentdomain.StatusRefunded) {
		s.logInvalidTransition(payment, paymentdomain.StatusRefunded)
		return nil
	}

	now := s.clk.Now().UTC()
	from := payment.Status
	payment.Status = paymentdomain.StatusRefunded
	if result.ProviderTransactionID != "" {
		payment.ProviderTransactionID = result.ProviderTransactionID
	}
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, tx, payment); err != nil {
		return err
	}
	s.audit.Record(ctx, tx, auditservice.Entry{
		EntityType: "payment",
		EntityID:   payment.ID.String(),
		Action:     "payment.refunded",
		FromState:  string(from),
		ToState:    string(payment.Status),
	})
	return nil
}

// settleSubscription moves the payment's subscription after a terminal
// outcome: success activates (PENDING or BLOCKED -> ACTIVE) and advances the
// billing date; a final failure blocks an active subscription.
func (s *service) settleSubscription(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, target subscriptiondomain.Status) error {
	if payment.SubscriptionID == nil {
		return nil
	}
	sub, err := s.subscriptions.FindByIDForUpdate(ctx, tx, *payment.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil || sub.Status == target {
		return nil
	}
	if !subscriptiondomain.TransitionAllowed(sub.Status, target) {
		s.log.Warn("ignoring invalid subscription transition",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("from", string(sub.Status)),
			zap.String("to", string(target)),
		)
		return nil
	}

	now := s.clk.Now().UTC()
	from := sub.Status
	sub.Status = target
	if target == subscriptiondomain.StatusActive {
		// The billing anchor is the subscription's start date, or the last
		// billing date once one exists; activation time does not shift it.
		base := sub.StartAt
		if sub.NextBillingAt != nil {
			base = *sub.NextBillingAt
		}
		next := sub.BillingPeriod.Next(base)
		sub.NextBillingAt = &next
	}
	sub.UpdatedAt = now
	if err := s.subscriptions.Update(ctx, tx, sub); err != nil {
		return err
	}
	s.audit.Record(ctx, tx, auditservice.Entry{
		EntityType: "subscription",
		EntityID:   sub.ID.String(),
		Action:     "subscription.transition",
		FromState:  string(from),
		ToState:    string(target),
		Detail:     map[string]any{"payment_id": payment.ID.String()},
	})
	return nil
}

func (s *service) RecordProviderEvent(ctx context.Context, event *paymentdomain.EventRecord) (bool, error) {
	if event.ID == 0 {
		event.ID = s.node.Generate()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = s.clk.Now().UTC()
	}
	return s.payments.InsertEvent(ctx, s.db, event)
}

func (s *service) MarkEventProcessed(ctx context.Context, eventID snowflake.ID) error {
	return s.payments.MarkEventProcessed(ctx, s.db, eventID, s.clk.Now().UTC())
}

func (s *service) logInvalidTransition(payment *paymentdomain.Payment, to paymentdomain.Status) {
	s.log.Warn("ignoring invalid payment transition",
		zap.String("payment_id", payment.ID.String()),
		zap.String("from", string(payment.Status)),
		zap.String("to", string(to)),
	)
}

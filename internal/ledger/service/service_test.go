package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/paycore/internal/audit/domain"
	auditservice "github.com/smallbiznis/paycore/internal/audit/service"
	"github.com/smallbiznis/paycore/internal/clock"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	customerrepository "github.com/smallbiznis/paycore/internal/customer/repository"
	"github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/paycore/internal/payment/repository"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	planrepository "github.com/smallbiznis/paycore/internal/plan/repository"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/paycore/internal/subscription/repository"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
	usagerepository "github.com/smallbiznis/paycore/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc domain.Service
	db  *gorm.DB
	clk *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&customerdomain.Customer{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&paymentdomain.Payment{},
		&paymentdomain.EventRecord{},
		&usagedomain.UsageRecord{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	audit := auditservice.New(auditservice.Params{Node: node, Log: log})

	svc := New(Params{
		DB:            gdb,
		Node:          node,
		Clk:           clk,
		Log:           log,
		Audit:         audit,
		Customers:     customerrepository.Provide(),
		Plans:         planrepository.Provide(),
		Subscriptions: subscriptionrepository.Provide(),
		Payments:      paymentrepository.Provide(),
		Usage:         usagerepository.Provide(),
	})
	return &fixture{svc: svc, db: gdb, clk: clk}
}

func (f *fixture) seedPlan(t *testing.T, code string, amount int64) *plandomain.Plan {
	t.Helper()
	plan := &plandomain.Plan{
		ID:       snowflake.ID(time.Now().UnixNano()),
		Code:     code,
		Name:     code,
		Amount:   amount,
		Currency: "USD",
		Tier:     "basic",
	}
	if err := f.db.Create(plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func (f *fixture) createCustomer(t *testing.T, email string) *customerdomain.Customer {
	t.Helper()
	customer, err := f.svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{
		Email: email,
		Name:  "Test Customer",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

func (f *fixture) createSubscription(t *testing.T, customerID snowflake.ID, planCode string) *subscriptiondomain.Subscription {
	t.Helper()
	sub, err := f.svc.CreateSubscription(context.Background(), domain.CreateSubscriptionRequest{
		CustomerID:    customerID,
		PlanCode:      planCode,
		BillingPeriod: plandomain.BillingPeriodMonthly,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createCustomer(t, "dup@example.com")

	_, err := f.svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{
		Email: "dup@example.com",
		Name:  "Other",
	})
	if !errors.Is(err, customerdomain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{Email: "a@b.co"})
	if !errors.Is(err, customerdomain.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	_, err = f.svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{Email: "nope", Name: "X"})
	if !errors.Is(err, customerdomain.ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
}

func TestCreateSubscriptionStartsPending(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "sub@example.com")

	sub := f.createSubscription(t, customer.ID, "pro")
	if sub.Status != subscriptiondomain.StatusPending {
		t.Fatalf("expected PENDING, got %s", sub.Status)
	}
	if sub.Amount != 2900 || sub.Currency != "USD" {
		t.Fatalf("plan snapshot not applied: %d %s", sub.Amount, sub.Currency)
	}
	if sub.NextBillingAt != nil {
		t.Fatalf("pending subscription must not have a billing date")
	}
}

func TestCreateSubscriptionRejectsDuplicateLive(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "live@example.com")
	f.createSubscription(t, customer.ID, "pro")

	_, err := f.svc.CreateSubscription(context.Background(), domain.CreateSubscriptionRequest{
		CustomerID:    customer.ID,
		PlanCode:      "pro",
		BillingPeriod: plandomain.BillingPeriodMonthly,
	})
	if !errors.Is(err, subscriptiondomain.ErrDuplicateSubscription) {
		t.Fatalf("expected duplicate subscription error, got %v", err)
	}
}

func TestCreateSubscriptionUnknownPlan(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "plan@example.com")

	_, err := f.svc.CreateSubscription(context.Background(), domain.CreateSubscriptionRequest{
		CustomerID:    customer.ID,
		PlanCode:      "ghost",
		BillingPeriod: plandomain.BillingPeriodMonthly,
	})
	if !errors.Is(err, plandomain.ErrUnknownPlan) {
		t.Fatalf("expected unknown plan error, got %v", err)
	}
}

func TestPaymentSuccessActivatesSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "pay@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	payment, err := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-1",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.Status != paymentdomain.StatusPending {
		t.Fatalf("expected PENDING, got %s", payment.Status)
	}

	if _, err := f.svc.MarkProcessing(context.Background(), payment.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	got, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID:             payment.ID,
		Outcome:               paymentdomain.OutcomeSuccess,
		ProviderTransactionID: "txn_123",
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}
	if got.Status != paymentdomain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
	if got.PaidAt == nil || got.AttemptCount != 1 {
		t.Fatalf("success bookkeeping missing: paid_at=%v attempts=%d", got.PaidAt, got.AttemptCount)
	}

	after, err := f.svc.GetSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if after.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", after.Status)
	}
	if after.NextBillingAt == nil {
		t.Fatalf("active subscription must have a next billing date")
	}
	wantNext := f.clk.Now().UTC().AddDate(0, 1, 0)
	if !after.NextBillingAt.Equal(wantNext) {
		t.Fatalf("next billing = %v, want %v", after.NextBillingAt, wantNext)
	}
}

func TestActivationAnchorsBillingOnStartDate(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "future@example.com")

	// Subscription starts ten days out; paying today must not pull the
	// billing anchor back to the activation time.
	start := f.clk.Now().UTC().AddDate(0, 0, 10)
	sub, err := f.svc.CreateSubscription(context.Background(), domain.CreateSubscriptionRequest{
		CustomerID:    customer.ID,
		PlanCode:      "pro",
		BillingPeriod: plandomain.BillingPeriodMonthly,
		StartAt:       &start,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	payment, err := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-future",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := f.svc.MarkProcessing(context.Background(), payment.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if _, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	}); err != nil {
		t.Fatalf("apply result: %v", err)
	}

	after, err := f.svc.GetSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	wantNext := start.AddDate(0, 1, 0)
	if after.NextBillingAt == nil || !after.NextBillingAt.Equal(wantNext) {
		t.Fatalf("next billing = %v, want %v", after.NextBillingAt, wantNext)
	}
}

func TestFinalFailureBlocksActiveSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "block@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	first, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-ok",
	})
	f.svc.MarkProcessing(context.Background(), first.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: first.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})

	renewal, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-renewal",
	})
	f.svc.MarkProcessing(context.Background(), renewal.ID)
	got, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID:     renewal.ID,
		Outcome:       paymentdomain.OutcomeFailed,
		FailureReason: "card_declined",
		Final:         true,
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}
	if got.Status != paymentdomain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}

	after, _ := f.svc.GetSubscription(context.Background(), sub.ID)
	if after.Status != subscriptiondomain.StatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", after.Status)
	}
}

func TestNonFinalFailureKeepsSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "retry@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-soft-fail",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID:     payment.ID,
		Outcome:       paymentdomain.OutcomeFailed,
		FailureReason: "provider_unavailable",
	})

	after, _ := f.svc.GetSubscription(context.Background(), sub.ID)
	if after.Status != subscriptiondomain.StatusPending {
		t.Fatalf("non-final failure must not move the subscription, got %s", after.Status)
	}

	// FAILED -> RETRY -> PROCESSING counts a second attempt.
	if _, err := f.svc.MarkRetrying(context.Background(), payment.ID); err != nil {
		t.Fatalf("mark retrying: %v", err)
	}
	got, err := f.svc.MarkProcessing(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if got.Status != paymentdomain.StatusProcessing || got.AttemptCount != 2 {
		t.Fatalf("retry bookkeeping wrong: status=%s attempts=%d", got.Status, got.AttemptCount)
	}
}

func TestLateSuccessAfterRetryActivates(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "late@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-late",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeFailed,
	})
	f.svc.MarkRetrying(context.Background(), payment.ID)

	// A provider webhook can settle a payment parked in RETRY.
	got, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}
	if got.Status != paymentdomain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
	after, _ := f.svc.GetSubscription(context.Background(), sub.ID)
	if after.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", after.Status)
	}
}

func TestApplyPaymentResultIdempotent(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "idem@example.com")

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		Amount:         1000,
		Currency:       "USD",
		IdempotencyKey: "charge-idem",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	first, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}

	second, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("replayed apply: %v", err)
	}
	if second.Status != paymentdomain.StatusSuccess || !second.PaidAt.Equal(*first.PaidAt) {
		t.Fatalf("replay changed the payment: %+v", second)
	}
}

func TestFailureAfterSuccessIgnored(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "order@example.com")

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		Amount:         500,
		Currency:       "USD",
		IdempotencyKey: "charge-order",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})

	got, err := f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID:     payment.ID,
		Outcome:       paymentdomain.OutcomeFailed,
		FailureReason: "late_decline",
	})
	if err != nil {
		t.Fatalf("apply result: %v", err)
	}
	if got.Status != paymentdomain.StatusSuccess {
		t.Fatalf("stale failure must not override SUCCESS, got %s", got.Status)
	}
}

func TestCreatePaymentIdempotencyKeyReplay(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "key@example.com")

	first, err := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		Amount:         700,
		Currency:       "USD",
		IdempotencyKey: "charge-key",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	second, err := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		Amount:         700,
		Currency:       "USD",
		IdempotencyKey: "charge-key",
	})
	if err != nil {
		t.Fatalf("replay create payment: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new payment: %s vs %s", first.ID, second.ID)
	}
}

func TestCancelSubscriptionIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "cancel@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	first, err := f.svc.CancelSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != subscriptiondomain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", first.Status)
	}
	if first.EndAt == nil || first.NextBillingAt != nil {
		t.Fatalf("cancel bookkeeping wrong: end_at=%v next=%v", first.EndAt, first.NextBillingAt)
	}

	second, err := f.svc.CancelSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if second.Status != subscriptiondomain.StatusCancelled {
		t.Fatalf("repeat cancel changed status: %s", second.Status)
	}
}

func TestRecordUsageRequiresActiveSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "usage@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	_, err := f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
		SubscriptionID: sub.ID,
		UsageType:      usagedomain.UsageAPICalls,
		Quantity:       10,
	})
	if !errors.Is(err, domain.ErrSubscriptionNotActive) {
		t.Fatalf("expected not-active error, got %v", err)
	}

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-usage",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})

	record, err := f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
		SubscriptionID: sub.ID,
		UsageType:      usagedomain.UsageAPICalls,
		Quantity:       10,
	})
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if record.Quantity != 10 || record.CustomerID != customer.ID {
		t.Fatalf("usage record wrong: %+v", record)
	}

	records, err := f.svc.ListUsage(context.Background(), sub.ID)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one usage record, got %d (%v)", len(records), err)
	}
}

func TestSumUsageAggregatesPeriod(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "pro", 2900)
	customer := f.createCustomer(t, "sum@example.com")
	sub := f.createSubscription(t, customer.ID, "pro")

	payment, _ := f.svc.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: "charge-sum",
	})
	f.svc.MarkProcessing(context.Background(), payment.ID)
	f.svc.ApplyPaymentResult(context.Background(), domain.PaymentResult{
		PaymentID: payment.ID,
		Outcome:   paymentdomain.OutcomeSuccess,
	})

	base := f.clk.Now().UTC()
	for i, quantity := range []int64{10, 25, 7} {
		recordedAt := base.Add(time.Duration(i) * time.Hour)
		if _, err := f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
			SubscriptionID: sub.ID,
			UsageType:      usagedomain.UsageAPICalls,
			Quantity:       quantity,
			RecordedAt:     &recordedAt,
		}); err != nil {
			t.Fatalf("record usage %d: %v", i, err)
		}
	}
	outside := base.Add(-time.Hour)
	f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
		SubscriptionID: sub.ID,
		UsageType:      usagedomain.UsageAPICalls,
		Quantity:       100,
		RecordedAt:     &outside,
	})

	total, err := f.svc.SumUsage(context.Background(), sub.ID, usagedomain.UsageAPICalls, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("sum usage: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected 42, got %d", total)
	}
}

func TestRecordUsageValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
		SubscriptionID: 1,
		UsageType:      "bandwidth",
		Quantity:       1,
	})
	if !errors.Is(err, usagedomain.ErrInvalidUsageType) {
		t.Fatalf("expected invalid usage type, got %v", err)
	}
	_, err = f.svc.RecordUsage(context.Background(), domain.RecordUsageRequest{
		SubscriptionID: 1,
		UsageType:      usagedomain.UsageGPUHours,
		Quantity:       0,
	})
	if !errors.Is(err, usagedomain.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}

func TestRecordProviderEventDeduplicates(t *testing.T) {
	f := newFixture(t)

	event := &paymentdomain.EventRecord{
		Provider:        "testpay",
		ProviderEventID: "evt_1",
		EventType:       paymentdomain.EventPaymentSucceeded,
	}
	inserted, err := f.svc.RecordProviderEvent(context.Background(), event)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	dup := &paymentdomain.EventRecord{
		Provider:        "testpay",
		ProviderEventID: "evt_1",
		EventType:       paymentdomain.EventPaymentSucceeded,
	}
	inserted, err = f.svc.RecordProviderEvent(context.Background(), dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate event must not be inserted")
	}
}

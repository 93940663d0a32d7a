// Package service implements the billing ledger. Every mutation runs inside
// a transaction and is serialized per customer so concurrent requests for
// the same account cannot interleave.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditservice "github.com/smallbiznis/paycore/internal/audit/service"
	"github.com/smallbiznis/paycore/internal/clock"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	"github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
	"github.com/smallbiznis/paycore/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clk   clock.Clock
	log   *zap.Logger
	audit auditservice.Recorder
	locks *keyedMutex

	customers     customerdomain.Repository
	plans         plandomain.Repository
	subscriptions subscriptiondomain.Repository
	payments      paymentdomain.Repository
	usage         usagedomain.Repository
}

func (s *service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, customerdomain.ErrInvalidEmail
	}

	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if tier == "" {
		tier = "basic"
	}

	now := s.clk.Now().UTC()
	customer := &customerdomain.Customer{
		ID:        s.node.Generate(),
		Email:     email,
		Name:      name,
		Company:   strings.TrimSpace(req.Company),
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Metadata != nil {
		customer.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.customers.Insert(ctx, tx, customer); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return customerdomain.ErrDuplicateEmail
			}
			return err
		}
		s.audit.Record(ctx, tx, auditservice.Entry{
			EntityType: "customer",
			EntityID:   customer.ID.String(),
			Action:     "customer.created",
			ToState:    "created",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *service) GetCustomer(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	customer, err := s.customers.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}
	return customer, nil
}

func (s *service) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if req.CustomerID == 0 {
		return nil, subscriptiondomain.ErrInvalidCustomer
	}
	if !req.BillingPeriod.Valid() {
		return nil, subscriptiondomain.ErrInvalidBillingPeriod
	}

	s.locks.Lock(req.CustomerID)
	defer s.locks.Unlock(req.CustomerID)

	var sub *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByID(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}
		if customer.ArchivedAt != nil {
			return domain.ErrCustomerArchived
		}

		plan, err := s.plans.FindByCode(ctx, tx, req.PlanCode)
		if err != nil {
			return err
		}
		if plan == nil {
			return plandomain.ErrUnknownPlan
		}

		existing, err := s.subscriptions.FindLiveByCustomerAndPlan(ctx, tx, customer.ID, plan.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrDuplicateSubscription
		}

		now := s.clk.Now().UTC()
		startAt := now
		if req.StartAt != nil {
			startAt = req.StartAt.UTC()
		}
		sub = &subscriptiondomain.Subscription{
			ID:            s.node.Generate(),
			CustomerID:    customer.ID,
			PlanID:        plan.ID,
			PlanCode:      plan.Code,
			Status:        subscriptiondomain.StatusPending,
			BillingPeriod: req.BillingPeriod,
			Amount:        plan.Amount,
			Currency:      plan.Currency,
			StartAt:       startAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.subscriptions.Insert(ctx, tx, sub); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, auditservice.Entry{
			EntityType: "subscription",
			EntityID:   sub.ID.String(),
			Action:     "subscription.created",
			ToState:    string(sub.Status),
			Detail:     map[string]any{"plan_code": plan.Code},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) GetSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.subscriptions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}

func (s *service) ListSubscriptions(ctx context.Context, customerID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.subscriptions.ListByCustomer(ctx, s.db, customerID)
}

// CancelSubscription is idempotent: cancelling a cancelled subscription
// returns it unchanged.
func (s *service) CancelSubscription(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	probe, err := s.subscriptions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, subscriptiondomain.ErrNotFound
	}

	s.locks.Lock(probe.CustomerID)
	defer s.locks.Unlock(probe.CustomerID)

	var sub *subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.subscriptions.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrNotFound
		}
		if sub.Status == subscriptiondomain.StatusCancelled {
			return nil
		}
		if !subscriptiondomain.TransitionAllowed(sub.Status, subscriptiondomain.StatusCancelled) {
			s.log.Warn("ignoring invalid subscription transition",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("from", string(sub.Status)),
				zap.String("to", string(subscriptiondomain.StatusCancelled)),
			)
			return nil
		}

		now := s.clk.Now().UTC()
		from := sub.Status
		sub.Status = subscriptiondomain.StatusCancelled
		sub.EndAt = &now
		sub.NextBillingAt = nil
		sub.UpdatedAt = now
		if err := s.subscriptions.Update(ctx, tx, sub); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, auditservice.Entry{
			EntityType: "subscription",
			EntityID:   sub.ID.String(),
			Action:     "subscription.cancelled",
			FromState:  string(from),
			ToState:    string(sub.Status),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) RecordUsage(ctx context.Context, req domain.RecordUsageRequest) (*usagedomain.UsageRecord, error) {
	if !req.UsageType.Valid() {
		return nil, usagedomain.ErrInvalidUsageType
	}
	if req.Quantity <= 0 {
		return nil, usagedomain.ErrInvalidQuantity
	}

	probe, err := s.subscriptions.FindByID(ctx, s.db, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, subscriptiondomain.ErrNotFound
	}

	s.locks.Lock(probe.CustomerID)
	defer s.locks.Unlock(probe.CustomerID)

	var record *usagedomain.UsageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscriptions.FindByID(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrNotFound
		}
		if sub.Status != subscriptiondomain.StatusActive {
			return domain.ErrSubscriptionNotActive
		}

		now := s.clk.Now().UTC()
		recordedAt := now
		if req.RecordedAt != nil {
			recordedAt = req.RecordedAt.UTC()
		}
		record = &usagedomain.UsageRecord{
			ID:             s.node.Generate(),
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			UsageType:      req.UsageType,
			Quantity:       req.Quantity,
			RecordedAt:     recordedAt,
			CreatedAt:      now,
		}
		return s.usage.Insert(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) ListUsage(ctx context.Context, subscriptionID snowflake.ID) ([]usagedomain.UsageRecord, error) {
	return s.usage.ListBySubscription(ctx, s.db, subscriptionID)
}

// SumUsage aggregates recorded quantities for one metered dimension over
// [from, to), the input to overage pricing.
func (s *service) SumUsage(ctx context.Context, subscriptionID snowflake.ID, usageType usagedomain.UsageType, from, to time.Time) (int64, error) {
	if !usageType.Valid() {
		return 0, usagedomain.ErrInvalidUsageType
	}
	return s.usage.SumForPeriod(ctx, s.db, subscriptionID, usageType, from, to)
}

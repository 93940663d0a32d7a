// Package domain contains the plan catalog models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingPeriod is the subscription renewal cadence.
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

func (p BillingPeriod) Valid() bool {
	return p == BillingPeriodMonthly || p == BillingPeriodYearly
}

// Next returns the billing date one period after from.
func (p BillingPeriod) Next(from time.Time) time.Time {
	switch p {
	case BillingPeriodYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Plan is one sellable catalog entry. Amount is in minor currency units;
// money never touches floating point.
type Plan struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"not null" json:"name"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Currency  string       `gorm:"type:text;not null" json:"currency"`
	Tier      string       `gorm:"type:text;not null;default:'basic'" json:"tier"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Plan) TableName() string { return "plans" }

var ErrUnknownPlan = errors.New("unknown_plan")

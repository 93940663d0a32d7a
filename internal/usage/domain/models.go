// Package domain contains append-only usage records for metered billing.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageType enumerates the metered dimensions.
type UsageType string

const (
	UsageAPICalls  UsageType = "api_calls"
	UsageGPUHours  UsageType = "gpu_hours"
	UsageStorageGB UsageType = "storage_gb"
)

func (t UsageType) Valid() bool {
	return t == UsageAPICalls || t == UsageGPUHours || t == UsageStorageGB
}

// UsageRecord is one metered quantity against a subscription. Records are
// never updated or deleted.
type UsageRecord struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	CustomerID     snowflake.ID `gorm:"not null;index" json:"customer_id"`
	UsageType      UsageType    `gorm:"type:text;not null" json:"usage_type"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	RecordedAt     time.Time    `gorm:"not null;index" json:"recorded_at"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }

var (
	ErrInvalidUsageType = errors.New("invalid_usage_type")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
)

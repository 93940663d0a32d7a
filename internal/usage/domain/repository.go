package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]UsageRecord, error)
	SumForPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, usageType UsageType, from, to time.Time) (int64, error)
}

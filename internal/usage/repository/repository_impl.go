package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paycore/internal/usage/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, record *domain.UsageRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.UsageRecord, error) {
	var records []domain.UsageRecord
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("recorded_at").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) SumForPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, usageType domain.UsageType, from, to time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("subscription_id = ? AND usage_type = ? AND recorded_at >= ? AND recorded_at < ?",
			subscriptionID, usageType, from, to).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/paycore/internal/plan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Upsert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "amount", "currency", "tier"}),
		}).
		Create(plan).Error
}

func (r *repository) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).
		Where("code = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var plans []domain.Plan
	if err := db.WithContext(ctx).Order("code").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

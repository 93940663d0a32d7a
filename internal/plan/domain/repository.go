package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	List(ctx context.Context, db *gorm.DB) ([]Plan, error)
}

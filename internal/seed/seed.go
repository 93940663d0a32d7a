// Package seed bootstraps the default plan catalog so a fresh install can
// sell subscriptions without manual setup.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

var defaultPlans = []plandomain.Plan{
	{Code: "basic-monthly", Name: "Basic", Amount: 900, Currency: "USD", Tier: "basic"},
	{Code: "pro-monthly", Name: "Pro", Amount: 2900, Currency: "USD", Tier: "plus"},
	{Code: "pro-yearly", Name: "Pro (annual)", Amount: 29900, Currency: "USD", Tier: "plus"},
}

// EnsurePlanCatalog inserts the default plans if they do not exist yet.
// Existing plans are left untouched so price changes survive restarts.
func EnsurePlanCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans {
			var existing plandomain.Plan
			err := tx.WithContext(ctx).Where("code = ?", plan.Code).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			plan.ID = node.Generate()
			if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

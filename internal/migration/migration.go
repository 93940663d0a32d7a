// Package migration creates the billing schema on startup so the service
// is usable out of the box for local and self-hosted environments.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/paycore/internal/audit/domain"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// RunAutoMigrations builds the schema from the models for sqlite and mysql,
// where the SQL migrations do not apply.
func RunAutoMigrations(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(
		&customerdomain.Customer{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&paymentdomain.Payment{},
		&paymentdomain.EventRecord{},
		&usagedomain.UsageRecord{},
		&auditdomain.AuditLog{},
	)
}

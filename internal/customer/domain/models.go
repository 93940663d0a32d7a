// Package domain contains persistence models for billing customers.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Customer is one external billing account. Immutable after creation
// except metadata; never deleted, only soft-archived.
type Customer struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email      string            `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name       string            `gorm:"not null" json:"name"`
	Company    string            `gorm:"type:text" json:"company,omitempty"`
	Tier       string            `gorm:"type:text;not null;default:'basic'" json:"tier"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	ArchivedAt *time.Time        `json:"archived_at,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrDuplicateEmail = errors.New("duplicate_email")
	ErrNotFound       = errors.New("customer_not_found")
)

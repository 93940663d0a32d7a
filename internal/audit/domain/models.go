// Package domain contains the audit trail model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records a state change or notable action on a billing entity.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityType string            `gorm:"type:text;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   string            `gorm:"type:text;not null;index:idx_audit_entity" json:"entity_id"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	FromState  string            `gorm:"type:text" json:"from_state,omitempty"`
	ToState    string            `gorm:"type:text" json:"to_state,omitempty"`
	Detail     datatypes.JSONMap `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Package service writes audit trail entries. Audit failures never fail
// the surrounding operation; they are logged and swallowed.
package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paycore/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Recorder interface {
	Record(ctx context.Context, db *gorm.DB, entry Entry)
}

type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	FromState  string
	ToState    string
	Detail     map[string]any
}

type Params struct {
	fx.In

	Node *snowflake.Node
	Log  *zap.Logger
}

type recorder struct {
	node *snowflake.Node
	log  *zap.Logger
}

func New(p Params) Recorder {
	return &recorder{
		node: p.Node,
		log:  p.Log.Named("audit"),
	}
}

func (r *recorder) Record(ctx context.Context, db *gorm.DB, entry Entry) {
	row := &domain.AuditLog{
		ID:         r.node.Generate(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		FromState:  entry.FromState,
		ToState:    entry.ToState,
	}
	if entry.Detail != nil {
		row.Detail = datatypes.JSONMap(entry.Detail)
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		r.log.Warn("audit write failed",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

var Module = fx.Module("audit",
	fx.Provide(New),
)

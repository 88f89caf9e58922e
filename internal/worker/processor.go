// Package worker runs the asynq handlers for background tasks.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/models"
	"coffre/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewProcessor(db *gorm.DB, lg *zap.SugaredLogger) *Processor {
	return &Processor{db: db, lg: lg}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeAuditEmit, p.handleAuditEmit)
	return mux
}

func (p *Processor) handleAuditEmit(ctx context.Context, task *asynq.Task) error {
	var payload queue.AuditPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode audit payload: %w", err)
	}
	details, err := json.Marshal(payload.Details)
	if err != nil || payload.Details == nil {
		details = []byte("{}")
	}
	row := models.AuditLog{
		Action:    payload.Action,
		Resource:  payload.Resource,
		Details:   models.JSONB(details),
		CreatedAt: payload.At,
	}
	if payload.UserID != "" {
		row.UserID = &payload.UserID
	}
	if payload.ResourceID != "" {
		row.ResourceID = &payload.ResourceID
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	p.lg.Debugw("audit event written", "action", payload.Action, "resource", payload.Resource)
	return nil
}

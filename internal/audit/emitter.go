// Package audit emits best-effort audit events. Emission never fails the
// calling operation: every implementation logs and swallows its own errors.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/models"
	"coffre/internal/queue"
)

// Event is one audit entry.
type Event struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]any
}

// Emitter records audit events. Implementations must not return errors to
// the caller.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// DBEmitter writes audit rows directly. Used when no Redis is configured.
type DBEmitter struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewDBEmitter(db *gorm.DB, lg *zap.SugaredLogger) *DBEmitter {
	return &DBEmitter{db: db, lg: lg}
}

func (e *DBEmitter) Emit(ctx context.Context, ev Event) {
	row := toRow(ev, time.Now())
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		e.lg.Warnw("audit write failed", "action", ev.Action, "resource", ev.Resource, "error", err)
	}
}

// AsynqEmitter hands events to the background worker, fire-and-forget.
type AsynqEmitter struct {
	client *asynq.Client
	lg     *zap.SugaredLogger
}

func NewAsynqEmitter(client *asynq.Client, lg *zap.SugaredLogger) *AsynqEmitter {
	return &AsynqEmitter{client: client, lg: lg}
}

func (e *AsynqEmitter) Emit(ctx context.Context, ev Event) {
	task, err := queue.NewAuditTask(queue.AuditPayload{
		UserID:     ev.UserID,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: ev.ResourceID,
		Details:    ev.Details,
		At:         time.Now().UTC(),
	})
	if err != nil {
		e.lg.Warnw("audit task build failed", "action", ev.Action, "error", err)
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		e.lg.Warnw("audit enqueue failed", "action", ev.Action, "error", err)
	}
}

func toRow(ev Event, at time.Time) models.AuditLog {
	details, err := json.Marshal(ev.Details)
	if err != nil || ev.Details == nil {
		details = []byte("{}")
	}
	row := models.AuditLog{
		Action:    ev.Action,
		Resource:  ev.Resource,
		Details:   models.JSONB(details),
		CreatedAt: at,
	}
	if ev.UserID != "" {
		row.UserID = &ev.UserID
	}
	if ev.ResourceID != "" {
		row.ResourceID = &ev.ResourceID
	}
	return row
}

// Package queue defines the asynq task types shared by the API and the
// worker.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeAuditEmit carries one audit event to be written by the worker.
	TypeAuditEmit = "audit:emit"
)

// AuditPayload is the serialized audit event.
type AuditPayload struct {
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// NewAuditTask builds the asynq task for one audit event.
func NewAuditTask(p AuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return asynq.NewTask(TypeAuditEmit, data, asynq.MaxRetry(3)), nil
}

package realtime

import (
	"context"

	"github.com/google/uuid"
)

// ProgressEvent is the message published on the progress bus as pipeline
// stages and engines report work. Consumers (dashboards, CLIs) subscribe via
// a forwarder; the core only publishes.
type ProgressEvent struct {
	TenantID uuid.UUID      `json:"tenant_id"`
	JobID    uuid.UUID      `json:"job_id,omitempty"`
	JobType  string         `json:"job_type,omitempty"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, ev ProgressEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev ProgressEvent)) error
	Close() error
}

// NopBus drops every event. Used when redis is not configured and in tests.
type NopBus struct{}

func (NopBus) Publish(context.Context, ProgressEvent) error { return nil }
func (NopBus) StartForwarder(context.Context, func(ProgressEvent)) error {
	return nil
}
func (NopBus) Close() error { return nil }

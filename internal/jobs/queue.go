package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Enqueuer is the handler-facing slice of the queue: stage handlers seed the
// next stage through it and never touch the dequeue side.
type Enqueuer interface {
	Enqueue(ctx context.Context, stage string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	EnqueueBatch(ctx context.Context, stage string, entityType string, payloads []map[string]any) ([]*types.JobRun, error)
}

// Queue is the enqueue side of the durable pipeline. The worker package owns
// the dequeue side.
type Queue struct {
	db          *gorm.DB
	repo        repos.JobRunRepo
	maxAttempts int
}

func NewQueue(db *gorm.DB, repo repos.JobRunRepo, maxAttempts int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Queue{db: db, repo: repo, maxAttempts: maxAttempts}
}

// Enqueue persists one job for the given stage. The payload must be a JSON
// object; the tenant comes from ctx. Returns the created job.
func (q *Queue) Enqueue(ctx context.Context, stage string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if stage == "" {
		return nil, fmt.Errorf("enqueue: empty stage")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: marshal payload: %w", stage, err)
	}
	job := &types.JobRun{
		TenantID:    ctxutil.TenantOrDefault(ctx),
		JobType:     stage,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		MaxAttempts: q.maxAttempts,
		Payload:     datatypes.JSON(raw),
	}
	created, err := q.repo.Create(ctx, q.db, []*types.JobRun{job})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", stage, err)
	}
	return created[0], nil
}

// EnqueueBatch persists many jobs for one stage in a single insert.
func (q *Queue) EnqueueBatch(ctx context.Context, stage string, entityType string, payloads []map[string]any) ([]*types.JobRun, error) {
	if len(payloads) == 0 {
		return []*types.JobRun{}, nil
	}
	tenantID := ctxutil.TenantOrDefault(ctx)
	batch := make([]*types.JobRun, 0, len(payloads))
	for _, p := range payloads {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("enqueue %s: marshal payload: %w", stage, err)
		}
		batch = append(batch, &types.JobRun{
			TenantID:    tenantID,
			JobType:     stage,
			EntityType:  entityType,
			Status:      types.JobStatusQueued,
			MaxAttempts: q.maxAttempts,
			Payload:     datatypes.JSON(raw),
		})
	}
	return q.repo.Create(ctx, q.db, batch)
}

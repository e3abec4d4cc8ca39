package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/realtime"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Context is the execution handle for one claimed job run. It wraps the DB
// handle, the mutable job_run row, the progress bus, and the only sanctioned
// ways to report progress or terminate execution. Handlers never touch the
// job_run table directly.
type Context struct {
	Ctx         context.Context
	DB          *gorm.DB
	Job         *types.JobRun
	Repo        repos.JobRunRepo
	Bus         realtime.Bus
	BackoffBase time.Duration

	payload map[string]any
}

// NewContext constructs the handle for a claimed job. The payload JSON is
// decoded eagerly; a decode failure leaves an empty map and handlers validate
// the fields they need themselves. The job's tenant is installed on Ctx so
// every downstream operation sees the right ownership.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, bus realtime.Bus, backoffBase time.Duration) *Context {
	c := &Context{
		Ctx:         ctx,
		DB:          db,
		Job:         job,
		Repo:        repo,
		Bus:         bus,
		BackoffBase: backoffBase,
	}
	_ = c.decodePayload()
	if job != nil && job.TenantID != uuid.Nil {
		c.Ctx = ctxutil.WithTenant(c.Ctx, job.TenantID)
	}
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	payload := c.Payload()
	traceID := stringField(payload, "trace_id")
	reqID := stringField(payload, "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

// Payload returns the decoded payload map. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadString reads a payload field as a trimmed string.
func (c *Context) PayloadString(key string) string {
	return stringField(c.Payload(), key)
}

// Progress appends a progress event to the ledger and publishes it on the
// bus. Failures here never fail the job.
func (c *Context) Progress(message string, data map[string]any) {
	if c.Job == nil {
		return
	}
	var raw datatypes.JSON
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	_ = c.Repo.AppendEvent(c.Ctx, c.DB, &types.JobRunEvent{
		TenantID: c.Job.TenantID,
		JobID:    c.Job.ID,
		JobType:  c.Job.JobType,
		Kind:     string(types.JobEventProgress),
		Message:  message,
		Data:     raw,
	})
	if c.Bus != nil {
		_ = c.Bus.Publish(c.Ctx, realtime.ProgressEvent{
			TenantID: c.Job.TenantID,
			JobID:    c.Job.ID,
			JobType:  c.Job.JobType,
			Kind:     string(types.JobEventProgress),
			Message:  message,
			Data:     data,
		})
	}
}

// Complete marks the job succeeded with an optional result document.
func (c *Context) Complete(result map[string]any) {
	if c.Job == nil {
		return
	}
	updates := map[string]interface{}{
		"status": types.JobStatusDone,
		"error":  "",
	}
	if len(result) > 0 {
		if raw, err := json.Marshal(result); err == nil {
			updates["result"] = datatypes.JSON(raw)
		}
	}
	_ = c.Repo.UpdateFields(c.Ctx, c.DB, c.Job.ID, updates)
	_ = c.Repo.AppendEvent(c.Ctx, c.DB, &types.JobRunEvent{
		TenantID: c.Job.TenantID,
		JobID:    c.Job.ID,
		JobType:  c.Job.JobType,
		Kind:     string(types.JobEventSucceeded),
	})
	if c.Bus != nil {
		_ = c.Bus.Publish(c.Ctx, realtime.ProgressEvent{
			TenantID: c.Job.TenantID,
			JobID:    c.Job.ID,
			JobType:  c.Job.JobType,
			Kind:     string(types.JobEventSucceeded),
		})
	}
}

// Fail records a failed attempt and schedules the retry window. Once
// attempts reach MaxAttempts the job stays failed and the owning entity is
// left in its last consistent state.
func (c *Context) Fail(stage string, err error) {
	if c.Job == nil {
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	now := time.Now()
	next := now.Add(Backoff(c.BackoffBase, c.Job.Attempts))
	_ = c.Repo.UpdateFields(c.Ctx, c.DB, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         fmt.Sprintf("%s: %s", stage, msg),
		"last_error_at": now,
		"next_run_at":   next,
	})
	_ = c.Repo.AppendEvent(c.Ctx, c.DB, &types.JobRunEvent{
		TenantID: c.Job.TenantID,
		JobID:    c.Job.ID,
		JobType:  c.Job.JobType,
		Kind:     string(types.JobEventFailed),
		Message:  msg,
	})
	if c.Bus != nil {
		_ = c.Bus.Publish(c.Ctx, realtime.ProgressEvent{
			TenantID: c.Job.TenantID,
			JobID:    c.Job.ID,
			JobType:  c.Job.JobType,
			Kind:     string(types.JobEventFailed),
			Message:  msg,
		})
	}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

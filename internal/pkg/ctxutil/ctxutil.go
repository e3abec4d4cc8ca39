package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

// DefaultTenantID is the well-known single-tenant fallback. It is applied only
// at process boundaries (cmd wiring, job claim); core operations always read
// the tenant from the context.
var DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type tenantKey struct{}

type traceKey struct{}

// TraceData carries correlation identifiers through job payloads and service
// calls.
type TraceData struct {
	TraceID   string
	RequestID string
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(Default(ctx), tenantKey{}, tenantID)
}

// Tenant returns the tenant carried by ctx and whether one was set.
func Tenant(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(tenantKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// TenantOrDefault resolves the tenant for boundary code that accepts
// unauthenticated/local callers.
func TenantOrDefault(ctx context.Context) uuid.UUID {
	if id, ok := Tenant(ctx); ok {
		return id
	}
	return DefaultTenantID
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	if td == nil {
		return Default(ctx)
	}
	return context.WithValue(Default(ctx), traceKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, ok := ctx.Value(traceKey{}).(*TraceData)
	if !ok {
		return nil
	}
	return td
}

package embedder

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/realtime"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type fakeAI struct {
	summary inference.SummaryResult
}

func (f fakeAI) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{0.1, 0.2, 0.3}}, nil
}

func (f fakeAI) Summarize(context.Context, string, bool, int) (inference.SummaryResult, error) {
	return f.summary, nil
}

func (f fakeAI) Chat(context.Context, []inference.Message) (string, error) { return "", nil }

type fakeVec struct{}

func (fakeVec) Upsert(context.Context, string, []vectorindex.Vector) error { return nil }

func (fakeVec) QueryMatches(context.Context, string, []float32, int, float64) ([]vectorindex.Match, error) {
	return nil, nil
}

func (fakeVec) DeleteIDs(context.Context, string, []string) error { return nil }

func (fakeVec) DeleteNamespace(context.Context, string) error { return nil }

type captureEmbeddings struct {
	upserted *types.Embedding
}

func (r *captureEmbeddings) Upsert(_ context.Context, _ *gorm.DB, emb *types.Embedding) (*types.Embedding, error) {
	r.upserted = emb
	return emb, nil
}

func (r *captureEmbeddings) GetByNodeID(context.Context, *gorm.DB, uuid.UUID) (*types.Embedding, error) {
	return nil, nil
}

func (r *captureEmbeddings) GetByNodeIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (r *captureEmbeddings) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (r *captureEmbeddings) DeleteByNodeIDs(context.Context, *gorm.DB, []uuid.UUID) error {
	return nil
}

type captureNodes struct {
	summaryNodeID uuid.UUID
	summary       string
	confidence    string
}

func (r *captureNodes) UpsertBatch(_ context.Context, _ *gorm.DB, ns []*types.CodeNode) ([]*types.CodeNode, error) {
	return ns, nil
}

func (r *captureNodes) GetByID(context.Context, *gorm.DB, uuid.UUID) (*types.CodeNode, error) {
	return nil, nil
}

func (r *captureNodes) GetByIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.CodeNode, error) {
	return nil, nil
}

func (r *captureNodes) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.CodeNode, error) {
	return nil, nil
}

func (r *captureNodes) ListIDsByPath(context.Context, *gorm.DB, uuid.UUID, string, string) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *captureNodes) ListPathsByRepo(context.Context, *gorm.DB, uuid.UUID) ([]string, error) {
	return nil, nil
}

func (r *captureNodes) DeleteByIDs(context.Context, *gorm.DB, []uuid.UUID) error { return nil }

func (r *captureNodes) UpdateSummary(_ context.Context, _ *gorm.DB, id uuid.UUID, summary, confidence string) error {
	r.summaryNodeID = id
	r.summary = summary
	r.confidence = confidence
	return nil
}

func (r *captureNodes) CountByRepo(context.Context, *gorm.DB, uuid.UUID) (int64, error) {
	return 0, nil
}

type stubJobRuns struct {
	updates []map[string]interface{}
}

func (s *stubJobRuns) Create(_ context.Context, _ *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}

func (s *stubJobRuns) GetByIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}

func (s *stubJobRuns) ClaimNextRunnable(context.Context, *gorm.DB, string, time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (s *stubJobRuns) UpdateFields(_ context.Context, _ *gorm.DB, _ uuid.UUID, updates map[string]interface{}) error {
	s.updates = append(s.updates, updates)
	return nil
}

func (s *stubJobRuns) Heartbeat(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (s *stubJobRuns) AppendEvent(context.Context, *gorm.DB, *types.JobRunEvent) error { return nil }

func TestRun_WritesSummaryBackToNode(t *testing.T) {
	nodeID := uuid.New()
	repoID := uuid.New()
	nodes := &captureNodes{}
	embeddings := &captureEmbeddings{}

	e := &Embedder{
		log:        logger.NewNop(),
		ai:         fakeAI{summary: inference.SummaryResult{Summary: "Validates session tokens", Confidence: "high"}},
		vec:        fakeVec{},
		embeddings: embeddings,
		nodes:      nodes,
	}

	nodeText := strings.Repeat("func Validate(token string) error { return check(token) }\n", 60)
	raw, err := json.Marshal(map[string]any{
		"repoId":   repoID.String(),
		"nodeId":   nodeID.String(),
		"nodeText": nodeText,
	})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: types.StageEmbedChunks,
		Payload: datatypes.JSON(raw),
	}
	jc := runtime.NewContext(context.Background(), nil, job, &stubJobRuns{}, realtime.NopBus{}, time.Second)

	if err := e.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}

	if nodes.summaryNodeID != nodeID {
		t.Fatalf("summary written to node %s, want %s", nodes.summaryNodeID, nodeID)
	}
	if nodes.summary != "Validates session tokens" || nodes.confidence != "high" {
		t.Fatalf("summary/confidence = %q/%q", nodes.summary, nodes.confidence)
	}

	if embeddings.upserted == nil {
		t.Fatalf("no embedding persisted")
	}
	if got := len(embeddings.upserted.ChunkText); got != chunkTextMaxBytes {
		t.Fatalf("chunk text length = %d, want capped at %d", got, chunkTextMaxBytes)
	}
	if embeddings.upserted.Summary != "Validates session tokens" {
		t.Fatalf("embedding summary = %q", embeddings.upserted.Summary)
	}
}

func TestChunkPreview(t *testing.T) {
	short := "func small() {}"
	if got := chunkPreview(short); got != short {
		t.Fatalf("short text altered: %q", got)
	}
	long := strings.Repeat("x", chunkTextMaxBytes+500)
	if got := chunkPreview(long); len(got) != chunkTextMaxBytes {
		t.Fatalf("long text length = %d, want %d", len(got), chunkTextMaxBytes)
	}
}

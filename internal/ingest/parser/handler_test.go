package parser

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/realtime"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type fakeNodeRepo struct {
	staleIDs     []uuid.UUID
	keepSeen     string
	upserted     []*types.CodeNode
	deletedIDs   []uuid.UUID
	summaryCalls int
}

func (r *fakeNodeRepo) UpsertBatch(_ context.Context, _ *gorm.DB, nodes []*types.CodeNode) ([]*types.CodeNode, error) {
	for _, n := range nodes {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
	}
	r.upserted = append(r.upserted, nodes...)
	return nodes, nil
}

func (r *fakeNodeRepo) GetByID(context.Context, *gorm.DB, uuid.UUID) (*types.CodeNode, error) {
	return nil, nil
}

func (r *fakeNodeRepo) GetByIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.CodeNode, error) {
	return nil, nil
}

func (r *fakeNodeRepo) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.CodeNode, error) {
	return nil, nil
}

func (r *fakeNodeRepo) ListIDsByPath(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string, keepBlobSHA string) ([]uuid.UUID, error) {
	r.keepSeen = keepBlobSHA
	return r.staleIDs, nil
}

func (r *fakeNodeRepo) ListPathsByRepo(context.Context, *gorm.DB, uuid.UUID) ([]string, error) {
	return nil, nil
}

func (r *fakeNodeRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) error {
	r.deletedIDs = append(r.deletedIDs, ids...)
	return nil
}

func (r *fakeNodeRepo) UpdateSummary(context.Context, *gorm.DB, uuid.UUID, string, string) error {
	r.summaryCalls++
	return nil
}

func (r *fakeNodeRepo) CountByRepo(context.Context, *gorm.DB, uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeEmbeddingRepo struct {
	deletedNodeIDs []uuid.UUID
}

func (r *fakeEmbeddingRepo) Upsert(_ context.Context, _ *gorm.DB, emb *types.Embedding) (*types.Embedding, error) {
	return emb, nil
}

func (r *fakeEmbeddingRepo) GetByNodeID(context.Context, *gorm.DB, uuid.UUID) (*types.Embedding, error) {
	return nil, nil
}

func (r *fakeEmbeddingRepo) GetByNodeIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (r *fakeEmbeddingRepo) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (r *fakeEmbeddingRepo) DeleteByNodeIDs(_ context.Context, _ *gorm.DB, nodeIDs []uuid.UUID) error {
	r.deletedNodeIDs = append(r.deletedNodeIDs, nodeIDs...)
	return nil
}

type fakeVecStore struct {
	deletedNS  string
	deletedIDs []string
}

func (s *fakeVecStore) Upsert(context.Context, string, []vectorindex.Vector) error { return nil }

func (s *fakeVecStore) QueryMatches(context.Context, string, []float32, int, float64) ([]vectorindex.Match, error) {
	return nil, nil
}

func (s *fakeVecStore) DeleteIDs(_ context.Context, namespace string, ids []string) error {
	s.deletedNS = namespace
	s.deletedIDs = append(s.deletedIDs, ids...)
	return nil
}

func (s *fakeVecStore) DeleteNamespace(context.Context, string) error { return nil }

type fakeRepoRepo struct{}

func (fakeRepoRepo) Create(context.Context, *gorm.DB, *types.RepositorySnapshot) (*types.RepositorySnapshot, error) {
	return nil, nil
}

func (fakeRepoRepo) GetByID(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) (*types.RepositorySnapshot, error) {
	return nil, nil
}

func (fakeRepoRepo) GetByIdentity(context.Context, *gorm.DB, uuid.UUID, string, string, string) (*types.RepositorySnapshot, error) {
	return nil, nil
}

func (fakeRepoRepo) GetByIDs(context.Context, *gorm.DB, uuid.UUID, []uuid.UUID) ([]*types.RepositorySnapshot, error) {
	return nil, nil
}

func (fakeRepoRepo) ListByTenant(context.Context, *gorm.DB, uuid.UUID) ([]*types.RepositorySnapshot, error) {
	return nil, nil
}

func (fakeRepoRepo) UpdateFields(context.Context, *gorm.DB, uuid.UUID, map[string]interface{}) error {
	return nil
}

func (fakeRepoRepo) TransitionStatus(context.Context, *gorm.DB, uuid.UUID, string, string) (bool, error) {
	return true, nil
}

type fakeEnqueuer struct {
	batches []map[string]any
}

func (q *fakeEnqueuer) Enqueue(context.Context, string, string, *uuid.UUID, map[string]any) (*types.JobRun, error) {
	return &types.JobRun{ID: uuid.New()}, nil
}

func (q *fakeEnqueuer) EnqueueBatch(_ context.Context, _ string, _ string, payloads []map[string]any) ([]*types.JobRun, error) {
	q.batches = append(q.batches, payloads...)
	out := make([]*types.JobRun, len(payloads))
	for i := range payloads {
		out[i] = &types.JobRun{ID: uuid.New()}
	}
	return out, nil
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

func (s *stubJobRuns) finalStatus() string {
	for i := len(s.updates) - 1; i >= 0; i-- {
		if st, ok := s.updates[i]["status"].(string); ok {
			return st
		}
	}
	return ""
}

func TestRun_RetiresSupersededNodeVersions(t *testing.T) {
	repoID := uuid.New()
	stale := []uuid.UUID{uuid.New(), uuid.New()}

	cfg, err := config.Load("", logger.NewNop())
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	store := blob.NewMemStore()
	source := []byte("package svc\n\nfunc Login(name string) error {\n\treturn nil\n}\n")
	if _, err := store.Put(context.Background(), blob.SourceKey(repoID, "abc123", "svc/auth.go"), source); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	registry := NewRegistry()
	RegisterGrammars(registry)

	nodes := &fakeNodeRepo{staleIDs: stale}
	embeddings := &fakeEmbeddingRepo{}
	vec := &fakeVecStore{}
	queue := &fakeEnqueuer{}

	p := &Parser{
		log:          logger.NewNop(),
		cfg:          cfg,
		registry:     registry,
		store:        store,
		vec:          vec,
		nodes:        nodes,
		embeddings:   embeddings,
		repositories: fakeRepoRepo{},
		queue:        queue,
	}

	runs := &stubJobRuns{}
	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: types.StageParseFiles,
		Payload: datatypes.JSON(`{"repoId":"` + repoID.String() + `","sha":"abc123","path":"svc/auth.go","blobSha":"v2"}`),
	}
	jc := runtime.NewContext(context.Background(), nil, job, runs, realtime.NopBus{}, time.Second)

	if err := p.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := runs.finalStatus(); got != types.JobStatusDone {
		t.Fatalf("job status = %q, want %q", got, types.JobStatusDone)
	}
	if len(nodes.upserted) == 0 {
		t.Fatalf("no nodes persisted for the new blob")
	}
	if nodes.keepSeen != "v2" {
		t.Fatalf("retirement kept blob %q, want v2", nodes.keepSeen)
	}
	if len(nodes.deletedIDs) != len(stale) {
		t.Fatalf("deleted node ids = %v, want %v", nodes.deletedIDs, stale)
	}
	if len(embeddings.deletedNodeIDs) != len(stale) {
		t.Fatalf("deleted embeddings = %v, want %v", embeddings.deletedNodeIDs, stale)
	}
	if want := vectorindex.RepoNamespace(repoID.String()); vec.deletedNS != want {
		t.Fatalf("vector namespace = %q, want %q", vec.deletedNS, want)
	}
	if len(vec.deletedIDs) != len(stale) {
		t.Fatalf("vector deletes = %v, want %d ids", vec.deletedIDs, len(stale))
	}
}

func TestRun_EmptyFileRetiresOldVersions(t *testing.T) {
	repoID := uuid.New()
	stale := []uuid.UUID{uuid.New()}

	cfg, err := config.Load("", logger.NewNop())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	store := blob.NewMemStore()
	if _, err := store.Put(context.Background(), blob.SourceKey(repoID, "abc123", "notes.txt"), []byte("   \n")); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	registry := NewRegistry()
	RegisterGrammars(registry)

	nodes := &fakeNodeRepo{staleIDs: stale}
	p := &Parser{
		log:          logger.NewNop(),
		cfg:          cfg,
		registry:     registry,
		store:        store,
		vec:          &fakeVecStore{},
		nodes:        nodes,
		embeddings:   &fakeEmbeddingRepo{},
		repositories: fakeRepoRepo{},
		queue:        &fakeEnqueuer{},
	}

	runs := &stubJobRuns{}
	job := &types.JobRun{
		ID:      uuid.New(),
		JobType: types.StageParseFiles,
		Payload: datatypes.JSON(`{"repoId":"` + repoID.String() + `","sha":"abc123","path":"notes.txt","blobSha":"v3"}`),
	}
	jc := runtime.NewContext(context.Background(), nil, job, runs, realtime.NopBus{}, time.Second)

	if err := p.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := runs.finalStatus(); got != types.JobStatusDone {
		t.Fatalf("job status = %q, want %q", got, types.JobStatusDone)
	}
	if len(nodes.deletedIDs) != len(stale) {
		t.Fatalf("old versions not retired: %v", nodes.deletedIDs)
	}
}

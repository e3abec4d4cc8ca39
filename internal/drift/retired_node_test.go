package drift

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/types"
)

type fakeAI struct{}

func (fakeAI) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1, 0, 0}}, nil
}

func (fakeAI) Summarize(context.Context, string, bool, int) (inference.SummaryResult, error) {
	return inference.SummaryResult{}, nil
}

func (fakeAI) Chat(context.Context, []inference.Message) (string, error) { return "", nil }

type fakeMatchRepo struct {
	matches []*types.RequirementMatch
}

func (r *fakeMatchRepo) UpsertMerge(_ context.Context, _ *gorm.DB, ms []*types.RequirementMatch) ([]*types.RequirementMatch, error) {
	return ms, nil
}

func (r *fakeMatchRepo) GetByID(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) (*types.RequirementMatch, error) {
	return nil, nil
}

func (r *fakeMatchRepo) ListByRequirement(context.Context, *gorm.DB, uuid.UUID) ([]*types.RequirementMatch, error) {
	return r.matches, nil
}

func (r *fakeMatchRepo) ListByRequirementIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.RequirementMatch, error) {
	return r.matches, nil
}

func (r *fakeMatchRepo) UpdateTypes(context.Context, *gorm.DB, uuid.UUID, []string) error {
	return nil
}

func (r *fakeMatchRepo) Delete(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type fakeNodeRepo struct {
	nodes []*types.CodeNode
}

func (r *fakeNodeRepo) UpsertBatch(_ context.Context, _ *gorm.DB, ns []*types.CodeNode) ([]*types.CodeNode, error) {
	return ns, nil
}

func (r *fakeNodeRepo) GetByID(context.Context, *gorm.DB, uuid.UUID) (*types.CodeNode, error) {
	return nil, nil
}

func (r *fakeNodeRepo) GetByIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.CodeNode, error) {
	return r.nodes, nil
}

func (r *fakeNodeRepo) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.CodeNode, error) {
	return r.nodes, nil
}

func (r *fakeNodeRepo) ListIDsByPath(context.Context, *gorm.DB, uuid.UUID, string, string) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *fakeNodeRepo) ListPathsByRepo(context.Context, *gorm.DB, uuid.UUID) ([]string, error) {
	return nil, nil
}

func (r *fakeNodeRepo) DeleteByIDs(context.Context, *gorm.DB, []uuid.UUID) error { return nil }

func (r *fakeNodeRepo) UpdateSummary(context.Context, *gorm.DB, uuid.UUID, string, string) error {
	return nil
}

func (r *fakeNodeRepo) CountByRepo(context.Context, *gorm.DB, uuid.UUID) (int64, error) {
	return int64(len(r.nodes)), nil
}

type fakeEmbeddingRepo struct{}

func (fakeEmbeddingRepo) Upsert(_ context.Context, _ *gorm.DB, emb *types.Embedding) (*types.Embedding, error) {
	return emb, nil
}

func (fakeEmbeddingRepo) GetByNodeID(context.Context, *gorm.DB, uuid.UUID) (*types.Embedding, error) {
	return nil, nil
}

func (fakeEmbeddingRepo) GetByNodeIDs(context.Context, *gorm.DB, []uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (fakeEmbeddingRepo) ListByRepo(context.Context, *gorm.DB, uuid.UUID) ([]*types.Embedding, error) {
	return nil, nil
}

func (fakeEmbeddingRepo) DeleteByNodeIDs(context.Context, *gorm.DB, []uuid.UUID) error { return nil }

type fakeDriftRecords struct {
	created []*types.DriftRecord
}

func (r *fakeDriftRecords) Create(_ context.Context, _ *gorm.DB, records []*types.DriftRecord) ([]*types.DriftRecord, error) {
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
	}
	r.created = append(r.created, records...)
	return records, nil
}

func (r *fakeDriftRecords) ListByRequirement(context.Context, *gorm.DB, uuid.UUID) ([]*types.DriftRecord, error) {
	return r.created, nil
}

func (r *fakeDriftRecords) ListByProject(context.Context, *gorm.DB, uuid.UUID) ([]*types.DriftRecord, error) {
	return r.created, nil
}

// A match whose node has been retired (file changed or deleted since the
// match was made) must always register as drifted.
func TestDetectRequirement_RetiredNodeDrifts(t *testing.T) {
	cfg, err := config.Load("", logger.NewNop())
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	req := &types.Requirement{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		ProjectID: uuid.New(),
		Title:     "User login",
		Text:      "Users authenticate with name and password.",
	}
	records := &fakeDriftRecords{}
	d := &Detector{
		log: logger.NewNop(),
		cfg: cfg,
		ai:  fakeAI{},
		matches: &fakeMatchRepo{matches: []*types.RequirementMatch{{
			ID:            uuid.New(),
			RequirementID: req.ID,
			NodeID:        uuid.New(),
			Score:         0.9,
		}}},
		nodes:      &fakeNodeRepo{},
		embeddings: fakeEmbeddingRepo{},
		records:    records,
	}

	a, err := d.DetectRequirement(context.Background(), req)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if a.DriftedCount != 1 || a.TotalCount != 1 {
		t.Fatalf("drifted/total = %d/%d, want 1/1", a.DriftedCount, a.TotalCount)
	}
	if a.Severity != types.DriftSeverityCritical {
		t.Fatalf("severity = %q, want %q", a.Severity, types.DriftSeverityCritical)
	}
	if a.Record == nil {
		t.Fatalf("no drift record created")
	}
	if a.Record.OldScore != 0.9 || a.Record.NewScore != 0 {
		t.Fatalf("record scores = %v/%v, want 0.9/0", a.Record.OldScore, a.Record.NewScore)
	}
	if len(records.created) != 1 {
		t.Fatalf("records created = %d, want 1", len(records.created))
	}
}

// A healthy match over a live node with its original vector stays put.
func TestDetectRequirement_LiveNodeHolds(t *testing.T) {
	cfg, err := config.Load("", logger.NewNop())
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	req := &types.Requirement{
		ID:    uuid.New(),
		Title: "User login",
		Text:  "Users authenticate with name and password.",
	}
	nodeID := uuid.New()
	d := &Detector{
		log: logger.NewNop(),
		cfg: cfg,
		ai:  fakeAI{},
		matches: &fakeMatchRepo{matches: []*types.RequirementMatch{{
			ID:            uuid.New(),
			RequirementID: req.ID,
			NodeID:        nodeID,
			Score:         0.6,
		}}},
		nodes: &fakeNodeRepo{nodes: []*types.CodeNode{{
			ID:      nodeID,
			Summary: "Authenticates users with name and password",
			Text:    "func Login(name, password string) error { return authenticate(name, password) }",
		}}},
		embeddings: fakeEmbeddingRepo{},
		records:    &fakeDriftRecords{},
	}

	a, err := d.DetectRequirement(context.Background(), req)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if a.Record != nil {
		t.Fatalf("unexpected drift record: %+v", a.Record)
	}
}

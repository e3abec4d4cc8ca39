package drift

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/match"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// detectConcurrency bounds the per-requirement fan-out of a project scan.
const detectConcurrency = 5

// Detector re-scores persisted matches against the code as it is now and
// records degradations. Improvements are never recorded.
type Detector struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	ai inference.Client

	reqs       repos.RequirementRepo
	matches    repos.RequirementMatchRepo
	nodes      repos.CodeNodeRepo
	embeddings repos.EmbeddingRepo
	records    repos.DriftRecordRepo
}

func NewDetector(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	ai inference.Client,
	reqs repos.RequirementRepo,
	matches repos.RequirementMatchRepo,
	nodes repos.CodeNodeRepo,
	embeddings repos.EmbeddingRepo,
	records repos.DriftRecordRepo,
) *Detector {
	return &Detector{
		db:         db,
		log:        baseLog.With("component", "DriftDetector"),
		cfg:        cfg,
		ai:         ai,
		reqs:       reqs,
		matches:    matches,
		nodes:      nodes,
		embeddings: embeddings,
		records:    records,
	}
}

// Assessment is the outcome for one requirement. Record is nil when nothing
// drifted.
type Assessment struct {
	RequirementID uuid.UUID          `json:"requirement_id"`
	DriftedCount  int                `json:"drifted_count"`
	TotalCount    int                `json:"total_count"`
	Severity      string             `json:"severity,omitempty"`
	Record        *types.DriftRecord `json:"record,omitempty"`
}

// DetectProject assesses every accepted requirement of a project
// concurrently. Per-requirement failures are logged and skipped.
func (d *Detector) DetectProject(ctx context.Context, projectID uuid.UUID) ([]*Assessment, error) {
	ctx, span := observability.StartSpan(ctx, "drift.project")
	defer span.End()

	tenantID := ctxutil.TenantOrDefault(ctx)
	reqs, err := d.reqs.ListAcceptedByProject(ctx, nil, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]*Assessment, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detectConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			a, derr := d.DetectRequirement(gctx, req)
			if derr != nil {
				d.log.Warn("Drift assessment failed", "requirement_id", req.ID, "error", derr)
				return nil
			}
			out[i] = a
			return nil
		})
	}
	_ = g.Wait()

	assessed := out[:0]
	for _, a := range out {
		if a != nil {
			assessed = append(assessed, a)
		}
	}
	return assessed, nil
}

// DetectRequirement re-scores every match of one requirement. A drifted set
// yields one append-only DriftRecord with scores averaged over the drifted
// matches only.
func (d *Detector) DetectRequirement(ctx context.Context, req *types.Requirement) (*Assessment, error) {
	cfg := d.cfg.Current().Drift
	ms, err := d.matches.ListByRequirement(ctx, nil, req.ID)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return &Assessment{RequirementID: req.ID}, nil
	}

	nodeIDs := make([]uuid.UUID, 0, len(ms))
	for _, m := range ms {
		nodeIDs = append(nodeIDs, m.NodeID)
	}
	nodes, err := d.nodes.GetByIDs(ctx, nil, nodeIDs)
	if err != nil {
		return nil, err
	}
	nodeByID := make(map[uuid.UUID]*types.CodeNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}
	embByNode := map[uuid.UUID][]float32{}
	if embs, eerr := d.embeddings.GetByNodeIDs(ctx, nil, nodeIDs); eerr == nil {
		for _, emb := range embs {
			if v := decodeVector(emb.Vector); len(v) > 0 {
				embByNode[emb.NodeID] = v
			}
		}
	}

	// One query vector per requirement; a failed embed degrades every
	// comparison to the lexical formula.
	var qvec []float32
	if vecs, verr := d.ai.Embed(ctx, []string{req.Title + "\n" + req.Text}); verr == nil && len(vecs) > 0 {
		qvec = vecs[0]
	}

	var (
		drifted        int
		sumOld, sumNew float64
	)
	for _, m := range ms {
		node, exists := nodeByID[m.NodeID]
		current := 0.0
		if exists {
			if nv, ok := embByNode[m.NodeID]; ok && len(qvec) > 0 {
				current = match.Cosine(qvec, nv)
			} else {
				current = match.Jaccard(req.Title+"\n"+req.Text, node.Summary+"\n"+node.Text)
			}
		}
		// A deleted node keeps current at zero and always drifts.
		if Drifted(current, m.Score, &cfg) {
			drifted++
			sumOld += m.Score
			sumNew += current
		}
	}

	a := &Assessment{
		RequirementID: req.ID,
		DriftedCount:  drifted,
		TotalCount:    len(ms),
	}
	if drifted == 0 {
		return a, nil
	}
	a.Severity = severity(drifted, len(ms))

	rec := &types.DriftRecord{
		TenantID:      req.TenantID,
		RequirementID: req.ID,
		ProjectID:     req.ProjectID,
		Severity:      a.Severity,
		OldScore:      sumOld / float64(drifted),
		NewScore:      sumNew / float64(drifted),
		DriftedCount:  drifted,
		TotalCount:    len(ms),
	}
	created, err := d.records.Create(ctx, nil, []*types.DriftRecord{rec})
	if err != nil {
		return nil, err
	}
	a.Record = created[0]
	return a, nil
}

// Drifted reports whether a match degraded past the thresholds: the current
// similarity fell below the validity floor, or the drop from the original
// score exceeds the allowed drop.
func Drifted(current, original float64, cfg *config.DriftConfig) bool {
	return current < cfg.MinValidScore || original-current > cfg.MaxScoreDrop
}

func severity(drifted, total int) string {
	switch {
	case drifted == total:
		return types.DriftSeverityCritical
	case drifted*2 > total:
		return types.DriftSeverityHigh
	default:
		return types.DriftSeverityMedium
	}
}

func decodeVector(raw []byte) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

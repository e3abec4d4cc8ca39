package report

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/gap"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Reporter assembles the traceability matrix and judges compliance against
// the configured thresholds.
type Reporter struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	reqs    repos.RequirementRepo
	matches repos.RequirementMatchRepo
	nodes   repos.CodeNodeRepo
}

func NewReporter(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	reqs repos.RequirementRepo,
	matches repos.RequirementMatchRepo,
	nodes repos.CodeNodeRepo,
) *Reporter {
	return &Reporter{
		db:      db,
		log:     baseLog.With("component", "Reporter"),
		cfg:     cfg,
		reqs:    reqs,
		matches: matches,
		nodes:   nodes,
	}
}

// BuildMatrix loads accepted requirements with their matches and rolls them
// up into the traceability matrix.
func (r *Reporter) BuildMatrix(ctx context.Context, projectID uuid.UUID) (*Matrix, error) {
	ctx, span := observability.StartSpan(ctx, "report.matrix")
	defer span.End()

	cfg := r.cfg.Current().Report
	tenantID := ctxutil.TenantOrDefault(ctx)
	reqs, err := r.reqs.ListAcceptedByProject(ctx, nil, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	reqIDs := make([]uuid.UUID, 0, len(reqs))
	for _, req := range reqs {
		reqIDs = append(reqIDs, req.ID)
	}
	matchesByReq := map[uuid.UUID][]*types.RequirementMatch{}
	nodeIDSet := map[uuid.UUID]bool{}
	if len(reqIDs) > 0 {
		all, merr := r.matches.ListByRequirementIDs(ctx, nil, reqIDs)
		if merr != nil {
			return nil, merr
		}
		for _, m := range all {
			matchesByReq[m.RequirementID] = append(matchesByReq[m.RequirementID], m)
			nodeIDSet[m.NodeID] = true
		}
	}
	nodeByID := map[uuid.UUID]*types.CodeNode{}
	if len(nodeIDSet) > 0 {
		ids := make([]uuid.UUID, 0, len(nodeIDSet))
		for id := range nodeIDSet {
			ids = append(ids, id)
		}
		nodes, nerr := r.nodes.GetByIDs(ctx, nil, ids)
		if nerr != nil {
			return nil, nerr
		}
		for _, n := range nodes {
			nodeByID[n.ID] = n
		}
	}

	matrix := &Matrix{
		ProjectID:   projectID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Rows:        make([]Row, 0, len(reqs)),
	}
	sum := 0
	for _, req := range reqs {
		ms := matchesByReq[req.ID]
		completion := gap.Completion(ms)
		row := Row{
			RequirementID: req.ID,
			Title:         req.Title,
			Type:          req.Type,
			Status:        req.Status,
			Completion:    completion,
			Band:          band(completion, cfg.FullBand),
			Verified:      hasVerified(ms),
			Matches:       make([]MatchCell, 0, len(ms)),
		}
		for _, m := range ms {
			cell := MatchCell{
				NodeID:     m.NodeID,
				Score:      m.Score,
				MatchTypes: m.Types(),
				Confidence: m.Confidence,
			}
			if n := nodeByID[m.NodeID]; n != nil {
				cell.FilePath = n.FilePath
				cell.NodePath = n.NodePath
			}
			row.Matches = append(row.Matches, cell)
		}
		switch row.Band {
		case BandFull:
			matrix.FullCount++
		case BandPartial:
			matrix.PartialCount++
		default:
			matrix.NoneCount++
		}
		sum += completion
		matrix.Rows = append(matrix.Rows, row)
	}
	if len(matrix.Rows) > 0 {
		matrix.OverallCompletion = int(math.Round(float64(sum) / float64(len(matrix.Rows))))
	}
	return matrix, nil
}

package gap

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Confidence weights for the completion formula.
var confidenceWeights = map[string]float64{
	types.ConfidenceHigh:   1.0,
	types.ConfidenceMedium: 0.7,
	types.ConfidenceLow:    0.4,
}

var largeEffortRe = regexp.MustCompile(`(?i)\b(complex|integration|system)\b`)

// Analyzer classifies accepted requirements by match coverage and refreshes
// the per-requirement gap cache.
type Analyzer struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	reqs    repos.RequirementRepo
	matches repos.RequirementMatchRepo
	records repos.GapRecordRepo
}

func NewAnalyzer(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	reqs repos.RequirementRepo,
	matches repos.RequirementMatchRepo,
	records repos.GapRecordRepo,
) *Analyzer {
	return &Analyzer{
		db:      db,
		log:     baseLog.With("component", "GapAnalyzer"),
		cfg:     cfg,
		reqs:    reqs,
		matches: matches,
		records: records,
	}
}

// Analyze refreshes the gap records for a project and returns them. Records
// for requirements no longer gapped are deleted. priorityOnly narrows the
// returned set to high priority without affecting what is persisted.
func (a *Analyzer) Analyze(ctx context.Context, projectID uuid.UUID, priorityOnly bool) ([]*types.GapRecord, error) {
	ctx, span := observability.StartSpan(ctx, "gap.analyze")
	defer span.End()

	cfg := a.cfg.Current().Gap
	tenantID := ctxutil.TenantOrDefault(ctx)
	reqs, err := a.reqs.ListAcceptedByProject(ctx, nil, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	reqIDs := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		reqIDs = append(reqIDs, r.ID)
	}
	matchesByReq := map[uuid.UUID][]*types.RequirementMatch{}
	if len(reqIDs) > 0 {
		all, merr := a.matches.ListByRequirementIDs(ctx, nil, reqIDs)
		if merr != nil {
			return nil, merr
		}
		for _, m := range all {
			matchesByReq[m.RequirementID] = append(matchesByReq[m.RequirementID], m)
		}
	}

	var (
		gapped []*types.GapRecord
		keep   []uuid.UUID
	)
	for _, req := range reqs {
		completion := Completion(matchesByReq[req.ID])
		if completion >= cfg.GapThreshold {
			continue
		}
		rec := &types.GapRecord{
			TenantID:      tenantID,
			RequirementID: req.ID,
			ProjectID:     projectID,
			GapType:       gapType(len(matchesByReq[req.ID])),
			Completion:    completion,
			Priority:      priority(completion, req.Type, &cfg),
			Effort:        Effort(req.Text),
		}
		rec.Suggestions = encodeSuggestions(suggestions(req, completion))
		gapped = append(gapped, rec)
		keep = append(keep, req.ID)
	}

	if len(gapped) > 0 {
		if _, err := a.records.UpsertBatch(ctx, nil, gapped); err != nil {
			return nil, err
		}
	}
	if err := a.records.DeleteStale(ctx, nil, projectID, keep); err != nil {
		return nil, err
	}

	if !priorityOnly {
		return gapped, nil
	}
	high := gapped[:0]
	for _, g := range gapped {
		if g.Priority == types.GapPriorityHigh {
			high = append(high, g)
		}
	}
	return high, nil
}

// Completion is the weighted coverage percentage of one requirement's
// matches: round(100 * sum(score*weight) / sum(weight)). No matches is 0.
func Completion(ms []*types.RequirementMatch) int {
	if len(ms) == 0 {
		return 0
	}
	var weighted, total float64
	for _, m := range ms {
		w, ok := confidenceWeights[m.Confidence]
		if !ok {
			w = confidenceWeights[types.ConfidenceLow]
		}
		weighted += m.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * weighted / total))
}

func gapType(matchCount int) string {
	if matchCount == 0 {
		return types.GapTypeMissing
	}
	return types.GapTypePartial
}

// priority: only features escalate; suggestions are always low.
func priority(completion int, reqType string, cfg *config.GapConfig) string {
	if reqType != types.RequirementTypeFeature {
		return types.GapPriorityLow
	}
	switch {
	case completion < cfg.HighThreshold:
		return types.GapPriorityHigh
	case completion < cfg.GapThreshold:
		return types.GapPriorityMedium
	default:
		return types.GapPriorityLow
	}
}

// Effort estimates implementation size from the requirement text: the
// keyword scan wins, then raw length.
func Effort(text string) string {
	if largeEffortRe.MatchString(text) {
		return types.GapEffortLarge
	}
	switch {
	case len(text) > 500:
		return types.GapEffortLarge
	case len(text) > 200:
		return types.GapEffortMedium
	default:
		return types.GapEffortSmall
	}
}

func suggestions(req *types.Requirement, completion int) []string {
	if completion == 0 {
		return []string{fmt.Sprintf("No code implements %q; schedule it for implementation.", req.Title)}
	}
	return []string{fmt.Sprintf("%q is only partially covered (%d%%); review the matched code for missing behavior.", req.Title, completion)}
}

func encodeSuggestions(s []string) datatypes.JSON {
	raw, _ := json.Marshal(s)
	return datatypes.JSON(raw)
}

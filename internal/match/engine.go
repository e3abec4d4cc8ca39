package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	apperr "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// requirementNamespace holds query vectors in the index, apart from any
// repository namespace.
const requirementNamespace = "requirements"

// NodeMatch is one scored requirement-to-node edge as the engine reports it.
type NodeMatch struct {
	MatchID    uuid.UUID `json:"match_id"`
	NodeID     uuid.UUID `json:"node_id"`
	FilePath   string    `json:"file_path"`
	NodePath   string    `json:"node_path"`
	Score      float64   `json:"score"`
	MatchTypes []string  `json:"match_types"`
	Confidence string    `json:"confidence"`
}

// Result is a degraded-but-valid outcome: Matches may be empty with Err set
// when every candidate repository failed. Callers decide whether that is
// fatal; the engine never aborts the run for partial failure.
type Result struct {
	RequirementID uuid.UUID   `json:"requirement_id"`
	Matches       []NodeMatch `json:"matches"`
	Err           error       `json:"-"`
}

// Engine scores requirements against indexed code. Vector search first,
// lexical Jaccard as the fallback tier.
type Engine struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	ai  inference.Client
	vec vectorindex.Store

	reqs       repos.RequirementRepo
	matches    repos.RequirementMatchRepo
	nodes      repos.CodeNodeRepo
	embeddings repos.EmbeddingRepo
}

func NewEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	ai inference.Client,
	vec vectorindex.Store,
	reqs repos.RequirementRepo,
	matches repos.RequirementMatchRepo,
	nodes repos.CodeNodeRepo,
	embeddings repos.EmbeddingRepo,
) *Engine {
	return &Engine{
		db:         db,
		log:        baseLog.With("component", "MatchEngine"),
		cfg:        cfg,
		ai:         ai,
		vec:        vec,
		reqs:       reqs,
		matches:    matches,
		nodes:      nodes,
		embeddings: embeddings,
	}
}

type scoredNode struct {
	nodeID uuid.UUID
	score  float64
}

// Match scores one requirement against the given repositories and upserts
// the resulting edges. Prior match-type tags survive via union-merge.
func (e *Engine) Match(ctx context.Context, requirementID uuid.UUID, repoIDs []uuid.UUID) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "match.requirement")
	defer span.End()

	tenantID := ctxutil.TenantOrDefault(ctx)
	req, err := e.reqs.GetByID(ctx, nil, tenantID, requirementID)
	if err != nil {
		return nil, err
	}
	if len(repoIDs) == 0 {
		return nil, fmt.Errorf("match: no candidate repositories: %w", apperr.ErrInvalidArgument)
	}
	cfg := e.cfg.Current().Match
	queryText := req.Title + "\n" + req.Text

	qvec, vecErr := e.queryVector(ctx, req, queryText)

	var scored []scoredNode
	var searchErr error
	if vecErr == nil {
		scored, searchErr = e.vectorSearch(ctx, qvec, repoIDs, &cfg)
	} else {
		searchErr = vecErr
	}
	if len(scored) == 0 {
		lexical, lexErr := e.lexicalSearch(ctx, queryText, repoIDs, &cfg)
		if lexErr != nil && searchErr != nil {
			// Every tier failed everywhere: report, do not abort.
			return &Result{RequirementID: req.ID, Matches: []NodeMatch{}, Err: fmt.Errorf("all repositories failed: %w", lexErr)}, nil
		}
		scored = lexical
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > cfg.TopK {
		scored = scored[:cfg.TopK]
	}
	if len(scored) == 0 {
		return &Result{RequirementID: req.ID, Matches: []NodeMatch{}}, nil
	}

	nodeIDs := make([]uuid.UUID, 0, len(scored))
	for _, s := range scored {
		nodeIDs = append(nodeIDs, s.nodeID)
	}
	nodes, err := e.nodes.GetByIDs(ctx, nil, nodeIDs)
	if err != nil {
		return nil, err
	}
	nodeByID := make(map[uuid.UUID]*types.CodeNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	rows := make([]*types.RequirementMatch, 0, len(scored))
	for _, s := range scored {
		node, ok := nodeByID[s.nodeID]
		if !ok {
			continue
		}
		row := &types.RequirementMatch{
			TenantID:      tenantID,
			RequirementID: req.ID,
			NodeID:        node.ID,
			Score:         s.score,
			Confidence:    DeriveConfidence(s.score, &cfg),
		}
		row.SetTypes(DeriveTypes(req.Text, node.Summary, node.Text, s.score, &cfg))
		rows = append(rows, row)
	}
	saved, err := e.matches.UpsertMerge(ctx, nil, rows)
	if err != nil {
		return nil, err
	}

	out := make([]NodeMatch, 0, len(saved))
	for _, m := range saved {
		node := nodeByID[m.NodeID]
		nm := NodeMatch{
			MatchID:    m.ID,
			NodeID:     m.NodeID,
			Score:      m.Score,
			MatchTypes: m.Types(),
			Confidence: m.Confidence,
		}
		if node != nil {
			nm.FilePath = node.FilePath
			nm.NodePath = node.NodePath
		}
		out = append(out, nm)
	}
	return &Result{RequirementID: req.ID, Matches: out}, nil
}

// queryVector returns the requirement's query vector, generating and
// persisting the index copy on first use. A cleared VectorID (text edit)
// forces regeneration.
func (e *Engine) queryVector(ctx context.Context, req *types.Requirement, queryText string) ([]float32, error) {
	vecs, err := e.ai.Embed(ctx, []string{queryText})
	if err != nil || len(vecs) == 0 || len(vecs[0]) == 0 {
		if err == nil {
			err = fmt.Errorf("empty embedding")
		}
		return nil, fmt.Errorf("query vector: %w", err)
	}
	qvec := vecs[0]
	if req.VectorID == "" {
		vid := req.ID.String()
		if upErr := e.vec.Upsert(ctx, requirementNamespace, []vectorindex.Vector{{ID: vid, Values: qvec}}); upErr != nil {
			e.log.Warn("Query vector index upsert failed", "requirement_id", req.ID, "error", upErr)
		} else if setErr := e.reqs.SetVectorID(ctx, nil, req.ID, vid); setErr != nil {
			e.log.Warn("SetVectorID failed", "requirement_id", req.ID, "error", setErr)
		}
	}
	return qvec, nil
}

// vectorSearch fans out one index query per repository. A failing repository
// is logged and skipped; the error returns only when every repository fails.
func (e *Engine) vectorSearch(ctx context.Context, qvec []float32, repoIDs []uuid.UUID, cfg *config.MatchConfig) ([]scoredNode, error) {
	var (
		mu      sync.Mutex
		scored  []scoredNode
		failed  int
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(repoIDs))
	for _, repoID := range repoIDs {
		repoID := repoID
		g.Go(func() error {
			hits, err := e.vec.QueryMatches(gctx, vectorindex.RepoNamespace(repoID.String()), qvec, cfg.TopK, cfg.MinVectorScore)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.Warn("Vector query failed for repository", "repo_id", repoID, "error", err)
				failed++
				lastErr = err
				return nil
			}
			for _, h := range hits {
				id, perr := uuid.Parse(h.ID)
				if perr != nil {
					continue
				}
				scored = append(scored, scoredNode{nodeID: id, score: clampScore(h.Score)})
			}
			return nil
		})
	}
	_ = g.Wait()
	if failed == len(repoIDs) {
		return nil, fmt.Errorf("vector search: %w", lastErr)
	}
	return scored, nil
}

// lexicalSearch is the fallback tier: Jaccard overlap between the
// requirement text and each node's summary plus snippet.
func (e *Engine) lexicalSearch(ctx context.Context, queryText string, repoIDs []uuid.UUID, cfg *config.MatchConfig) ([]scoredNode, error) {
	var (
		scored  []scoredNode
		failed  int
		lastErr error
	)
	for _, repoID := range repoIDs {
		nodes, err := e.nodes.ListByRepo(ctx, nil, repoID)
		if err != nil {
			e.log.Warn("Lexical scan failed for repository", "repo_id", repoID, "error", err)
			failed++
			lastErr = err
			continue
		}
		for _, n := range nodes {
			score := Jaccard(queryText, n.Summary+"\n"+n.Text)
			if score > cfg.MinLexicalScore {
				scored = append(scored, scoredNode{nodeID: n.ID, score: clampScore(score)})
			}
		}
	}
	if failed == len(repoIDs) {
		return nil, fmt.Errorf("lexical search: %w", lastErr)
	}
	return scored, nil
}

// Verify applies a review verdict to one match: verified adds the tag,
// rejected removes the edge entirely.
func (e *Engine) Verify(ctx context.Context, matchID uuid.UUID, verdict string) (*types.RequirementMatch, error) {
	tenantID := ctxutil.TenantOrDefault(ctx)
	m, err := e.matches.GetByID(ctx, nil, tenantID, matchID)
	if err != nil {
		return nil, err
	}
	switch verdict {
	case "verified":
		tags := types.UnionMatchTypes(m.Types(), []string{types.MatchTypeVerified})
		if err := e.matches.UpdateTypes(ctx, nil, m.ID, tags); err != nil {
			return nil, err
		}
		m.SetTypes(tags)
		return m, nil
	case "rejected":
		if err := e.matches.Delete(ctx, nil, m.ID); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("verify: unknown verdict %q: %w", verdict, apperr.ErrInvalidArgument)
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

package embedder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/types"
)

func (e *Embedder) Run(jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	repoID, ok := jc.PayloadUUID("repoId")
	if !ok || repoID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing repoId"))
		return nil
	}
	nodeID, ok := jc.PayloadUUID("nodeId")
	if !ok || nodeID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing nodeId"))
		return nil
	}
	nodeText := jc.PayloadString("nodeText")
	if nodeText == "" {
		jc.Fail("validate", fmt.Errorf("missing nodeText"))
		return nil
	}

	ctx, span := observability.StartSpan(jc.Ctx, "embed-chunks")
	defer span.End()

	// Strict mode: the service must decline rather than invent when the
	// chunk carries too little signal.
	res, err := e.ai.Summarize(ctx, nodeText, true, summaryMaxTokens)
	if err != nil {
		jc.Fail("summarize", err)
		return nil
	}
	summary := res.Summary
	confidence := normalizeConfidence(res.Confidence)
	if res.Insufficient {
		summary = types.InsufficientContextMarker
		confidence = types.ConfidenceLow
	}

	// Vector generation is best-effort: a null vector just shifts this node
	// onto the lexical fallback path.
	var vectorJSON datatypes.JSON
	var vector []float32
	vecs, embErr := e.ai.Embed(ctx, []string{nodeText})
	if embErr != nil || len(vecs) == 0 || len(vecs[0]) == 0 {
		if embErr != nil {
			e.log.Warn("Embed failed, persisting without vector", "node_id", nodeID, "error", embErr)
		}
	} else {
		vector = vecs[0]
		if raw, mErr := json.Marshal(vector); mErr == nil {
			vectorJSON = datatypes.JSON(raw)
		}
	}

	emb := &types.Embedding{
		TenantID:   ctxutil.TenantOrDefault(ctx),
		NodeID:     nodeID,
		RepoID:     repoID,
		Vector:     vectorJSON,
		Summary:    summary,
		Confidence: confidence,
		ChunkText:  chunkPreview(nodeText),
		Model:      os.Getenv("INFERENCE_EMBED_MODEL"),
	}
	if _, err := e.embeddings.Upsert(ctx, nil, emb); err != nil {
		jc.Fail("persist", err)
		return nil
	}

	// Mirror the summary onto the node row: the lexical fallback, symbol
	// tagging, and drift re-scoring all read it from there.
	if err := e.nodes.UpdateSummary(ctx, nil, nodeID, summary, confidence); err != nil {
		jc.Fail("persist-node", err)
		return nil
	}

	if len(vector) > 0 {
		ns := vectorindex.RepoNamespace(repoID.String())
		if err := e.vec.Upsert(ctx, ns, []vectorindex.Vector{{ID: nodeID.String(), Values: vector}}); err != nil {
			// The row is the source of truth; the index catches up on the
			// next redelivery or re-sync.
			e.log.Warn("Vector index upsert failed", "node_id", nodeID, "error", err)
		}
	}

	jc.Complete(map[string]any{
		"node_id":    nodeID.String(),
		"confidence": confidence,
		"has_vector": len(vector) > 0,
	})
	return nil
}

// chunkPreview caps the citation excerpt stored on the embedding row; the
// full text stays on the code node.
func chunkPreview(s string) string {
	if len(s) <= chunkTextMaxBytes {
		return s
	}
	return s[:chunkTextMaxBytes]
}

func normalizeConfidence(c string) string {
	switch c {
	case types.ConfidenceHigh, types.ConfidenceMedium, types.ConfidenceLow:
		return c
	default:
		return types.ConfidenceMedium
	}
}

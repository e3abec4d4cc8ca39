package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// astEntry is the projection of a node written to the AST blob.
type astEntry struct {
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
	NodePath  string `json:"node_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (p *Parser) Run(jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	repoID, ok := jc.PayloadUUID("repoId")
	if !ok || repoID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing repoId"))
		return nil
	}
	commitSHA := jc.PayloadString("sha")
	filePath := jc.PayloadString("path")
	blobSHA := jc.PayloadString("blobSha")
	if commitSHA == "" || filePath == "" || blobSHA == "" {
		jc.Fail("validate", fmt.Errorf("missing sha/path/blobSha"))
		return nil
	}

	ctx, span := observability.StartSpan(jc.Ctx, "parse-files")
	defer span.End()

	content, err := p.store.Get(ctx, blob.SourceKey(repoID, commitSHA, filePath))
	if err != nil {
		jc.Fail("load-blob", fmt.Errorf("read %s: %w", filePath, err))
		return nil
	}

	cfg := p.cfg.Current().Pipeline
	cands := Extract(ctx, p.registry, filePath, content, Limits{
		MaxNodeBytes:  cfg.MaxNodeBytes,
		MaxRegexNodes: cfg.MaxRegexNodes,
		WholeFileCap:  cfg.WholeFileCap,
	})
	if len(cands) == 0 {
		// Empty or whitespace-only file: nothing to trace, and any nodes a
		// previous version produced are gone.
		if err := p.retireStale(ctx, repoID, filePath, blobSHA); err != nil {
			jc.Fail("retire-stale", err)
			return nil
		}
		jc.Complete(map[string]any{"path": filePath, "nodes": 0})
		return nil
	}

	tenantID := ctxutil.TenantOrDefault(ctx)
	language := LanguageForPath(filePath)
	rows := make([]*types.CodeNode, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, &types.CodeNode{
			TenantID:  tenantID,
			RepoID:    repoID,
			FilePath:  filePath,
			NodePath:  c.NodePath,
			BlobSHA:   blobSHA,
			Kind:      c.Kind,
			Language:  language,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Text:      c.Text,
		})
	}
	saved, err := p.nodes.UpsertBatch(ctx, nil, rows)
	if err != nil {
		jc.Fail("persist-nodes", err)
		return nil
	}

	// The new blob's nodes are in place; drop the path's superseded versions
	// so stale code stops matching and existing matches against it drift.
	if err := p.retireStale(ctx, repoID, filePath, blobSHA); err != nil {
		jc.Fail("retire-stale", err)
		return nil
	}

	astKey := blob.ASTKey(repoID, commitSHA, filePath)
	entries := make([]astEntry, 0, len(saved))
	for _, n := range saved {
		entries = append(entries, astEntry{
			NodeID:    n.ID.String(),
			Kind:      n.Kind,
			NodePath:  n.NodePath,
			StartLine: n.StartLine,
			EndLine:   n.EndLine,
		})
	}
	raw, _ := json.Marshal(entries)
	if _, err := p.store.Put(ctx, astKey, raw); err != nil {
		jc.Fail("persist-ast", err)
		return nil
	}

	payloads := make([]map[string]any, 0, len(saved))
	for _, n := range saved {
		payloads = append(payloads, map[string]any{
			"repoId":   repoID.String(),
			"sha":      commitSHA,
			"path":     filePath,
			"nodePath": n.NodePath,
			"nodeText": n.Text,
			"astKey":   astKey,
			"nodeId":   n.ID.String(),
		})
	}
	if _, err := p.queue.EnqueueBatch(ctx, types.StageEmbedChunks, "code_node", payloads); err != nil {
		jc.Fail("enqueue-embed", err)
		return nil
	}

	if count, err := p.nodes.CountByRepo(ctx, nil, repoID); err == nil {
		_ = p.repositories.UpdateFields(ctx, nil, repoID, map[string]interface{}{
			"node_count": int(count),
		})
	}

	jc.Complete(map[string]any{
		"path":  filePath,
		"nodes": len(saved),
	})
	return nil
}

// retireStale deletes the path's node rows from older blobs along with their
// embeddings and index vectors. Row deletion failures fail the job so the
// redelivery retries; a dangling index vector only resolves to a node the
// engine can no longer load, so it is logged and left for the index.
func (p *Parser) retireStale(ctx context.Context, repoID uuid.UUID, filePath, keepBlobSHA string) error {
	ids, err := p.nodes.ListIDsByPath(ctx, nil, repoID, filePath, keepBlobSHA)
	if err != nil {
		return fmt.Errorf("stale lookup %s: %w", filePath, err)
	}
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}
	if err := p.vec.DeleteIDs(ctx, vectorindex.RepoNamespace(repoID.String()), strIDs); err != nil {
		p.log.Warn("Vector index delete failed", "path", filePath, "error", err)
	}
	if err := p.embeddings.DeleteByNodeIDs(ctx, nil, ids); err != nil {
		return fmt.Errorf("retire embeddings %s: %w", filePath, err)
	}
	if err := p.nodes.DeleteByIDs(ctx, nil, ids); err != nil {
		return fmt.Errorf("retire nodes %s: %w", filePath, err)
	}
	return nil
}

package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/gitsource"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/types"
)

func (f *Fetcher) Run(jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	repoID, ok := jc.PayloadUUID("repoId")
	if !ok || repoID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing repoId"))
		return nil
	}

	ctx, span := observability.StartSpan(jc.Ctx, "fetch-files")
	defer span.End()

	tenantID := ctxutil.TenantOrDefault(ctx)
	repo, err := f.repositories.GetByID(ctx, nil, tenantID, repoID)
	if err != nil {
		jc.Fail("load-repo", err)
		return nil
	}

	// Both pending and indexed repositories may enter indexing; a job
	// redelivered while the row already says indexing just proceeds.
	if moved, _ := f.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusPending, types.RepoStatusIndexing); !moved {
		_, _ = f.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusIndexed, types.RepoStatusIndexing)
	}

	workDir := filepath.Join(f.cacheDir, repo.ID.String())
	branch := jc.PayloadString("ref")
	if branch == "" {
		branch = repo.DefaultBranch
	}

	jc.Progress("Cloning repository", map[string]any{"url": repo.URL, "ref": branch})
	if err := f.git.CloneOrUpdate(ctx, repo.URL, workDir, branch); err != nil {
		f.markFailed(jc, repo.ID, fmt.Errorf("clone %s: %w", repo.URL, err))
		return nil
	}
	headSHA, err := f.git.HeadSHA(ctx, workDir)
	if err != nil {
		f.markFailed(jc, repo.ID, fmt.Errorf("resolve head: %w", err))
		return nil
	}

	cfg := f.cfg.Current().Pipeline
	oldSHA := jc.PayloadString("oldSha")
	newSHA := jc.PayloadString("newSha")
	if oldSHA != "" && newSHA == "" {
		newSHA = headSHA
	}

	candidates, skips, removed := f.collect(jc, repo, workDir, oldSHA, newSHA, cfg.MaxFileSizeBytes)
	jc.Progress("Scanned working tree", map[string]any{
		"candidates": len(candidates),
		"removed":    len(removed),
		"skipped":    countSkips(skips),
	})

	var (
		mu       sync.Mutex
		newBlobs int
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.StageConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			isNew, err := f.processFile(gctx, repo, tenantID, headSHA, c)
			mu.Lock()
			if err != nil {
				f.log.Warn("File ingest failed", "path", c.path, "error", err)
				failures++
			} else if isNew {
				newBlobs++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	retired := f.retirePaths(ctx, repo.ID, removed)

	fileCount, _ := f.blobs.CountByRepo(ctx, nil, repo.ID)
	now := time.Now().UTC()
	if err := f.repositories.UpdateFields(ctx, nil, repo.ID, map[string]interface{}{
		"status":          types.RepoStatusIndexed,
		"latest_sha":      headSHA,
		"file_count":      int(fileCount),
		"last_error":      "",
		"last_indexed_at": &now,
	}); err != nil {
		jc.Fail("finalize", err)
		return nil
	}

	jc.Complete(map[string]any{
		"repo_id":   repo.ID.String(),
		"head_sha":  headSHA,
		"scanned":   len(candidates),
		"new_blobs": newBlobs,
		"enqueued":  newBlobs,
		"retired":   retired,
		"failures":  failures,
		"skipped":   countSkips(skips),
	})
	return nil
}

// processFile stores one candidate's bytes and seeds its parse job. The
// file_blob row is the commit point for the downstream chain: it lands only
// after the blob is stored and the parse job exists, so a partial failure is
// retried on the next scan instead of being mistaken for known content.
func (f *Fetcher) processFile(ctx context.Context, repo *types.RepositorySnapshot, tenantID uuid.UUID, headSHA string, c candidate) (bool, error) {
	sum := sha256.Sum256(c.content)
	blobSHA := hex.EncodeToString(sum[:])
	key := blob.SourceKey(repo.ID, headSHA, c.path)

	known, err := f.blobs.GetByRepoAndSHA(ctx, nil, repo.ID, blobSHA)
	if err != nil {
		return false, fmt.Errorf("blob lookup: %w", err)
	}
	if known != nil {
		// Known content: the parse stage already saw these bytes.
		return false, nil
	}

	if _, err := f.store.Put(ctx, key, c.content); err != nil {
		return false, fmt.Errorf("blob store write: %w", err)
	}
	if _, err := f.queue.Enqueue(ctx, types.StageParseFiles, "repository", &repo.ID, map[string]any{
		"repoId":  repo.ID.String(),
		"sha":     headSHA,
		"path":    c.path,
		"blobSha": blobSHA,
	}); err != nil {
		return false, fmt.Errorf("parse enqueue: %w", err)
	}

	inserted, err := f.blobs.InsertIfAbsent(ctx, nil, &types.FileBlob{
		TenantID:   tenantID,
		RepoID:     repo.ID,
		BlobSHA:    blobSHA,
		Path:       c.path,
		SizeBytes:  int64(len(c.content)),
		StorageKey: key,
		CommitSHA:  headSHA,
	})
	if err != nil {
		return false, fmt.Errorf("blob record: %w", err)
	}
	if !inserted {
		// A concurrent scan won the race; its parse job covers the file.
		return false, nil
	}
	return true, nil
}

// retirePaths drops every trace of paths that left the tree: node rows,
// their embeddings, their index vectors, and the blob records that would
// otherwise dedup a later re-add into silence. Failures are logged and the
// next scan retries them.
func (f *Fetcher) retirePaths(ctx context.Context, repoID uuid.UUID, paths []string) int {
	retired := 0
	ns := vectorindex.RepoNamespace(repoID.String())
	for _, p := range paths {
		ids, err := f.nodes.ListIDsByPath(ctx, nil, repoID, p, "")
		if err != nil {
			f.log.Warn("Stale node lookup failed", "path", p, "error", err)
			continue
		}
		if len(ids) > 0 {
			strIDs := make([]string, 0, len(ids))
			for _, id := range ids {
				strIDs = append(strIDs, id.String())
			}
			if err := f.vec.DeleteIDs(ctx, ns, strIDs); err != nil {
				// The rows are the source of truth; a dangling vector only
				// resolves to a node the engine can no longer load.
				f.log.Warn("Vector index delete failed", "path", p, "error", err)
			}
			if err := f.embeddings.DeleteByNodeIDs(ctx, nil, ids); err != nil {
				f.log.Warn("Embedding delete failed", "path", p, "error", err)
				continue
			}
			if err := f.nodes.DeleteByIDs(ctx, nil, ids); err != nil {
				f.log.Warn("Node delete failed", "path", p, "error", err)
				continue
			}
		}
		if err := f.blobs.DeleteByRepoPath(ctx, nil, repoID, p); err != nil {
			f.log.Warn("Blob record delete failed", "path", p, "error", err)
			continue
		}
		retired++
	}
	return retired
}

// collect picks the candidate set: incremental via the compare API or git
// diff when an old..new range is present, full walk otherwise or when both
// incremental sources fail. The third return lists paths that no longer
// exist and must be retired.
func (f *Fetcher) collect(jc *runtime.Context, repo *types.RepositorySnapshot, workDir, oldSHA, newSHA string, maxSize int64) ([]candidate, map[skipReason]int, []string) {
	if oldSHA == "" || newSHA == "" {
		cands, skips := walkTree(workDir, maxSize)
		return cands, skips, f.vanishedPaths(jc.Ctx, repo.ID, cands)
	}

	changed, err := f.changedFiles(jc, repo, workDir, oldSHA, newSHA)
	if err != nil {
		f.log.Warn("Incremental diff failed, falling back to full walk", "error", err)
		cands, skips := walkTree(workDir, maxSize)
		return cands, skips, f.vanishedPaths(jc.Ctx, repo.ID, cands)
	}
	paths := make([]string, 0, len(changed))
	var removed []string
	for _, c := range changed {
		if c.Status == gitsource.ChangeRemoved {
			removed = append(removed, c.Path)
			continue
		}
		paths = append(paths, c.Path)
	}
	cands, skips := readCandidates(workDir, paths, maxSize)
	return cands, skips, removed
}

// vanishedPaths reconciles a full walk against the node table: any recorded
// path absent from the walk was deleted (or stopped being parseable) since
// the last scan.
func (f *Fetcher) vanishedPaths(ctx context.Context, repoID uuid.UUID, cands []candidate) []string {
	recorded, err := f.nodes.ListPathsByRepo(ctx, nil, repoID)
	if err != nil {
		f.log.Warn("Recorded path lookup failed", "error", err)
		return nil
	}
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		seen[c.path] = struct{}{}
	}
	var gone []string
	for _, p := range recorded {
		if _, ok := seen[p]; !ok {
			gone = append(gone, p)
		}
	}
	return gone
}

func (f *Fetcher) changedFiles(jc *runtime.Context, repo *types.RepositorySnapshot, workDir, oldSHA, newSHA string) ([]gitsource.ChangedFile, error) {
	if f.diff != nil && repo.Provider == "github" {
		changed, err := f.diff.CompareCommits(jc.Ctx, repo.Owner, repo.Name, oldSHA, newSHA)
		if err == nil {
			return changed, nil
		}
		f.log.Warn("Compare API failed, trying git diff", "error", err)
	}
	return f.git.ChangedPaths(jc.Ctx, workDir, oldSHA, newSHA)
}

func (f *Fetcher) markFailed(jc *runtime.Context, repoID uuid.UUID, err error) {
	_ = f.repositories.UpdateFields(jc.Ctx, nil, repoID, map[string]interface{}{
		"status":     types.RepoStatusFailed,
		"last_error": err.Error(),
	})
	jc.Fail("fetch", err)
}

func countSkips(skips map[skipReason]int) int {
	total := 0
	for _, n := range skips {
		total += n
	}
	return total
}

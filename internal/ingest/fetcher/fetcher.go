package fetcher

import (
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/jobs"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/gitsource"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Fetcher is the fetch-files stage: it materializes a repository snapshot
// into content-addressed blobs, seeds the parse stage, and retires the
// traceability state of paths that left the tree.
type Fetcher struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	git   gitsource.Provider
	diff  gitsource.DiffAPI // optional, nil when no GitHub token is configured
	store blob.Store
	vec   vectorindex.Store

	blobs        repos.FileBlobRepo
	nodes        repos.CodeNodeRepo
	embeddings   repos.EmbeddingRepo
	repositories repos.RepositoryRepo
	queue        jobs.Enqueuer

	cacheDir string
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	git gitsource.Provider,
	diff gitsource.DiffAPI,
	store blob.Store,
	vec vectorindex.Store,
	blobs repos.FileBlobRepo,
	nodes repos.CodeNodeRepo,
	embeddings repos.EmbeddingRepo,
	repositories repos.RepositoryRepo,
	queue jobs.Enqueuer,
) *Fetcher {
	cacheDir := os.Getenv("REPO_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "tracevine-repos")
	}
	return &Fetcher{
		db:           db,
		log:          baseLog.With("job", types.StageFetchFiles),
		cfg:          cfg,
		git:          git,
		diff:         diff,
		store:        store,
		vec:          vec,
		blobs:        blobs,
		nodes:        nodes,
		embeddings:   embeddings,
		repositories: repositories,
		queue:        queue,
		cacheDir:     cacheDir,
	}
}

func (f *Fetcher) Type() string { return types.StageFetchFiles }

package parser

import (
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/jobs"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Parser is the parse-files stage: one blob in, a set of code nodes and one
// embed job per node out. Persisting a new blob's nodes retires the path's
// older versions so matches against them surface as drift, not as hits.
type Parser struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	registry *Registry
	store    blob.Store
	vec      vectorindex.Store

	nodes        repos.CodeNodeRepo
	embeddings   repos.EmbeddingRepo
	repositories repos.RepositoryRepo
	queue        jobs.Enqueuer
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	registry *Registry,
	store blob.Store,
	vec vectorindex.Store,
	nodes repos.CodeNodeRepo,
	embeddings repos.EmbeddingRepo,
	repositories repos.RepositoryRepo,
	queue jobs.Enqueuer,
) *Parser {
	return &Parser{
		db:           db,
		log:          baseLog.With("job", types.StageParseFiles),
		cfg:          cfg,
		registry:     registry,
		store:        store,
		vec:          vec,
		nodes:        nodes,
		embeddings:   embeddings,
		repositories: repositories,
		queue:        queue,
	}
}

func (p *Parser) Type() string { return types.StageParseFiles }

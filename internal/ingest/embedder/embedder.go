package embedder

import (
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

const (
	// summaryMaxTokens bounds the summarize call per node chunk.
	summaryMaxTokens = 256
	// chunkTextMaxBytes bounds the citation excerpt on the embedding row.
	chunkTextMaxBytes = 1000
)

// Embedder is the embed-chunks stage: summarize one node, embed it, persist
// the derived artifact and mirror the vector into the index.
type Embedder struct {
	db  *gorm.DB
	log *logger.Logger

	ai  inference.Client
	vec vectorindex.Store

	embeddings repos.EmbeddingRepo
	nodes      repos.CodeNodeRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai inference.Client,
	vec vectorindex.Store,
	embeddings repos.EmbeddingRepo,
	nodes repos.CodeNodeRepo,
) *Embedder {
	return &Embedder{
		db:         db,
		log:        baseLog.With("job", types.StageEmbedChunks),
		ai:         ai,
		vec:        vec,
		embeddings: embeddings,
		nodes:      nodes,
	}
}

func (e *Embedder) Type() string { return types.StageEmbedChunks }

package vectorindex

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
)

// Store is the similarity backend contract. Namespaces isolate repositories;
// match scores are cosine similarity, higher is better.
type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, minScore float64) ([]Match, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

type Vector struct {
	ID     string    `json:"id"`
	Values []float32 `json:"values"`
}

type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type store struct {
	log      *logger.Logger
	client   Client
	nsPrefix string
}

// NewStore wraps an index Client with namespace qualification. The prefix
// keeps multiple deployments apart on one shared index.
func NewStore(log *logger.Logger, client Client) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("vector index client required")
	}
	nsPrefix := strings.TrimSpace(os.Getenv("VECTOR_NAMESPACE_PREFIX"))
	if nsPrefix == "" {
		nsPrefix = "tv"
	}
	return &store{
		log:      log.With("service", "VectorStore"),
		client:   client,
		nsPrefix: nsPrefix,
	}, nil
}

func (s *store) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	return s.client.Upsert(ctx, s.qualify(namespace), vectors)
}

func (s *store) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, minScore float64) ([]Match, error) {
	matches, err := s.client.Query(ctx, s.qualify(namespace), q, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		if m.Score < minScore {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *store) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.Delete(ctx, s.qualify(namespace), ids, false)
}

func (s *store) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.client.Delete(ctx, s.qualify(namespace), nil, true)
}

func (s *store) qualify(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}

// RepoNamespace is the canonical namespace for one repository's node vectors.
func RepoNamespace(repoID string) string {
	return "repo:" + repoID
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	apperr "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// RegisterRepositoryInput identifies a repository to track. Provider is the
// hosting service ("github", "gitlab", plain "git").
type RegisterRepositoryInput struct {
	Provider      string `json:"provider"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	DefaultBranch string `json:"default_branch"`
}

// RegisterRepository records a repository in pending state. Registering the
// same identity twice is a conflict.
func (s *Services) RegisterRepository(ctx context.Context, in RegisterRepositoryInput) (*types.RepositorySnapshot, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.Owner = strings.TrimSpace(in.Owner)
	in.Name = strings.TrimSpace(in.Name)
	if in.Provider == "" || in.Owner == "" || in.Name == "" || strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("register repository: provider/owner/name/url required: %w", apperr.ErrInvalidArgument)
	}
	if in.DefaultBranch == "" {
		in.DefaultBranch = "main"
	}
	tenantID := ctxutil.TenantOrDefault(ctx)
	if existing, err := s.repositories.GetByIdentity(ctx, nil, tenantID, in.Provider, in.Owner, in.Name); err == nil && existing != nil {
		return nil, fmt.Errorf("repository %s/%s already registered: %w", in.Owner, in.Name, apperr.ErrConflict)
	}
	return s.repositories.Create(ctx, nil, &types.RepositorySnapshot{
		TenantID:      tenantID,
		Provider:      in.Provider,
		Owner:         in.Owner,
		Name:          in.Name,
		URL:           in.URL,
		DefaultBranch: in.DefaultBranch,
		Status:        types.RepoStatusPending,
	})
}

// IndexRepository starts a full scan: status moves to indexing and a
// fetch-files job is enqueued. Pending and indexed repositories may start;
// anything mid-flight or failed is a conflict.
func (s *Services) IndexRepository(ctx context.Context, repoID uuid.UUID) (*types.JobRun, error) {
	tenantID := ctxutil.TenantOrDefault(ctx)
	repo, err := s.repositories.GetByID(ctx, nil, tenantID, repoID)
	if err != nil {
		return nil, err
	}
	moved, err := s.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusPending, types.RepoStatusIndexing)
	if err != nil {
		return nil, err
	}
	if !moved {
		if moved, err = s.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusIndexed, types.RepoStatusIndexing); err != nil {
			return nil, err
		}
	}
	if !moved {
		return nil, fmt.Errorf("repository %s is %s: %w", repo.ID, repo.Status, apperr.ErrConflict)
	}
	return s.queue.Enqueue(ctx, types.StageFetchFiles, "repository", &repo.ID, map[string]any{
		"repoId": repo.ID.String(),
	})
}

// SyncRepository starts an incremental scan from the last indexed commit.
// A repository that was never indexed falls back to a full scan.
func (s *Services) SyncRepository(ctx context.Context, repoID uuid.UUID) (*types.JobRun, error) {
	tenantID := ctxutil.TenantOrDefault(ctx)
	repo, err := s.repositories.GetByID(ctx, nil, tenantID, repoID)
	if err != nil {
		return nil, err
	}
	moved, err := s.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusIndexed, types.RepoStatusIndexing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("repository %s is %s, not indexed: %w", repo.ID, repo.Status, apperr.ErrConflict)
	}
	payload := map[string]any{"repoId": repo.ID.String()}
	if repo.LatestSHA != "" {
		payload["oldSha"] = repo.LatestSHA
	}
	return s.queue.Enqueue(ctx, types.StageFetchFiles, "repository", &repo.ID, payload)
}

// RetryIndexing resets a failed repository to pending and re-enqueues the
// full scan. Only failed repositories may retry.
func (s *Services) RetryIndexing(ctx context.Context, repoID uuid.UUID) (*types.JobRun, error) {
	tenantID := ctxutil.TenantOrDefault(ctx)
	repo, err := s.repositories.GetByID(ctx, nil, tenantID, repoID)
	if err != nil {
		return nil, err
	}
	moved, err := s.repositories.TransitionStatus(ctx, nil, repo.ID, types.RepoStatusFailed, types.RepoStatusPending)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("repository %s is %s, not failed: %w", repo.ID, repo.Status, apperr.ErrConflict)
	}
	return s.queue.Enqueue(ctx, types.StageFetchFiles, "repository", &repo.ID, map[string]any{
		"repoId": repo.ID.String(),
	})
}

// ListRepositories returns every repository the tenant tracks.
func (s *Services) ListRepositories(ctx context.Context) ([]*types.RepositorySnapshot, error) {
	return s.repositories.ListByTenant(ctx, nil, ctxutil.TenantOrDefault(ctx))
}

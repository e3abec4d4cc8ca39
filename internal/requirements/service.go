package requirements

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	apperr "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// Service owns the requirement lifecycle: extraction from documents, review
// status transitions, and versioned text edits.
type Service struct {
	db   *gorm.DB
	log  *logger.Logger
	ai   inference.Client
	reqs repos.RequirementRepo
}

func NewService(db *gorm.DB, baseLog *logger.Logger, ai inference.Client, reqs repos.RequirementRepo) *Service {
	return &Service{
		db:   db,
		log:  baseLog.With("component", "RequirementService"),
		ai:   ai,
		reqs: reqs,
	}
}

// Extract turns a free-form document into pending requirements. Model output
// that fails every decode strategy degrades to a single wrapping requirement;
// only an empty document is an error.
func (s *Service) Extract(ctx context.Context, projectID uuid.UUID, document string) ([]*types.Requirement, error) {
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("extract: empty document: %w", apperr.ErrInvalidArgument)
	}
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("extract: missing project id: %w", apperr.ErrInvalidArgument)
	}
	ctx, span := observability.StartSpan(ctx, "requirements.extract")
	defer span.End()

	raw, err := s.ai.Chat(ctx, []inference.Message{
		{Role: "system", Content: "You extract software requirements from documents."},
		{Role: "user", Content: extractionPrompt + document},
	})
	var items []extractedItem
	if err != nil {
		s.log.Warn("Extraction chat failed, using fallback requirement", "project_id", projectID, "error", err)
	} else {
		items = recoverItems(raw)
	}
	if len(items) == 0 {
		items = []extractedItem{fallbackItem(document)}
	}

	tenantID := ctxutil.TenantOrDefault(ctx)
	rows := make([]*types.Requirement, 0, len(items))
	for _, it := range items {
		rows = append(rows, &types.Requirement{
			TenantID:  tenantID,
			ProjectID: projectID,
			Title:     it.Title,
			Text:      it.Text,
			Type:      it.Type,
			Status:    types.RequirementStatusPending,
			Version:   1,
			Source:    "document",
		})
	}
	return s.reqs.CreateBatch(ctx, nil, rows)
}

// Get loads one requirement scoped to the caller's tenant.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*types.Requirement, error) {
	return s.reqs.GetByID(ctx, nil, ctxutil.TenantOrDefault(ctx), id)
}

// SetStatus applies a review decision. Only pending requirements move;
// anything else is a conflict.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*types.Requirement, error) {
	if status != types.RequirementStatusAccepted && status != types.RequirementStatusRejected {
		return nil, fmt.Errorf("set status %q: %w", status, apperr.ErrInvalidArgument)
	}
	tenantID := ctxutil.TenantOrDefault(ctx)
	req, err := s.reqs.GetByID(ctx, nil, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Status != types.RequirementStatusPending {
		return nil, fmt.Errorf("requirement %s is %s: %w", id, req.Status, apperr.ErrConflict)
	}
	if err := s.reqs.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, err
	}
	req.Status = status
	return req, nil
}

// UpdateText bumps the version, archives the prior text, and invalidates the
// query vector so the next match regenerates it.
func (s *Service) UpdateText(ctx context.Context, id uuid.UUID, title, text string) (*types.Requirement, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("update text: empty text: %w", apperr.ErrInvalidArgument)
	}
	return s.reqs.ReviseText(ctx, nil, id, title, text)
}

// History returns the append-only revision trail, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*types.RequirementRevision, error) {
	return s.reqs.ListRevisions(ctx, nil, id)
}

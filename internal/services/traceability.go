package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tracevine/tracevine-backend/internal/drift"
	"github.com/tracevine/tracevine-backend/internal/match"
	"github.com/tracevine/tracevine-backend/internal/pkg/ctxutil"
	apperr "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/report"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// ExtractRequirements turns a document into pending requirements for review.
func (s *Services) ExtractRequirements(ctx context.Context, projectID uuid.UUID, document string) ([]*types.Requirement, error) {
	return s.requirements.Extract(ctx, projectID, document)
}

// ReviewRequirement applies an accept/reject decision.
func (s *Services) ReviewRequirement(ctx context.Context, requirementID uuid.UUID, status string) (*types.Requirement, error) {
	return s.requirements.SetStatus(ctx, requirementID, status)
}

// UpdateRequirementText edits a requirement's text, versioning the old one.
func (s *Services) UpdateRequirementText(ctx context.Context, requirementID uuid.UUID, title, text string) (*types.Requirement, error) {
	return s.requirements.UpdateText(ctx, requirementID, title, text)
}

// RequirementHistory returns the revision trail.
func (s *Services) RequirementHistory(ctx context.Context, requirementID uuid.UUID) ([]*types.RequirementRevision, error) {
	return s.requirements.History(ctx, requirementID)
}

// MatchRequirements scores one requirement against the given repositories,
// or against every indexed repository of the tenant when none are named.
func (s *Services) MatchRequirements(ctx context.Context, requirementID uuid.UUID, repoIDs []uuid.UUID) (*match.Result, error) {
	if len(repoIDs) == 0 {
		all, err := s.repositories.ListByTenant(ctx, nil, ctxutil.TenantOrDefault(ctx))
		if err != nil {
			return nil, err
		}
		for _, r := range all {
			if r.Status == types.RepoStatusIndexed {
				repoIDs = append(repoIDs, r.ID)
			}
		}
	}
	return s.engine.Match(ctx, requirementID, repoIDs)
}

// VerifyMatch applies a reviewer verdict ("verified" or "rejected") to one
// match edge.
func (s *Services) VerifyMatch(ctx context.Context, matchID uuid.UUID, verdict string) (*types.RequirementMatch, error) {
	return s.engine.Verify(ctx, matchID, verdict)
}

// DetectDrift assesses every accepted requirement in a project.
func (s *Services) DetectDrift(ctx context.Context, projectID uuid.UUID) ([]*drift.Assessment, error) {
	return s.drift.DetectProject(ctx, projectID)
}

// DetectRequirementDrift assesses one requirement.
func (s *Services) DetectRequirementDrift(ctx context.Context, requirementID uuid.UUID) (*drift.Assessment, error) {
	req, err := s.requirements.Get(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	return s.drift.DetectRequirement(ctx, req)
}

// AnalyzeGaps refreshes and returns the project's gap records.
func (s *Services) AnalyzeGaps(ctx context.Context, projectID uuid.UUID, priorityOnly bool) ([]*types.GapRecord, error) {
	return s.gaps.Analyze(ctx, projectID, priorityOnly)
}

// ExportTraceability renders the project matrix as json, csv or markdown.
func (s *Services) ExportTraceability(ctx context.Context, projectID uuid.UUID, format string) ([]byte, error) {
	m, err := s.reporter.BuildMatrix(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return report.Export(m, format)
}

// GenerateComplianceReport builds the matrix, judges it, and renders the
// verdict. Supported formats: json, markdown.
func (s *Services) GenerateComplianceReport(ctx context.Context, projectID uuid.UUID, format string, includeDetails bool) (*report.ComplianceReport, []byte, error) {
	m, err := s.reporter.BuildMatrix(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	cfg := s.cfg.Current().Report
	rep := report.Compliance(m, &cfg, includeDetails)

	switch format {
	case report.FormatJSON, "":
		raw, mErr := json.MarshalIndent(rep, "", "  ")
		return rep, raw, mErr
	case report.FormatMarkdown:
		return rep, complianceMarkdown(rep), nil
	default:
		return nil, nil, fmt.Errorf("compliance report: unknown format %q: %w", format, apperr.ErrInvalidArgument)
	}
}

func complianceMarkdown(rep *report.ComplianceReport) []byte {
	out := fmt.Sprintf("# Compliance Report\n\nProject: %s\nCompliant: %t\nOverall completion: %d%%\nCoverage: %.0f%%\n",
		rep.ProjectID, rep.IsCompliant, rep.OverallCompletion, rep.Coverage*100)
	for _, f := range rep.Failures {
		out += fmt.Sprintf("\n- FAIL: %s", f)
	}
	out += "\n"
	return []byte(out)
}

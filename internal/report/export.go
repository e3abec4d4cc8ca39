package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperr "github.com/tracevine/tracevine-backend/internal/pkg/errors"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Export renders the matrix in the requested format. All formats are pure
// projections; none re-reads the database.
func Export(m *Matrix, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(m)
	case FormatCSV:
		return exportCSV(m)
	case FormatMarkdown:
		return exportMarkdown(m), nil
	default:
		return nil, fmt.Errorf("export: unknown format %q: %w", format, apperr.ErrInvalidArgument)
	}
}

func exportJSON(m *Matrix) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// exportCSV flattens to one line per requirement/match pair; unmatched
// requirements still get a line with empty match columns.
func exportCSV(m *Matrix) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"requirement_id", "title", "type", "completion", "band", "file_path", "node_path", "score", "match_types", "confidence"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range m.Rows {
		base := []string{
			row.RequirementID.String(),
			row.Title,
			row.Type,
			strconv.Itoa(row.Completion),
			row.Band,
		}
		if len(row.Matches) == 0 {
			if err := w.Write(append(base, "", "", "", "", "")); err != nil {
				return nil, err
			}
			continue
		}
		for _, cell := range row.Matches {
			rec := append(append([]string{}, base...),
				cell.FilePath,
				cell.NodePath,
				strconv.FormatFloat(cell.Score, 'f', 3, 64),
				strings.Join(cell.MatchTypes, "|"),
				cell.Confidence,
			)
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportMarkdown(m *Matrix) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Traceability Matrix\n\n")
	fmt.Fprintf(&b, "Project: %s  \nGenerated: %s  \nOverall completion: %d%%\n\n", m.ProjectID, m.GeneratedAt, m.OverallCompletion)
	fmt.Fprintf(&b, "| Requirement | Type | Completion | Band | Matched Code |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, row := range m.Rows {
		var cells []string
		for _, cell := range row.Matches {
			cells = append(cells, fmt.Sprintf("`%s` (%.2f, %s)", cell.FilePath, cell.Score, cell.Confidence))
		}
		matched := strings.Join(cells, "<br>")
		if matched == "" {
			matched = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %d%% | %s | %s |\n", escapePipes(row.Title), row.Type, row.Completion, row.Band, matched)
	}
	return []byte(b.String())
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

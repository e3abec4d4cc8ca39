package requirements

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tracevine/tracevine-backend/internal/types"
)

// extractedItem is one requirement as the model returns it.
type extractedItem struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Type  string `json:"type"`
}

const extractionPrompt = `Extract every distinct software requirement from the document below.
Respond with a JSON array only, no prose. Each element:
{"title": "<short name>", "text": "<full requirement text>", "type": "feature" | "suggestion"}

Document:
`

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// recoverItems parses model output that is supposed to be a JSON array but
// often is not. Strategies in order: direct unmarshal, fenced code block,
// first-[ to last-] slice. Returns nil when nothing decodes.
func recoverItems(raw string) []extractedItem {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if items := tryUnmarshal(raw); items != nil {
		return items
	}
	if m := fencedJSONRe.FindStringSubmatch(raw); len(m) == 2 {
		if items := tryUnmarshal(strings.TrimSpace(m[1])); items != nil {
			return items
		}
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		if items := tryUnmarshal(raw[start : end+1]); items != nil {
			return items
		}
	}
	return nil
}

func tryUnmarshal(s string) []extractedItem {
	var items []extractedItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	out := items[:0]
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.Text = strings.TrimSpace(it.Text)
		if it.Title == "" && it.Text == "" {
			continue
		}
		if it.Title == "" {
			it.Title = firstLine(it.Text)
		}
		if it.Text == "" {
			it.Text = it.Title
		}
		it.Type = normalizeType(it.Type)
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case types.RequirementTypeSuggestion:
		return types.RequirementTypeSuggestion
	default:
		return types.RequirementTypeFeature
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return strings.TrimSpace(s)
}

// fallbackItem wraps the raw document in a single pending requirement so
// extraction never fails outright on non-empty input.
func fallbackItem(document string) extractedItem {
	excerpt := strings.TrimSpace(document)
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	return extractedItem{
		Title: "Unstructured requirements document",
		Text:  excerpt,
		Type:  types.RequirementTypeFeature,
	}
}

package match

import (
	"strings"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// DeriveTypes tags one scored candidate. symbol: a requirement token longer
// than three characters appears verbatim in the node's summary or snippet;
// semantic: the score clears the semantic cutoff. structural is reserved and
// never emitted here.
func DeriveTypes(requirementText, nodeSummary, nodeText string, score float64, cfg *config.MatchConfig) []string {
	var tags []string
	haystack := strings.ToLower(nodeSummary + "\n" + nodeText)
	for _, tok := range Tokenize(requirementText) {
		if len(tok) > 3 && strings.Contains(haystack, tok) {
			tags = append(tags, types.MatchTypeSymbol)
			break
		}
	}
	if score > cfg.SemanticCutoff {
		tags = append(tags, types.MatchTypeSemantic)
	}
	return tags
}

// DeriveConfidence maps a score onto the three-tier confidence scale.
func DeriveConfidence(score float64, cfg *config.MatchConfig) string {
	switch {
	case score > cfg.HighConfidence:
		return types.ConfidenceHigh
	case score > cfg.MediumConfidence:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
)

// Snapshot is the full configuration at one point in time. Snapshots are
// immutable: a reload parses a fresh one and swaps the pointer, consumers
// hold whatever snapshot they read and never see partial updates.
type Snapshot struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Match    MatchConfig    `yaml:"match"`
	Drift    DriftConfig    `yaml:"drift"`
	Gap      GapConfig      `yaml:"gap"`
	Report   ReportConfig   `yaml:"report"`
}

type PipelineConfig struct {
	// StageConcurrency bounds each stage's worker pool.
	StageConcurrency int           `yaml:"stage_concurrency"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	MaxFileSizeBytes int64         `yaml:"max_file_size_bytes"`
	MaxNodeBytes     int           `yaml:"max_node_bytes"`
	MaxRegexNodes    int           `yaml:"max_regex_nodes"`
	WholeFileCap     int           `yaml:"whole_file_cap"`
}

type MatchConfig struct {
	TopK             int     `yaml:"top_k"`
	MinVectorScore   float64 `yaml:"min_vector_score"`
	MinLexicalScore  float64 `yaml:"min_lexical_score"`
	SemanticCutoff   float64 `yaml:"semantic_cutoff"`
	HighConfidence   float64 `yaml:"high_confidence"`
	MediumConfidence float64 `yaml:"medium_confidence"`
}

type DriftConfig struct {
	MinValidScore float64 `yaml:"min_valid_score"`
	MaxScoreDrop  float64 `yaml:"max_score_drop"`
}

type GapConfig struct {
	GapThreshold  int `yaml:"gap_threshold"`
	HighThreshold int `yaml:"high_threshold"`
}

type ReportConfig struct {
	FullBand          int     `yaml:"full_band"`
	MinOverall        int     `yaml:"min_overall"`
	MinCoverage       float64 `yaml:"min_coverage"`
	RequireVerified   bool    `yaml:"require_verified"`
	IncludeSuggestion bool    `yaml:"include_suggestion"`
}

// Defaults returns the built-in configuration. Values mirror the documented
// engine thresholds; the YAML file only needs to override what differs.
func Defaults() Snapshot {
	return Snapshot{
		Pipeline: PipelineConfig{
			StageConcurrency: 5,
			MaxAttempts:      3,
			BackoffBase:      2 * time.Second,
			MaxFileSizeBytes: 5 * 1024 * 1024,
			MaxNodeBytes:     10_000,
			MaxRegexNodes:    20,
			WholeFileCap:     5_000,
		},
		Match: MatchConfig{
			TopK:             20,
			MinVectorScore:   0.5,
			MinLexicalScore:  0.3,
			SemanticCutoff:   0.7,
			HighConfidence:   0.8,
			MediumConfidence: 0.6,
		},
		Drift: DriftConfig{
			MinValidScore: 0.3,
			MaxScoreDrop:  0.2,
		},
		Gap: GapConfig{
			GapThreshold:  50,
			HighThreshold: 20,
		},
		Report: ReportConfig{
			FullBand:        80,
			MinOverall:      80,
			MinCoverage:     0.9,
			RequireVerified: true,
		},
	}
}

// Store holds the current snapshot behind an atomic pointer.
type Store struct {
	ptr  atomic.Pointer[Snapshot]
	path string
	log  *logger.Logger
}

// Load reads the YAML file at path (optional; empty path means defaults only)
// and returns a Store primed with the resulting snapshot.
func Load(path string, log *logger.Logger) (*Store, error) {
	s := &Store{path: path, log: log.With("component", "ConfigStore")}
	snap, err := parse(path)
	if err != nil {
		return nil, err
	}
	s.ptr.Store(&snap)
	return s, nil
}

// Current returns the active snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	return s.ptr.Load()
}

func parse(path string) (Snapshot, error) {
	snap := Defaults()
	if path == "" {
		return snap, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("parse config: %w", err)
	}
	return snap, nil
}

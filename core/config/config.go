// Package config loads the engine configuration from YAML. Every tunable
// the analyses depend on lives here so that the decay constants and bounds
// are deployment decisions, not compiled-in truths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the traceability engine.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Impact  ImpactConfig  `yaml:"impact"`
	Scoring ScoringConfig `yaml:"scoring"`
	Gaps    GapsConfig    `yaml:"gaps"`
	Search  SearchConfig  `yaml:"search"`
}

// StoreConfig configures the sqlite link store.
type StoreConfig struct {
	Path            string        `yaml:"path"`
	LockDir         string        `yaml:"lock_dir"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}

// EngineConfig bounds traversal depth, fan-out, and wall-clock budgets.
type EngineConfig struct {
	CycleMaxDepth     int           `yaml:"cycle_max_depth"`
	HierarchyMaxDepth int           `yaml:"hierarchy_max_depth"`
	Workers           int           `yaml:"workers"`
	QueryTimeout      time.Duration `yaml:"query_timeout"`
}

// ImpactConfig carries the propagation and aggregation constants. The
// defaults mirror long-standing planning heuristics; treat them as tunable.
type ImpactConfig struct {
	MaxPropagationDepth int     `yaml:"max_propagation_depth"`
	HopDecay            float64 `yaml:"hop_decay"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	EffortDamping       float64 `yaml:"effort_damping"`
	DirectConfidence    float64 `yaml:"direct_confidence"`
	HourlyRate          float64 `yaml:"hourly_rate"`
	OptimisticFactor    float64 `yaml:"optimistic_factor"`
	PessimisticFactor   float64 `yaml:"pessimistic_factor"`
	BaseSuccessRate     float64 `yaml:"base_success_rate"`
	MaxRiskPenalty      float64 `yaml:"max_risk_penalty"`
	Scorer              string  `yaml:"scorer"` // "rules" or "statistical"

	Overheads OverheadConfig `yaml:"overheads"`
}

// OverheadConfig is the per-concern overhead applied on top of summed
// direct and propagated effort.
type OverheadConfig struct {
	Management    float64 `yaml:"management"`
	Testing       float64 `yaml:"testing"`
	Documentation float64 `yaml:"documentation"`
	Deployment    float64 `yaml:"deployment"`
}

// Total returns the combined overhead fraction.
func (o OverheadConfig) Total() float64 {
	return o.Management + o.Testing + o.Documentation + o.Deployment
}

// ScoringConfig selects the similarity scorer used for link suggestions.
type ScoringConfig struct {
	Kind                string  `yaml:"kind"` // "lexical" or "embedding"
	SuggestionThreshold float64 `yaml:"suggestion_threshold"`
}

// GapsConfig configures gap analysis and its suggestion cache.
type GapsConfig struct {
	MaxSuggestionsPerGap int           `yaml:"max_suggestions_per_gap"`
	CacheMaxCost         int64         `yaml:"cache_max_cost"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
}

// SearchConfig configures the linking-search index.
type SearchConfig struct {
	IndexPath  string `yaml:"index_path"`
	MaxResults int    `yaml:"max_results"`
}

// Default returns the configuration the engine runs with when no file is
// provided.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:            "tracegraph.db",
			LockDir:         ".tracegraph/locks",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			LockTimeout:     10 * time.Second,
		},
		Engine: EngineConfig{
			CycleMaxDepth:     100,
			HierarchyMaxDepth: 10,
			Workers:           4,
			QueryTimeout:      30 * time.Second,
		},
		Impact: ImpactConfig{
			MaxPropagationDepth: 3,
			HopDecay:            0.8,
			ConfidenceFloor:     0.3,
			EffortDamping:       0.5,
			DirectConfidence:    0.85,
			HourlyRate:          75.0,
			OptimisticFactor:    0.8,
			PessimisticFactor:   1.3,
			BaseSuccessRate:     0.9,
			MaxRiskPenalty:      0.4,
			Scorer:              "rules",
			Overheads: OverheadConfig{
				Management:    0.15,
				Testing:       0.10,
				Documentation: 0.08,
				Deployment:    0.12,
			},
		},
		Scoring: ScoringConfig{
			Kind:                "lexical",
			SuggestionThreshold: 0.4,
		},
		Gaps: GapsConfig{
			MaxSuggestionsPerGap: 10,
			CacheMaxCost:         1 << 26, // 64MB
			CacheTTL:             5 * time.Minute,
		},
		Search: SearchConfig{
			IndexPath:  ".tracegraph/index",
			MaxResults: 100,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the analyses meaningless
// or non-terminating.
func (c *Config) Validate() error {
	if c.Engine.CycleMaxDepth < 1 {
		return fmt.Errorf("config: cycle_max_depth must be at least 1, got %d", c.Engine.CycleMaxDepth)
	}
	if c.Engine.HierarchyMaxDepth < 1 {
		return fmt.Errorf("config: hierarchy_max_depth must be at least 1, got %d", c.Engine.HierarchyMaxDepth)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Engine.Workers)
	}
	if c.Impact.HopDecay <= 0 || c.Impact.HopDecay >= 1 {
		return fmt.Errorf("config: hop_decay must be in (0,1), got %g", c.Impact.HopDecay)
	}
	if c.Impact.ConfidenceFloor < 0 || c.Impact.ConfidenceFloor > 1 {
		return fmt.Errorf("config: confidence_floor must be in [0,1], got %g", c.Impact.ConfidenceFloor)
	}
	if c.Impact.MaxPropagationDepth < 1 {
		return fmt.Errorf("config: max_propagation_depth must be at least 1, got %d", c.Impact.MaxPropagationDepth)
	}
	switch c.Impact.Scorer {
	case "rules", "statistical":
	default:
		return fmt.Errorf("config: impact scorer must be \"rules\" or \"statistical\", got %q", c.Impact.Scorer)
	}
	switch c.Scoring.Kind {
	case "lexical", "embedding":
	default:
		return fmt.Errorf("config: scoring kind must be \"lexical\" or \"embedding\", got %q", c.Scoring.Kind)
	}
	if c.Gaps.MaxSuggestionsPerGap < 1 {
		return fmt.Errorf("config: max_suggestions_per_gap must be at least 1, got %d", c.Gaps.MaxSuggestionsPerGap)
	}
	return nil
}

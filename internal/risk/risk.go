// Package risk assigns a numeric risk weight to each finding and rolls the
// weights up into a run-level score.
package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

// DefaultWeights are the base weights per severity
var DefaultWeights = map[findings.Severity]float64{
	findings.SeverityCritical: 40,
	findings.SeverityHigh:     20,
	findings.SeverityMedium:   5,
	findings.SeverityLow:      1,
	findings.SeverityInfo:     0,
}

// Scorer computes risk weights from severity and tags
type Scorer struct {
	weights     map[findings.Severity]float64
	multipliers map[string]float64
	logger      zerolog.Logger
}

// Default returns a scorer with the default weights and no multipliers
func Default() *Scorer {
	s, _ := New(config.ScoringConfig{}, zerolog.Nop())
	return s
}

// New builds a scorer from config overrides. Weights must stay monotonic in
// severity order; multipliers below 1 are clamped to 1.
func New(cfg config.ScoringConfig, logger zerolog.Logger) (*Scorer, error) {
	logger = logger.With().Str("component", "risk").Logger()

	weights := make(map[findings.Severity]float64, len(DefaultWeights))
	for sev, w := range DefaultWeights {
		weights[sev] = w
	}
	for name, w := range cfg.Weights {
		sev, err := findings.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("scoring.weights: %w", err)
		}
		if w < 0 {
			return nil, fmt.Errorf("scoring.weights.%s must not be negative", name)
		}
		weights[sev] = w
	}
	if err := checkMonotonic(weights); err != nil {
		return nil, err
	}

	multipliers := make(map[string]float64, len(cfg.Multipliers))
	for tag, m := range cfg.Multipliers {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if m < 1 {
			logger.Warn().Str("tag", tag).Float64("multiplier", m).Msg("multiplier below 1 clamped to 1")
			m = 1
		}
		multipliers[tag] = m
	}

	return &Scorer{weights: weights, multipliers: multipliers, logger: logger}, nil
}

// checkMonotonic requires critical >= high >= medium >= low >= info
func checkMonotonic(weights map[findings.Severity]float64) error {
	for i := 1; i < len(findings.Severities); i++ {
		higher, lower := findings.Severities[i-1], findings.Severities[i]
		if weights[higher] < weights[lower] {
			return fmt.Errorf("scoring weight for %s (%g) is below %s (%g)",
				higher, weights[higher], lower, weights[lower])
		}
	}
	return nil
}

// Weight returns the base weight for a severity
func (s *Scorer) Weight(sev findings.Severity) float64 {
	return s.weights[sev]
}

// Score returns the finding's base weight times the largest multiplier among
// its tags. A multiplier keyed "taxonomy:*" matches every tag of that taxonomy.
func (s *Scorer) Score(f findings.Finding) float64 {
	return s.weights[f.Severity] * s.multiplier(f.Tags)
}

func (s *Scorer) multiplier(tags []string) float64 {
	best := 1.0
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if m, ok := s.multipliers[tag]; ok && m > best {
			best = m
		}
		if taxonomy, _, ok := strings.Cut(tag, ":"); ok {
			if m, ok := s.multipliers[taxonomy+":*"]; ok && m > best {
				best = m
			}
		}
	}
	return best
}

// Apply returns copies of the findings with RiskWeight set
func (s *Scorer) Apply(in []findings.Finding) []findings.Finding {
	out := make([]findings.Finding, len(in))
	for i, f := range in {
		f.RiskWeight = s.Score(f)
		out[i] = f
	}
	return out
}

// Aggregate recomputes the run's score from severities and tags, ignoring any
// stored per-finding weights
func (s *Scorer) Aggregate(run *findings.Run) float64 {
	if run == nil {
		return 0
	}
	var total float64
	for _, f := range run.Findings {
		total += s.Score(f)
	}
	return total
}

// Multipliers lists the configured tag multipliers in tag order
func (s *Scorer) Multipliers() []string {
	out := make([]string, 0, len(s.multipliers))
	for tag, m := range s.multipliers {
		out = append(out, fmt.Sprintf("%s=%g", tag, m))
	}
	sort.Strings(out)
	return out
}

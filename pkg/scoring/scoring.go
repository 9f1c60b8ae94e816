// Package scoring holds the heuristics that turn repository metadata into
// contribution, originality and trust scores, and candidate-level aggregates.
//
// The formulas are placeholders. Every one of them is a plain function on
// Scorer so callers can swap any of them out.
package scoring

import (
	"math"
	"math/rand/v2"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
)

// Config holds the tunable constants of the default formulas.
type Config struct {
	StarsPerPoint      float64 `mapstructure:"stars-per-point"`
	MaxScore           float64 `mapstructure:"max-score"`
	ForkOriginalityMin int     `mapstructure:"fork-originality-min"`
	ForkOriginalityMax int     `mapstructure:"fork-originality-max"`
	DocumentationBonus float64 `mapstructure:"documentation-bonus"`
	ContributionWeight float64 `mapstructure:"contribution-weight"`
	OriginalityWeight  float64 `mapstructure:"originality-weight"`
	EloMin             float64 `mapstructure:"elo-min"`
	EloMax             float64 `mapstructure:"elo-max"`
	RolePool           string  `mapstructure:"role-pool"`
	// Seed fixes the fork originality draws. Zero means unseeded.
	Seed uint64 `mapstructure:"seed"`
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		StarsPerPoint:      100,
		MaxScore:           100,
		ForkOriginalityMin: 30,
		ForkOriginalityMax: 70,
		DocumentationBonus: 30,
		ContributionWeight: 0.3,
		OriginalityWeight:  0.7,
		EloMin:             800,
		EloMax:             2000,
		RolePool:           "General",
	}
}

// IntSource draws integers in [0, n).
type IntSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

type (
	// ContributionFunc scores how much attention a repository has earned.
	ContributionFunc func(candidate.Metadata) float64
	// OriginalityFunc scores whether a repository is the candidate's own work.
	OriginalityFunc func(candidate.Metadata) float64
	// TrustFunc combines the other scores of a fetched project.
	TrustFunc func(*candidate.Success) float64
	// EloFunc maps an overall score to a rating.
	EloFunc func(overall float64) float64
)

// Scorer bundles the scoring functions used by a run.
type Scorer struct {
	Contribution ContributionFunc
	Originality  OriginalityFunc
	Trust        TrustFunc
	Elo          EloFunc
	RolePool     string
}

// New builds the default Scorer from cfg. src may be nil, in which case
// Config.Seed decides between a seeded and the global random source.
func New(cfg Config, src IntSource) Scorer {
	if src == nil {
		if cfg.Seed != 0 {
			src = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
		} else {
			src = globalSource{}
		}
	}
	return Scorer{
		Contribution: StarContribution(cfg.StarsPerPoint, cfg.MaxScore),
		Originality:  ForkOriginality(cfg.MaxScore, cfg.ForkOriginalityMin, cfg.ForkOriginalityMax, src),
		Trust:        WeightedTrust(cfg.DocumentationBonus, cfg.ContributionWeight, cfg.OriginalityWeight, cfg.MaxScore),
		Elo:          LinearElo(cfg.EloMin, cfg.EloMax, cfg.MaxScore),
		RolePool:     cfg.RolePool,
	}
}

// StarContribution gives one point per perPoint stars, capped at maxScore.
func StarContribution(perPoint, maxScore float64) ContributionFunc {
	return func(md candidate.Metadata) float64 {
		if perPoint <= 0 {
			return 0
		}
		return math.Min(maxScore, Round2(float64(md.Stars)/perPoint))
	}
}

// ForkOriginality gives maxScore to original repositories and a random value
// in [lo, hi] to forks.
func ForkOriginality(maxScore float64, lo, hi int, src IntSource) OriginalityFunc {
	if hi < lo {
		lo, hi = hi, lo
	}
	return func(md candidate.Metadata) float64 {
		if !md.Fork {
			return maxScore
		}
		return float64(lo + src.IntN(hi-lo+1))
	}
}

// WeightedTrust adds bonus for a README with a usable summary to the weighted
// contribution and originality scores, capped at maxScore. Missing scores
// count as zero.
func WeightedTrust(bonus, contributionWeight, originalityWeight, maxScore float64) TrustFunc {
	return func(s *candidate.Success) float64 {
		score := 0.0
		if s.Readme != "" && s.SummaryState == candidate.SummaryOK {
			score += bonus
		}
		contribution, _ := s.Scores.Get(candidate.ScoreContribution)
		originality, _ := s.Scores.Get(candidate.ScoreOriginality)
		score += contribution*contributionWeight + originality*originalityWeight
		return Round2(math.Min(maxScore, score))
	}
}

// LinearElo maps [0, maxScore] linearly onto [lo, hi].
func LinearElo(lo, hi, maxScore float64) EloFunc {
	return func(overall float64) float64 {
		if maxScore <= 0 {
			return lo
		}
		return Round2(lo + overall/maxScore*(hi-lo))
	}
}

// Aggregate averages the trust score of successful projects that have one.
// With none the overall score is 0.
func Aggregate(projects []candidate.Project) candidate.Metrics {
	var (
		sum float64
		n   int
	)
	for _, p := range projects {
		s, ok := p.Succeeded()
		if !ok {
			continue
		}
		trust, ok := s.Scores.Get(candidate.ScoreTrust)
		if !ok {
			continue
		}
		sum += trust
		n++
	}
	if n == 0 {
		return candidate.Metrics{}
	}
	return candidate.Metrics{
		OverallScore:          Round2(sum / float64(n)),
		NumSuccessfulProjects: n,
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

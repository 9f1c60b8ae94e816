package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
	"github.com/ravi-parthasarathy/codecredx/pkg/scoring"
)

// ScoreStage assigns one heuristic score to every fetched project. Failed
// projects get no score.
type ScoreStage struct {
	name   string
	score  candidate.ScoreName
	fn     func(*candidate.Success) float64
	logger *zap.Logger
}

// NewContribution scores projects with sc.Contribution.
func NewContribution(sc scoring.Scorer, logger *zap.Logger) *ScoreStage {
	return &ScoreStage{
		name:   NameContribution,
		score:  candidate.ScoreContribution,
		fn:     func(s *candidate.Success) float64 { return sc.Contribution(s.Metadata) },
		logger: orNop(logger),
	}
}

// NewOriginality scores projects with sc.Originality.
func NewOriginality(sc scoring.Scorer, logger *zap.Logger) *ScoreStage {
	return &ScoreStage{
		name:   NameOriginality,
		score:  candidate.ScoreOriginality,
		fn:     func(s *candidate.Success) float64 { return sc.Originality(s.Metadata) },
		logger: orNop(logger),
	}
}

// NewTrust scores projects with sc.Trust. It expects the contribution and
// originality scores to be in place already.
func NewTrust(sc scoring.Scorer, logger *zap.Logger) *ScoreStage {
	return &ScoreStage{
		name:   NameTrust,
		score:  candidate.ScoreTrust,
		fn:     sc.Trust,
		logger: orNop(logger),
	}
}

func (s *ScoreStage) Node() *pipeline.Node { return pipeline.NewNode(s.name, s) }

func (s *ScoreStage) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(AnalyzedProjects), pipeline.Writes(AnalyzedProjects)...)
}

func (s *ScoreStage) Prepare(c *pipeline.Context) ([]candidate.Project, error) {
	return AnalyzedProjects.Get(c, nil)
}

func (s *ScoreStage) Execute(_ context.Context, in []candidate.Project) ([]candidate.Project, error) {
	out := candidate.CloneAll(in)
	for _, p := range out {
		success, ok := p.Succeeded()
		if !ok {
			continue
		}
		if success.Scores == nil {
			success.Scores = candidate.Scores{}
		}
		success.Scores[s.score] = s.fn(success)
	}
	return out, nil
}

func (s *ScoreStage) Finalize(c *pipeline.Context, _ []candidate.Project, out []candidate.Project) string {
	AnalyzedProjects.Set(c, out)
	for _, p := range out {
		if success, ok := p.Succeeded(); ok {
			s.logger.Debug("scored project",
				zap.String("url", p.URL),
				zap.String("score", string(s.score)),
				zap.Float64("value", success.Scores[s.score]),
			)
		}
	}
	s.logger.Info("assigned scores", zap.String("score", string(s.score)), zap.Int("projects", len(out)))
	return pipeline.DefaultLabel
}

// ─── aggregation ──────────────────────────────────────────────────────────────

// Aggregation turns per-project trust scores into candidate metrics.
type Aggregation struct {
	logger *zap.Logger
}

func NewAggregation(logger *zap.Logger) *Aggregation {
	return &Aggregation{logger: orNop(logger)}
}

func (s *Aggregation) Node() *pipeline.Node { return pipeline.NewNode(NameAggregation, s) }

func (s *Aggregation) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(AnalyzedProjects), pipeline.Writes(CandidateMetrics)...)
}

func (s *Aggregation) Prepare(c *pipeline.Context) ([]candidate.Project, error) {
	return AnalyzedProjects.Get(c, nil)
}

func (s *Aggregation) Execute(_ context.Context, in []candidate.Project) (candidate.Metrics, error) {
	return scoring.Aggregate(in), nil
}

func (s *Aggregation) Finalize(c *pipeline.Context, _ []candidate.Project, out candidate.Metrics) string {
	CandidateMetrics.Set(c, out)
	if out.NumSuccessfulProjects == 0 {
		s.logger.Warn("no successful projects to aggregate")
	}
	s.logger.Info("aggregated candidate score",
		zap.Float64("overall_score", out.OverallScore),
		zap.Int("successful_projects", out.NumSuccessfulProjects),
	)
	return pipeline.DefaultLabel
}

// ─── elo_ranking ──────────────────────────────────────────────────────────────

// EloRanking maps the overall score onto a rating.
type EloRanking struct {
	elo      scoring.EloFunc
	rolePool string
	logger   *zap.Logger
}

func NewEloRanking(sc scoring.Scorer, logger *zap.Logger) *EloRanking {
	return &EloRanking{elo: sc.Elo, rolePool: sc.RolePool, logger: orNop(logger)}
}

func (s *EloRanking) Node() *pipeline.Node { return pipeline.NewNode(NameEloRanking, s) }

func (s *EloRanking) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(CandidateMetrics), pipeline.Writes(CandidateMetrics, EloAssigned)...)
}

func (s *EloRanking) Prepare(c *pipeline.Context) (candidate.Metrics, error) {
	return CandidateMetrics.Get(c, candidate.Metrics{})
}

func (s *EloRanking) Execute(_ context.Context, in candidate.Metrics) (candidate.Metrics, error) {
	in.EloScore = s.elo(in.OverallScore)
	in.RolePool = s.rolePool
	return in, nil
}

func (s *EloRanking) Finalize(c *pipeline.Context, _ candidate.Metrics, out candidate.Metrics) string {
	CandidateMetrics.Set(c, out)
	EloAssigned.Set(c, true)
	s.logger.Info("assigned rating", zap.Float64("elo_score", out.EloScore), zap.String("role_pool", out.RolePool))
	return pipeline.DefaultLabel
}

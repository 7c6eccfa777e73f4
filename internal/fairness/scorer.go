package fairness

import (
	"math"

	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

const (
	noSoftBaseline  = 0.5
	softFactor      = 0.9
	bonusPerMatch   = 0.1
	hardClearReward = 0.1
)

// Breakdown records how a satisfaction score was reached.
type Breakdown struct {
	HardConstraintsMet bool                        `json:"hard_constraints_met"`
	HardFailure        *constraints.HardConstraint `json:"hard_failure,omitempty"`
	SoftScores         map[string]float64          `json:"soft_scores"`
	BonusScore         float64                     `json:"bonus_score"`
}

// UserSatisfaction is one user's verdict on one restaurant.
type UserSatisfaction struct {
	UserID    string    `json:"user_id"`
	Score     float64   `json:"score"`
	Satisfied bool      `json:"satisfied"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer turns constraint matches into per-user satisfaction.
type Scorer struct {
	matcher *constraints.Matcher
}

func NewScorer(m *constraints.Matcher) *Scorer {
	return &Scorer{matcher: m}
}

// UserSatisfaction scores r for the owner of p. The first failing hard
// constraint short-circuits to a zero score.
func (s *Scorer) UserSatisfaction(r constraints.Restaurant, p *profile.Profile) UserSatisfaction {
	uc := constraints.Extract(p)
	result := UserSatisfaction{
		UserID: p.UserID,
		Breakdown: Breakdown{
			SoftScores: make(map[string]float64, len(uc.Soft)),
		},
	}

	for _, hc := range uc.Hard {
		if !s.matcher.CheckHard(r, hc) {
			failed := hc
			result.Breakdown.HardFailure = &failed
			return result
		}
	}
	result.Breakdown.HardConstraintsMet = true

	base := noSoftBaseline
	if len(uc.Soft) > 0 {
		var weighted, total float64
		for _, sc := range uc.Soft {
			match := s.matcher.MatchSoft(r, sc)
			result.Breakdown.SoftScores[sc.Key()] = match
			weighted += match * float64(sc.Weight)
			total += float64(sc.Weight)
		}
		if total > 0 {
			base = weighted / total
		}
	}

	var bonus float64
	for _, bc := range uc.Bonus {
		if s.matcher.CheckBonus(r, bc) {
			bonus += bonusPerMatch
		}
	}
	result.Breakdown.BonusScore = bonus

	result.Score = math.Min(1, base*softFactor+bonus+hardClearReward)
	result.Satisfied = true
	return result
}

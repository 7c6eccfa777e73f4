package fairness

import (
	"math"

	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

// Metrics are the group-level welfare measures for one restaurant.
type Metrics struct {
	Utilitarian float64 `json:"utilitarian"`
	Egalitarian float64 `json:"egalitarian"`
	Nash        float64 `json:"nash"`
	Gini        float64 `json:"gini"`
}

// Evaluation is a restaurant scored for the whole group. UserSatisfaction
// follows the order of the profiles it was computed from.
type Evaluation struct {
	Restaurant       constraints.Restaurant `json:"restaurant"`
	Metrics          Metrics                `json:"metrics"`
	UserSatisfaction []UserSatisfaction     `json:"user_satisfaction"`
}

// unfair is what a restaurant scores when any member's hard constraint fails.
var unfair = Metrics{Gini: 1}

// GroupFairness scores r for every profile and aggregates the results.
func (s *Scorer) GroupFairness(r constraints.Restaurant, profiles []*profile.Profile) Evaluation {
	ev := Evaluation{
		Restaurant:       r,
		UserSatisfaction: make([]UserSatisfaction, len(profiles)),
	}
	allSatisfied := true
	scores := make([]float64, len(profiles))
	for i, p := range profiles {
		us := s.UserSatisfaction(r, p)
		ev.UserSatisfaction[i] = us
		scores[i] = us.Score
		if !us.Satisfied {
			allSatisfied = false
		}
	}

	if !allSatisfied {
		ev.Metrics = unfair
		return ev
	}
	ev.Metrics = ComputeMetrics(scores)
	return ev
}

// ComputeMetrics aggregates a score vector. An empty vector yields zero metrics.
func ComputeMetrics(scores []float64) Metrics {
	n := len(scores)
	if n == 0 {
		return Metrics{}
	}

	sum := 0.0
	minScore := math.Inf(1)
	logSum := 0.0
	hasZero := false
	for _, s := range scores {
		sum += s
		minScore = math.Min(minScore, s)
		if s <= 0 {
			hasZero = true
			continue
		}
		logSum += math.Log(s)
	}

	nash := 0.0
	if !hasZero {
		nash = math.Exp(logSum / float64(n))
	}

	mean := sum / float64(n)
	// AM ≥ GM ≥ min; clamp away floating-point drift at the boundaries.
	nash = math.Max(minScore, math.Min(mean, nash))

	return Metrics{
		Utilitarian: mean,
		Egalitarian: minScore,
		Nash:        nash,
		Gini:        gini(scores, sum),
	}
}

// gini is the mean absolute pairwise difference normalised by 2·n·Σs.
func gini(scores []float64, sum float64) float64 {
	if sum == 0 {
		return 0
	}
	var diff float64
	for _, a := range scores {
		for _, b := range scores {
			diff += math.Abs(a - b)
		}
	}
	return diff / (2 * float64(len(scores)) * sum)
}

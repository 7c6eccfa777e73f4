package fairness

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

var (
	ErrNoCandidates = errors.New("no candidate restaurants")
	ErrNoProfiles   = errors.New("no group members")
	ErrUnknownMode  = errors.New("unknown fairness mode")
)

type Mode string

const (
	ModeUtilitarian Mode = "utilitarian"
	ModeEgalitarian Mode = "egalitarian"
	ModeBalanced    Mode = "balanced"
)

// ParseMode accepts the three mode names; the empty string means balanced.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeBalanced, nil
	case ModeUtilitarian, ModeEgalitarian, ModeBalanced:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// objective is the value a mode maximises.
func (m Mode) objective(x Metrics) float64 {
	switch m {
	case ModeUtilitarian:
		return x.Utilitarian
	case ModeEgalitarian:
		return x.Egalitarian
	default:
		return 0.3*x.Utilitarian + 0.5*x.Egalitarian + 0.2*(1-x.Gini)
	}
}

// Result is the chosen restaurant with everything needed to explain it.
// Evaluations carries every candidate's metrics in input order for display.
type Result struct {
	Restaurant        constraints.Restaurant `json:"restaurant"`
	Mode              Mode                   `json:"mode"`
	Metrics           Metrics                `json:"metrics"`
	UserSatisfaction  []UserSatisfaction     `json:"user_satisfaction"`
	Explanation       string                 `json:"explanation"`
	IsParetoEfficient bool                   `json:"is_pareto_efficient"`
	Evaluations       []Evaluation           `json:"evaluations"`
}

// Selector picks one restaurant for a group.
type Selector struct {
	scorer      *Scorer
	parallelism int
	logger      *slog.Logger
}

// NewSelector creates a Selector. parallelism bounds how many candidates are
// evaluated at once; values below 2 evaluate sequentially.
func NewSelector(scorer *Scorer, parallelism int, logger *slog.Logger) *Selector {
	return &Selector{
		scorer:      scorer,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Evaluate scores every candidate for the group. The result keeps the input order.
func (s *Selector) Evaluate(candidates []constraints.Restaurant, profiles []*profile.Profile) []Evaluation {
	evals := make([]Evaluation, len(candidates))
	if s.parallelism < 2 || len(candidates) < 2 {
		for i, r := range candidates {
			evals[i] = s.scorer.GroupFairness(r, profiles)
		}
		return evals
	}

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, r := range candidates {
		g.Go(func() error {
			evals[i] = s.scorer.GroupFairness(r, profiles)
			return nil
		})
	}
	_ = g.Wait()
	return evals
}

// Select evaluates the candidates, narrows them to the Pareto-efficient set
// and returns the one maximising mode's objective. Ties go to the earliest
// candidate.
func (s *Selector) Select(candidates []constraints.Restaurant, profiles []*profile.Profile, mode Mode) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}

	evals := s.Evaluate(candidates, profiles)
	pool := ParetoEfficient(evals)
	onFrontier := true
	if len(pool) == 0 {
		pool, onFrontier = evals, false
	}

	best := 0
	bestValue := mode.objective(pool[0].Metrics)
	for i := 1; i < len(pool); i++ {
		if v := mode.objective(pool[i].Metrics); v > bestValue {
			best, bestValue = i, v
		}
	}
	chosen := pool[best]

	if s.logger != nil {
		s.logger.Debug("restaurant selected",
			"restaurant", chosen.Restaurant.ID,
			"mode", string(mode),
			"objective", bestValue,
			"candidates", len(evals),
			"pareto", len(pool),
		)
	}

	return &Result{
		Restaurant:        chosen.Restaurant,
		Mode:              mode,
		Metrics:           chosen.Metrics,
		UserSatisfaction:  chosen.UserSatisfaction,
		Explanation:       Explain(chosen, mode),
		IsParetoEfficient: onFrontier,
		Evaluations:       evals,
	}, nil
}

// RankCandidates returns at most k candidates ordered by descending
// relevance score, keeping input order among equal scores. k <= 0 keeps all.
func RankCandidates(candidates []constraints.Restaurant, k int) []constraints.Restaurant {
	ranked := append([]constraints.Restaurant(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Restaurant = cloneRestaurant(r.Restaurant)
	c.UserSatisfaction = cloneSatisfaction(r.UserSatisfaction)
	if r.Evaluations != nil {
		c.Evaluations = make([]Evaluation, len(r.Evaluations))
		for i, ev := range r.Evaluations {
			ev.Restaurant = cloneRestaurant(ev.Restaurant)
			ev.UserSatisfaction = cloneSatisfaction(ev.UserSatisfaction)
			c.Evaluations[i] = ev
		}
	}
	return &c
}

func cloneRestaurant(r constraints.Restaurant) constraints.Restaurant {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}

func cloneSatisfaction(in []UserSatisfaction) []UserSatisfaction {
	if in == nil {
		return nil
	}
	out := make([]UserSatisfaction, len(in))
	for i, us := range in {
		if f := us.Breakdown.HardFailure; f != nil {
			failure := *f
			us.Breakdown.HardFailure = &failure
		}
		if us.Breakdown.SoftScores != nil {
			scores := make(map[string]float64, len(us.Breakdown.SoftScores))
			for k, v := range us.Breakdown.SoftScores {
				scores[k] = v
			}
			us.Breakdown.SoftScores = scores
		}
		out[i] = us
	}
	return out
}

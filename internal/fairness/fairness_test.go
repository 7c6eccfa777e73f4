package fairness

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

var now = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return NewScorer(constraints.NewMatcher(constraints.DefaultHeuristics()))
}

func vegan(userID string) *profile.Profile {
	p := profile.New(userID, now)
	p.Dietary.Restrictions = []profile.Restriction{{Type: "vegan", Strictness: profile.StrictnessStrict}}
	return p
}

func favoring(userID, cuisine string) *profile.Profile {
	p := profile.New(userID, now)
	p.Cuisine.Favorites = []profile.Favorite{{Cuisine: cuisine, Score: 8, LastMentioned: now, Frequency: 1}}
	return p
}

func evalWith(id string, scores ...float64) Evaluation {
	ev := Evaluation{Restaurant: constraints.Restaurant{ID: id, Name: id}}
	for i, s := range scores {
		ev.UserSatisfaction = append(ev.UserSatisfaction, UserSatisfaction{
			UserID:    fmt.Sprintf("u%d", i),
			Score:     s,
			Satisfied: true,
		})
	}
	ev.Metrics = ComputeMetrics(scores)
	return ev
}

func TestUserSatisfactionHardConstraints(t *testing.T) {
	s := newTestScorer()
	p := vegan("alice")

	pass := s.UserSatisfaction(constraints.Restaurant{ID: "r1", Name: "Green", Tags: []string{"vegan", "thai"}}, p)
	assert.True(t, pass.Satisfied)
	assert.True(t, pass.Breakdown.HardConstraintsMet)
	assert.Nil(t, pass.Breakdown.HardFailure)
	assert.InDelta(t, 0.55, pass.Score, 1e-9)

	fail := s.UserSatisfaction(constraints.Restaurant{ID: "r2", Name: "Grill", Cuisine: "steakhouse"}, p)
	assert.False(t, fail.Satisfied)
	assert.False(t, fail.Breakdown.HardConstraintsMet)
	assert.Equal(t, 0.0, fail.Score)
	require.NotNil(t, fail.Breakdown.HardFailure)
	assert.Equal(t, constraints.HardConstraint{Type: constraints.HardDietary, Value: "vegan"}, *fail.Breakdown.HardFailure)
	assert.Empty(t, fail.Breakdown.SoftScores)
}

func TestUserSatisfactionWeightedSoftScore(t *testing.T) {
	s := newTestScorer()
	p := favoring("alice", "thai")
	p.Budget.Preferred = profile.PriceModerate

	us := s.UserSatisfaction(constraints.Restaurant{ID: "r", Name: "Baan", Cuisine: "Thai", Price: profile.PriceUpscale}, p)

	// thai weight 4 matches fully, $$ vs $$$ weight 3 scores 0.7.
	base := (4*1.0 + 3*0.7) / 7
	assert.InDelta(t, base*0.9+0.1, us.Score, 1e-9)
	assert.Equal(t, 1.0, us.Breakdown.SoftScores["cuisine:thai"])
	assert.InDelta(t, 0.7, us.Breakdown.SoftScores["price:$$"], 1e-9)
	assert.Equal(t, 0.0, us.Breakdown.BonusScore)
}

func TestUserSatisfactionIsCapped(t *testing.T) {
	us := newTestScorer().UserSatisfaction(constraints.Restaurant{ID: "r", Name: "Baan", Cuisine: "thai"}, favoring("alice", "thai"))
	assert.InDelta(t, 1.0, us.Score, 1e-9)
}

func TestGroupFairnessHardFailureIsUnfair(t *testing.T) {
	s := newTestScorer()
	x := constraints.Restaurant{ID: "x", Name: "Steak", Cuisine: "steakhouse"}

	ev := s.GroupFairness(x, []*profile.Profile{vegan("p1"), profile.New("p2", now)})

	assert.Equal(t, Metrics{Utilitarian: 0, Egalitarian: 0, Nash: 0, Gini: 1}, ev.Metrics)
	require.Len(t, ev.UserSatisfaction, 2)
	assert.Equal(t, "p1", ev.UserSatisfaction[0].UserID)
	assert.False(t, ev.UserSatisfaction[0].Satisfied)
	assert.True(t, ev.UserSatisfaction[1].Satisfied)
	assert.Equal(t, x, ev.Restaurant)
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics([]float64{0.8, 0.6, 0.7, 0.5})
	assert.InDelta(t, 0.65, m.Utilitarian, 1e-9)
	assert.InDelta(t, 0.5, m.Egalitarian, 1e-9)
	assert.InDelta(t, math.Pow(0.8*0.6*0.7*0.5, 0.25), m.Nash, 1e-9)
	assert.InDelta(t, 0.6402, m.Nash, 1e-4)
	// Ordered pairwise differences sum to 2.0; 2.0 / (2·4·2.6).
	assert.InDelta(t, 2.0/20.8, m.Gini, 1e-9)

	t.Run("equal scores", func(t *testing.T) {
		m := ComputeMetrics([]float64{0.7, 0.7, 0.7})
		assert.InDelta(t, 0.7, m.Nash, 1e-12)
		assert.InDelta(t, 0.0, m.Gini, 1e-12)
	})

	t.Run("zero score collapses nash", func(t *testing.T) {
		m := ComputeMetrics([]float64{0, 1})
		assert.Equal(t, 0.0, m.Nash)
		assert.InDelta(t, 0.5, m.Gini, 1e-12)
	})

	t.Run("all zero", func(t *testing.T) {
		assert.Equal(t, Metrics{}, ComputeMetrics([]float64{0, 0}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Metrics{}, ComputeMetrics(nil))
	})
}

func TestComputeMetricsOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		scores := make([]float64, 1+rng.Intn(8))
		for k := range scores {
			scores[k] = rng.Float64()
		}
		m := ComputeMetrics(scores)
		assert.LessOrEqual(t, m.Egalitarian, m.Nash, "scores %v", scores)
		assert.LessOrEqual(t, m.Nash, m.Utilitarian, "scores %v", scores)
		assert.GreaterOrEqual(t, m.Gini, 0.0, "scores %v", scores)
		assert.LessOrEqual(t, m.Gini, 1.0, "scores %v", scores)
	}
}

func TestParetoEfficient(t *testing.T) {
	ids := func(evals []Evaluation) []string {
		out := make([]string, len(evals))
		for i, ev := range evals {
			out[i] = ev.Restaurant.ID
		}
		return out
	}

	tests := []struct {
		name  string
		evals []Evaluation
		want  []string
	}{
		{
			name:  "dominated candidate dropped",
			evals: []Evaluation{evalWith("a", 0.5, 0.6), evalWith("b", 0.5, 0.7)},
			want:  []string{"b"},
		},
		{
			name:  "incomparable candidates kept",
			evals: []Evaluation{evalWith("c", 0.9, 0.1), evalWith("d", 0.1, 0.9)},
			want:  []string{"c", "d"},
		},
		{
			name:  "identical vectors both kept",
			evals: []Evaluation{evalWith("e", 0.4, 0.4), evalWith("f", 0.4, 0.4)},
			want:  []string{"e", "f"},
		},
		{
			name: "order preserved",
			evals: []Evaluation{
				evalWith("g", 0.2, 0.9), evalWith("h", 0.1, 0.1), evalWith("i", 0.9, 0.2),
			},
			want: []string{"g", "i"},
		},
		{
			name:  "single candidate",
			evals: []Evaluation{evalWith("j", 0.3)},
			want:  []string{"j"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(ParetoEfficient(tt.evals)))
		})
	}
}

func TestDominatesRequiresSameUsers(t *testing.T) {
	assert.False(t, dominates(evalWith("a", 0.9, 0.9, 0.9), evalWith("b", 0.1, 0.1)))
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"utilitarian", "egalitarian", "balanced"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBalanced, m)

	_, err = ParseMode("nash")
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestModeObjective(t *testing.T) {
	x := Metrics{Utilitarian: 0.8, Egalitarian: 0.4, Nash: 0.6, Gini: 0.25}
	assert.Equal(t, 0.8, ModeUtilitarian.objective(x))
	assert.Equal(t, 0.4, ModeEgalitarian.objective(x))
	assert.InDelta(t, 0.3*0.8+0.5*0.4+0.2*0.75, ModeBalanced.objective(x), 1e-12)
}

// groupScenario returns two members and three candidates: "thai" favours
// alice, "italian" favours bob, and "fusion" dominates "thai".
func groupScenario() ([]constraints.Restaurant, []*profile.Profile) {
	candidates := []constraints.Restaurant{
		{ID: "thai", Name: "Baan", Cuisine: "thai"},
		{ID: "italian", Name: "Trattoria", Cuisine: "italian"},
		{ID: "fusion", Name: "Fusion", Cuisine: "thai", Tags: []string{"pizza"}, Address: "1 Main St"},
	}
	return candidates, []*profile.Profile{favoring("alice", "thai"), favoring("bob", "italian")}
}

func TestSelect(t *testing.T) {
	candidates, profiles := groupScenario()
	sel := NewSelector(newTestScorer(), 1, nil)

	for _, mode := range []Mode{ModeUtilitarian, ModeEgalitarian, ModeBalanced} {
		t.Run(string(mode), func(t *testing.T) {
			res, err := sel.Select(candidates, profiles, mode)
			require.NoError(t, err)

			assert.Equal(t, "fusion", res.Restaurant.ID)
			assert.Equal(t, mode, res.Mode)
			assert.True(t, res.IsParetoEfficient)
			require.Len(t, res.UserSatisfaction, 2)
			assert.InDelta(t, 1.0, res.UserSatisfaction[0].Score, 1e-9)
			assert.InDelta(t, 0.73, res.UserSatisfaction[1].Score, 1e-9)
			assert.InDelta(t, 0.865, res.Metrics.Utilitarian, 1e-9)
			assert.Len(t, res.Evaluations, 3)
			assert.Equal(t, "thai", res.Evaluations[0].Restaurant.ID)
			assert.Contains(t, res.Explanation, "Recommended: Fusion (thai)")
		})
	}
}

func TestSelectMaximisesObjectiveOverFrontier(t *testing.T) {
	candidates, profiles := groupScenario()
	candidates = append(candidates,
		constraints.Restaurant{ID: "asian", Name: "Pan Asian", Cuisine: "asian", Tags: []string{"pasta"}},
		constraints.Restaurant{ID: "pizza", Name: "Slice", Cuisine: "pizza", Price: profile.PriceBudget},
	)
	sel := NewSelector(newTestScorer(), 1, nil)

	for _, mode := range []Mode{ModeUtilitarian, ModeEgalitarian, ModeBalanced} {
		res, err := sel.Select(candidates, profiles, mode)
		require.NoError(t, err)

		frontier := ParetoEfficient(res.Evaluations)
		want := frontier[0]
		for _, ev := range frontier[1:] {
			if mode.objective(ev.Metrics) > mode.objective(want.Metrics) {
				want = ev
			}
		}
		assert.Equal(t, want.Restaurant.ID, res.Restaurant.ID, "mode %s", mode)
	}
}

func TestSelectTieGoesToFirstCandidate(t *testing.T) {
	candidates := []constraints.Restaurant{
		{ID: "first", Name: "One", Cuisine: "thai"},
		{ID: "second", Name: "Two", Cuisine: "thai"},
	}
	res, err := NewSelector(newTestScorer(), 1, nil).Select(candidates, []*profile.Profile{favoring("alice", "thai")}, ModeBalanced)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Restaurant.ID)
}

func TestSelectDegenerateInput(t *testing.T) {
	sel := NewSelector(newTestScorer(), 1, nil)
	candidates, profiles := groupScenario()

	_, err := sel.Select(nil, profiles, ModeBalanced)
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = sel.Select(candidates, nil, ModeBalanced)
	assert.ErrorIs(t, err, ErrNoProfiles)
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	cuisines := []string{"thai", "italian", "pizza", "sushi", "bbq", "mexican", "asian"}
	var candidates []constraints.Restaurant
	for i := 0; i < 30; i++ {
		c := cuisines[i%len(cuisines)]
		candidates = append(candidates, constraints.Restaurant{
			ID:      fmt.Sprintf("r%d", i),
			Name:    fmt.Sprintf("R%d", i),
			Cuisine: c,
			Tags:    []string{cuisines[(i+3)%len(cuisines)]},
		})
	}
	profiles := []*profile.Profile{favoring("a", "thai"), favoring("b", "italian"), favoring("c", "japanese")}
	scorer := newTestScorer()

	seq := NewSelector(scorer, 1, nil).Evaluate(candidates, profiles)
	par := NewSelector(scorer, 4, nil).Evaluate(candidates, profiles)
	assert.Equal(t, seq, par)
}

func TestRankCandidates(t *testing.T) {
	in := []constraints.Restaurant{
		{ID: "a", Score: 0.2},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.5},
		{ID: "d", Score: 0.9},
	}

	top := RankCandidates(in, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "d", "c"}, []string{top[0].ID, top[1].ID, top[2].ID})
	assert.Equal(t, "a", in[0].ID)

	assert.Len(t, RankCandidates(in, 0), 4)
	assert.Len(t, RankCandidates(in, 10), 4)
}

func TestExplain(t *testing.T) {
	ev := Evaluation{
		Restaurant: constraints.Restaurant{ID: "r", Name: "Baan", Cuisine: "thai", Address: "12 Side St"},
		Metrics:    Metrics{Utilitarian: 0.5, Egalitarian: 0.25, Nash: 0.4, Gini: 0.2},
		UserSatisfaction: []UserSatisfaction{
			{UserID: "alice", Score: 0.75, Satisfied: true},
			{UserID: "bob", Score: 0, Breakdown: Breakdown{
				HardFailure: &constraints.HardConstraint{Type: constraints.HardAllergy, Value: "peanut"},
			}},
		},
	}

	out := Explain(ev, ModeEgalitarian)
	assert.Contains(t, out, "Recommended: Baan (thai)")
	assert.Contains(t, out, "Address: 12 Side St")
	assert.Contains(t, out, "Average satisfaction: 50%")
	assert.Contains(t, out, "Minimum satisfaction: 25%")
	assert.Contains(t, out, "Inequality index: 20%")
	assert.Contains(t, out, "- alice: 75%\n")
	assert.Contains(t, out, "- bob: 0% (not satisfied: allergy peanut requirement not met)")
	assert.Contains(t, out, modeRationale[ModeEgalitarian])

	assert.Equal(t, out, Explain(ev, ModeEgalitarian))
	assert.Contains(t, Explain(ev, Mode("unknown")), modeRationale[ModeBalanced])
}

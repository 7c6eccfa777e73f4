package fairness

// ParetoEfficient returns the evaluations no other evaluation dominates,
// in input order. Per-user vectors are compared position by position, so
// every evaluation must have been scored against the same profile order.
// O(k²·n) for k candidates and n users.
func ParetoEfficient(evals []Evaluation) []Evaluation {
	if len(evals) <= 1 {
		return evals
	}

	var frontier []Evaluation
	for i := range evals {
		dominated := false
		for j := range evals {
			if i == j {
				continue
			}
			if dominates(evals[j], evals[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, evals[i])
		}
	}
	return frontier
}

// dominates returns true if every user is at least as satisfied with a as
// with b and at least one user is strictly more satisfied.
func dominates(a, b Evaluation) bool {
	if len(a.UserSatisfaction) != len(b.UserSatisfaction) {
		return false
	}
	strictly := false
	for k := range a.UserSatisfaction {
		sa, sb := a.UserSatisfaction[k].Score, b.UserSatisfaction[k].Score
		if sa < sb {
			return false
		}
		if sa > sb {
			strictly = true
		}
	}
	return strictly
}

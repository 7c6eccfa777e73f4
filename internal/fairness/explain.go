package fairness

import (
	"fmt"
	"strings"
)

var modeRationale = map[Mode]string{
	ModeUtilitarian: "Utilitarian mode maximizes the group's average satisfaction.",
	ModeEgalitarian: "Egalitarian mode maximizes the satisfaction of the least satisfied member.",
	ModeBalanced:    "Balanced mode weighs average satisfaction, the least satisfied member and equality across the group.",
}

// Explain renders the fixed-template explanation for a chosen evaluation.
func Explain(ev Evaluation, mode Mode) string {
	var b strings.Builder
	r := ev.Restaurant

	fmt.Fprintf(&b, "Recommended: %s", r.Name)
	if r.Cuisine != "" {
		fmt.Fprintf(&b, " (%s)", r.Cuisine)
	}
	b.WriteString("\n")
	if r.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", r.Address)
	}

	fmt.Fprintf(&b, "\nAverage satisfaction: %s\n", percent(ev.Metrics.Utilitarian))
	fmt.Fprintf(&b, "Minimum satisfaction: %s\n", percent(ev.Metrics.Egalitarian))
	fmt.Fprintf(&b, "Inequality index: %s\n", percent(ev.Metrics.Gini))

	b.WriteString("\nIndividual satisfaction:\n")
	for _, us := range ev.UserSatisfaction {
		fmt.Fprintf(&b, "- %s: %s", us.UserID, percent(us.Score))
		if !us.Satisfied {
			b.WriteString(" (not satisfied")
			if f := us.Breakdown.HardFailure; f != nil {
				fmt.Fprintf(&b, ": %s %s requirement not met", f.Type, f.Value)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	rationale, ok := modeRationale[mode]
	if !ok {
		rationale = modeRationale[ModeBalanced]
	}
	fmt.Fprintf(&b, "\n%s", rationale)
	return b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

package constraints

import (
	"math"

	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

type HardType string

const (
	HardDietary       HardType = "dietary"
	HardAllergy       HardType = "allergy"
	HardAccessibility HardType = "accessibility"
)

type SoftType string

const (
	SoftCuisine  SoftType = "cuisine"
	SoftPrice    SoftType = "price"
	SoftLocation SoftType = "location"
	SoftAmbiance SoftType = "ambiance"
)

type BonusType string

const (
	BonusParking     BonusType = "parking"
	BonusOutdoor     BonusType = "outdoor"
	BonusReservation BonusType = "reservation"
	BonusLateNight   BonusType = "late-night"
)

// HardConstraint disqualifies a restaurant when unmet.
type HardConstraint struct {
	Type  HardType `json:"type"`
	Value string   `json:"value"`
}

// SoftConstraint contributes a weighted 0–1 match. Weight is in [1,5].
type SoftConstraint struct {
	Type   SoftType `json:"type"`
	Value  string   `json:"value"`
	Weight int      `json:"weight"`
}

// Key identifies the constraint in satisfaction breakdowns.
func (c SoftConstraint) Key() string {
	return string(c.Type) + ":" + c.Value
}

// BonusConstraint adds a small reward when met and never penalises.
type BonusConstraint struct {
	Type  BonusType `json:"type"`
	Value bool      `json:"value"`
}

// UserConstraints is derived from a profile on every evaluation and never stored.
type UserConstraints struct {
	Hard  []HardConstraint  `json:"hard"`
	Soft  []SoftConstraint  `json:"soft"`
	Bonus []BonusConstraint `json:"bonus"`
}

const (
	maxFavoriteConstraints = 5
	dietaryFriendlyWeight  = 3
	dislikeWeight          = 3
	locationWeight         = 2
	ambianceWeight         = 1
	notPrefix              = "not-"
	friendlySuffix         = "-friendly"
)

// Extract classifies a profile into hard, soft and bonus constraints.
// The bonus list is never populated from a profile.
func Extract(p *profile.Profile) UserConstraints {
	var uc UserConstraints

	for _, r := range p.Dietary.Restrictions {
		if r.Strictness == profile.StrictnessStrict {
			uc.Hard = append(uc.Hard, HardConstraint{Type: HardDietary, Value: r.Type})
			continue
		}
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftCuisine, Value: r.Type + friendlySuffix, Weight: dietaryFriendlyWeight})
	}

	for _, a := range p.Dietary.Allergies {
		uc.Hard = append(uc.Hard, HardConstraint{Type: HardAllergy, Value: a})
	}

	if p.Dietary.Religious != profile.ReligiousNone {
		uc.Hard = append(uc.Hard, HardConstraint{Type: HardDietary, Value: string(p.Dietary.Religious)})
	}

	for i, f := range p.Cuisine.Favorites {
		if i == maxFavoriteConstraints {
			break
		}
		weight := clampInt(int(math.Ceil(f.Score/2)), 1, 5)
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftCuisine, Value: f.Cuisine, Weight: weight})
	}

	for _, d := range p.Cuisine.Dislikes {
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftCuisine, Value: notPrefix + d, Weight: dislikeWeight})
	}

	if p.Budget.Preferred != profile.PriceNone {
		flex := clampInt(p.Budget.Flexibility, profile.MinFlexibility, profile.MaxFlexibility)
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftPrice, Value: string(p.Budget.Preferred), Weight: 6 - flex})
	}

	for _, area := range p.Location.PreferredAreas {
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftLocation, Value: area, Weight: locationWeight})
	}

	for _, a := range p.DiningStyle.Ambiance {
		uc.Soft = append(uc.Soft, SoftConstraint{Type: SoftAmbiance, Value: string(a), Weight: ambianceWeight})
	}

	return uc
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package constraints

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Heuristics holds the hand-authored lookup tables the matcher consults.
// A YAML file can override or extend any table without touching scoring code.
type Heuristics struct {
	// DietaryKeywords lists the terms that prove a restaurant serves a diet.
	// Diets missing from the table always pass.
	DietaryKeywords map[string][]string `yaml:"dietary_keywords"`

	// AllergenKeywords lists terms whose presence fails an allergy.
	// Allergens missing from the table always pass.
	AllergenKeywords map[string][]string `yaml:"allergen_keywords"`

	// CuisineRelations is consulted in both directions.
	CuisineRelations    map[string][]string `yaml:"cuisine_relations"`
	RelatedCuisineScore float64             `yaml:"related_cuisine_score"`

	LocationAliases    map[string][]string `yaml:"location_aliases"`
	LocationAliasScore float64             `yaml:"location_alias_score"`
	LocationBaseline   float64             `yaml:"location_baseline"`

	// AmbianceByPrice maps a price tier to the ambiance it stands in for.
	AmbianceByPrice    map[string][]string `yaml:"ambiance_by_price"`
	AmbianceProxyScore float64             `yaml:"ambiance_proxy_score"`
	AmbianceDefault    float64             `yaml:"ambiance_default"`

	BonusKeywords map[string][]string `yaml:"bonus_keywords"`

	UnknownSoftScore float64 `yaml:"unknown_soft_score"`
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		DietaryKeywords: map[string][]string{
			"vegan":       {"vegan"},
			"vegetarian":  {"vegetarian", "vegan"},
			"halal":       {"halal"},
			"kosher":      {"kosher"},
			"gluten-free": {"gluten-free", "gluten free"},
		},
		AllergenKeywords: map[string][]string{
			"nut-free": {"peanut", "nuts", "almond", "cashew", "walnut", "pecan", "pistachio", "hazelnut"},
			"peanut":   {"peanut", "nuts", "almond", "cashew", "walnut", "pecan", "pistachio", "hazelnut"},
		},
		CuisineRelations: map[string][]string{
			"asian":   {"chinese", "japanese", "thai", "korean", "vietnamese", "sushi"},
			"sushi":   {"japanese"},
			"bbq":     {"american", "smokehouse", "grill"},
			"italian": {"pizza", "pasta"},
			"mexican": {"latin", "tacos"},
		},
		RelatedCuisineScore: 0.7,
		LocationAliases: map[string][]string{
			"downtown": {"core", "central"},
		},
		LocationAliasScore: 0.8,
		LocationBaseline:   0.2,
		AmbianceByPrice: map[string][]string{
			"$":    {"casual"},
			"$$$":  {"upscale"},
			"$$$$": {"upscale"},
		},
		AmbianceProxyScore: 0.8,
		AmbianceDefault:    0.5,
		BonusKeywords: map[string][]string{
			"outdoor":    {"outdoor", "patio", "terrace"},
			"parking":    {"parking"},
			"late-night": {"late-night", "late night", "open late"},
		},
		UnknownSoftScore: 0.5,
	}
}

// LoadHeuristics overlays the YAML file at path onto the defaults.
// Map entries in the file replace the default entry with the same key.
// An empty path returns the defaults.
func LoadHeuristics(path string) (Heuristics, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read heuristics: %w", err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("parse heuristics: %w", err)
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

// Validate checks that every score lies in [0,1].
func (h Heuristics) Validate() error {
	scores := map[string]float64{
		"related_cuisine_score": h.RelatedCuisineScore,
		"location_alias_score":  h.LocationAliasScore,
		"location_baseline":     h.LocationBaseline,
		"ambiance_proxy_score":  h.AmbianceProxyScore,
		"ambiance_default":      h.AmbianceDefault,
		"unknown_soft_score":    h.UnknownSoftScore,
	}
	for name, v := range scores {
		if v < 0 || v > 1 {
			return fmt.Errorf("heuristic %s is %.3f, must be within [0,1]", name, v)
		}
	}
	return nil
}

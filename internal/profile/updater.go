package profile

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ExtractedPreferences is the per-batch signal bag produced by the extraction
// collaborator. Every field is independently optional; a nil slice or empty
// PriceTier means "no signal" for that category.
type ExtractedPreferences struct {
	Dietary          []Restriction `json:"dietary,omitempty" validate:"omitempty,dive"`
	Allergies        []string      `json:"allergies,omitempty" validate:"omitempty,dive,required"`
	Cuisines         []string      `json:"cuisines,omitempty" validate:"omitempty,dive,required"`
	DislikedCuisines []string      `json:"disliked_cuisines,omitempty" validate:"omitempty,dive,required"`
	Price            PriceTier     `json:"price,omitempty" validate:"omitempty,oneof=$ $$ $$$ $$$$"`
	Locations        []string      `json:"locations,omitempty" validate:"omitempty,dive,required"`
	Ambiance         []Ambiance    `json:"ambiance,omitempty"`

	// Negations are carried through from extraction but no profile field consumes them yet.
	Negations []string `json:"negations,omitempty"`
}

// Empty reports whether e carries no signal at all.
func (e ExtractedPreferences) Empty() bool {
	return len(e.Dietary) == 0 && len(e.Allergies) == 0 && len(e.Cuisines) == 0 &&
		len(e.DislikedCuisines) == 0 && e.Price == PriceNone && len(e.Locations) == 0 &&
		len(e.Ambiance) == 0 && len(e.Negations) == 0
}

// Merge folds several extractions into one, keeping arrival order within each
// field. The last non-empty price wins.
func Merge(list ...ExtractedPreferences) ExtractedPreferences {
	var out ExtractedPreferences
	for _, e := range list {
		out.Dietary = append(out.Dietary, e.Dietary...)
		out.Allergies = append(out.Allergies, e.Allergies...)
		out.Cuisines = append(out.Cuisines, e.Cuisines...)
		out.DislikedCuisines = append(out.DislikedCuisines, e.DislikedCuisines...)
		if e.Price != PriceNone {
			out.Price = e.Price
		}
		out.Locations = append(out.Locations, e.Locations...)
		out.Ambiance = append(out.Ambiance, e.Ambiance...)
		out.Negations = append(out.Negations, e.Negations...)
	}
	return out
}

const (
	dietaryReinforceBoost = 0.15
	dietaryNewFloor       = 0.6
	allergyBoost          = 0.2
	cuisineBoost          = 0.1
	budgetBoost           = 0.2
	locationBoost         = 0.15

	favoriteInitialScore = 6.0
	favoriteReinforce    = 1.5
	favoriteMaxScore     = 10.0
	favoritePruneScore   = 1.0

	decayFactor = 0.95
	decayAfter  = 7 * 24 * time.Hour
)

// Update merges extracted signal into p and returns the resulting profile.
// p is left untouched. Decay, history bookkeeping and the overall confidence
// are applied on every call, signal or not.
func Update(p *Profile, e ExtractedPreferences, now time.Time) *Profile {
	next := p.Clone()

	applyDietary(next, e, now)
	applyCuisine(next, e, now)

	if e.Price != PriceNone {
		next.Budget.Preferred = e.Price
		next.Confidence.Budget = saturate(next.Confidence.Budget + budgetBoost)
	}

	if len(e.Locations) > 0 {
		for _, area := range e.Locations {
			area = normalize(area)
			if area != "" && !containsString(next.Location.PreferredAreas, area) {
				next.Location.PreferredAreas = append(next.Location.PreferredAreas, area)
			}
		}
		next.Confidence.Location = saturate(next.Confidence.Location + locationBoost)
	}

	for _, a := range e.Ambiance {
		a = Ambiance(normalize(string(a)))
		if a.Valid() && !containsAmbiance(next.DiningStyle.Ambiance, a) {
			next.DiningStyle.Ambiance = append(next.DiningStyle.Ambiance, a)
		}
	}

	next.Cuisine.Favorites = decayFavorites(next.Cuisine.Favorites, now)

	next.History.LastUpdated = now
	next.History.TotalInteractions++
	next.Confidence.Overall = saturate(next.Confidence.mean())
	return next
}

func applyDietary(p *Profile, e ExtractedPreferences, now time.Time) {
	for _, r := range e.Dietary {
		kind := normalize(r.Type)
		if kind == "" {
			continue
		}
		idx := -1
		for i := range p.Dietary.Restrictions {
			if p.Dietary.Restrictions[i].Type == kind {
				idx = i
				break
			}
		}
		if idx >= 0 {
			if r.Strictness == StrictnessStrict {
				p.Dietary.Restrictions[idx].Strictness = StrictnessStrict
			}
			p.Confidence.Dietary = saturate(p.Confidence.Dietary + dietaryReinforceBoost)
			continue
		}

		strictness := r.Strictness
		if strictness != StrictnessStrict {
			strictness = StrictnessFlexible
		}
		since := now
		p.Dietary.Restrictions = append(p.Dietary.Restrictions, Restriction{
			Type:       kind,
			Strictness: strictness,
			Since:      &since,
		})
		p.Confidence.Dietary = math.Max(p.Confidence.Dietary, dietaryNewFloor)
	}

	if len(e.Allergies) > 0 {
		for _, a := range e.Allergies {
			a = normalize(a)
			if a != "" && !containsString(p.Dietary.Allergies, a) {
				p.Dietary.Allergies = append(p.Dietary.Allergies, a)
			}
		}
		p.Confidence.Dietary = saturate(p.Confidence.Dietary + allergyBoost)
	}
}

func applyCuisine(p *Profile, e ExtractedPreferences, now time.Time) {
	if len(e.Cuisines) > 0 {
		for _, c := range e.Cuisines {
			c = normalize(c)
			if c == "" {
				continue
			}
			found := false
			for i := range p.Cuisine.Favorites {
				f := &p.Cuisine.Favorites[i]
				if f.Cuisine == c {
					f.Score = math.Min(favoriteMaxScore, f.Score+favoriteReinforce)
					f.Frequency++
					f.LastMentioned = now
					found = true
					break
				}
			}
			if !found {
				p.Cuisine.Favorites = append(p.Cuisine.Favorites, Favorite{
					Cuisine:       c,
					Score:         favoriteInitialScore,
					LastMentioned: now,
					Frequency:     1,
				})
			}
		}
		p.Cuisine.Favorites = rankFavorites(p.Cuisine.Favorites)
		p.Confidence.Cuisine = saturate(p.Confidence.Cuisine + cuisineBoost)
	}

	for _, d := range e.DislikedCuisines {
		d = normalize(d)
		if d != "" && !containsString(p.Cuisine.Dislikes, d) {
			p.Cuisine.Dislikes = append(p.Cuisine.Dislikes, d)
		}
	}
}

// decayFavorites shrinks every favorite untouched for over a week by
// 0.95^weeks, drops the ones that fall to 1 or below and re-ranks the rest.
func decayFavorites(favorites []Favorite, now time.Time) []Favorite {
	changed := false
	kept := favorites[:0]
	for _, f := range favorites {
		elapsed := now.Sub(f.LastMentioned)
		if elapsed > decayAfter {
			weeks := elapsed.Hours() / (24 * 7)
			f.Score *= math.Pow(decayFactor, weeks)
			changed = true
		}
		if f.Score <= favoritePruneScore {
			changed = true
			continue
		}
		kept = append(kept, f)
	}
	if !changed {
		return kept
	}
	return rankFavorites(kept)
}

// rankFavorites sorts descending by score (stable for equal scores) and keeps the top MaxFavorites.
func rankFavorites(favorites []Favorite) []Favorite {
	sort.SliceStable(favorites, func(i, j int) bool {
		return favorites[i].Score > favorites[j].Score
	})
	if len(favorites) > MaxFavorites {
		favorites = favorites[:MaxFavorites]
	}
	return favorites
}

func saturate(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAmbiance(list []Ambiance, v Ambiance) bool {
	for _, a := range list {
		if a == v {
			return true
		}
	}
	return false
}

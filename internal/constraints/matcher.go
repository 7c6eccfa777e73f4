package constraints

import (
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

// Restaurant is a candidate handed in by the search collaborator. Score is
// its externally computed relevance and is only used to cap the pool.
type Restaurant struct {
	ID           string            `json:"id" validate:"required"`
	Name         string            `json:"name" validate:"required"`
	Cuisine      string            `json:"cuisine"`
	Price        profile.PriceTier `json:"price" validate:"omitempty,oneof=$ $$ $$$ $$$$"`
	Description  string            `json:"description,omitempty"`
	Neighborhood string            `json:"neighborhood,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Address      string            `json:"address,omitempty"`
	Score        float64           `json:"score"`
}

// listing is the lower-cased view of a restaurant the matcher searches.
type listing struct {
	tags         []string
	cuisine      string
	description  string
	neighborhood string
	price        profile.PriceTier
}

func newListing(r Restaurant) listing {
	l := listing{
		tags:         make([]string, len(r.Tags)),
		cuisine:      strings.ToLower(r.Cuisine),
		description:  strings.ToLower(r.Description),
		neighborhood: strings.ToLower(r.Neighborhood),
		price:        r.Price,
	}
	for i, t := range r.Tags {
		l.tags[i] = strings.ToLower(t)
	}
	return l
}

// inLabels reports whether term occurs in any tag or the cuisine label.
func (l listing) inLabels(term string) bool {
	if term == "" {
		return false
	}
	if strings.Contains(l.cuisine, term) {
		return true
	}
	for _, t := range l.tags {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

// inText additionally searches the free-text description.
func (l listing) inText(term string) bool {
	return l.inLabels(term) || (term != "" && strings.Contains(l.description, term))
}

func (l listing) anyInText(terms []string) bool {
	for _, t := range terms {
		if l.inText(t) {
			return true
		}
	}
	return false
}

func (l listing) anyInLabels(terms []string) bool {
	for _, t := range terms {
		if l.inLabels(t) {
			return true
		}
	}
	return false
}

// Matcher evaluates one restaurant against one constraint. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	h Heuristics
}

func NewMatcher(h Heuristics) *Matcher {
	return &Matcher{h: h}
}

// CheckHard reports whether r satisfies c. Values the heuristics have no
// data for pass, so an unrecognised requirement never blocks a restaurant.
func (m *Matcher) CheckHard(r Restaurant, c HardConstraint) bool {
	l := newListing(r)
	value := strings.ToLower(c.Value)

	switch c.Type {
	case HardDietary:
		keywords, ok := m.h.DietaryKeywords[value]
		if !ok {
			return true
		}
		return l.anyInText(keywords)
	case HardAllergy:
		keywords, ok := m.h.AllergenKeywords[value]
		if !ok {
			return true
		}
		return !l.anyInText(keywords)
	case HardAccessibility:
		return true
	default:
		return true
	}
}

// MatchSoft scores how well r meets c, in [0,1].
func (m *Matcher) MatchSoft(r Restaurant, c SoftConstraint) float64 {
	l := newListing(r)
	value := strings.ToLower(c.Value)

	switch c.Type {
	case SoftCuisine:
		return m.matchCuisine(l, value)
	case SoftPrice:
		return matchPrice(l.price, profile.PriceTier(value), m.h.UnknownSoftScore)
	case SoftLocation:
		return m.matchLocation(l, value)
	case SoftAmbiance:
		return m.matchAmbiance(l, value)
	default:
		return m.h.UnknownSoftScore
	}
}

func (m *Matcher) matchCuisine(l listing, value string) float64 {
	if avoided, ok := strings.CutPrefix(value, notPrefix); ok {
		if l.inLabels(avoided) {
			return 0
		}
		return 1
	}
	if l.inLabels(value) {
		return 1
	}
	if related, ok := m.h.CuisineRelations[value]; ok && l.anyInLabels(related) {
		return m.h.RelatedCuisineScore
	}
	for parent, related := range m.h.CuisineRelations {
		if containsTerm(related, value) && l.inLabels(parent) {
			return m.h.RelatedCuisineScore
		}
	}
	return 0
}

// matchPrice loses 0.3 per tier of distance. A restaurant without a
// usable tier gets the neutral score.
func matchPrice(actual, wanted profile.PriceTier, neutral float64) float64 {
	a, w := actual.Level(), wanted.Level()
	if a == 0 || w == 0 {
		return neutral
	}
	return math.Max(0, 1-0.3*math.Abs(float64(w-a)))
}

func (m *Matcher) matchLocation(l listing, value string) float64 {
	if value != "" && strings.Contains(l.neighborhood, value) {
		return 1
	}
	for _, alias := range m.h.LocationAliases[value] {
		if strings.Contains(l.neighborhood, alias) {
			return m.h.LocationAliasScore
		}
	}
	return m.h.LocationBaseline
}

// matchAmbiance has no ambiance data to read, so price tier stands in.
func (m *Matcher) matchAmbiance(l listing, value string) float64 {
	if containsTerm(m.h.AmbianceByPrice[string(l.price)], value) {
		return m.h.AmbianceProxyScore
	}
	return m.h.AmbianceDefault
}

// CheckBonus reports whether r offers the amenity c asks for. Amenities
// without keyword data never match.
func (m *Matcher) CheckBonus(r Restaurant, c BonusConstraint) bool {
	if !c.Value {
		return false
	}
	keywords, ok := m.h.BonusKeywords[string(c.Type)]
	if !ok {
		return false
	}
	return newListing(r).anyInText(keywords)
}

func containsTerm(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

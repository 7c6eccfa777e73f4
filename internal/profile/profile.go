package profile

import (
	"time"
)

type Strictness string

const (
	StrictnessStrict   Strictness = "strict"
	StrictnessFlexible Strictness = "flexible"
)

type Religious string

const (
	ReligiousNone   Religious = ""
	ReligiousHalal  Religious = "halal"
	ReligiousKosher Religious = "kosher"
)

type PriceTier string

const (
	PriceNone      PriceTier = ""
	PriceBudget    PriceTier = "$"
	PriceModerate  PriceTier = "$$"
	PriceUpscale   PriceTier = "$$$"
	PriceLuxurious PriceTier = "$$$$"
)

// Level maps a tier onto 1–4. Unknown or unset tiers return 0.
func (t PriceTier) Level() int {
	switch t {
	case PriceBudget:
		return 1
	case PriceModerate:
		return 2
	case PriceUpscale:
		return 3
	case PriceLuxurious:
		return 4
	default:
		return 0
	}
}

type Ambiance string

const (
	AmbianceCasual  Ambiance = "casual"
	AmbianceUpscale Ambiance = "upscale"
	AmbianceTrendy  Ambiance = "trendy"
	AmbianceQuiet   Ambiance = "quiet"
	AmbianceLively  Ambiance = "lively"
)

// Valid reports whether a is one of the recognised ambiance values.
func (a Ambiance) Valid() bool {
	switch a {
	case AmbianceCasual, AmbianceUpscale, AmbianceTrendy, AmbianceQuiet, AmbianceLively:
		return true
	}
	return false
}

const (
	MaxFavorites       = 10
	MinFlexibility     = 1
	MaxFlexibility     = 5
	DefaultFlexibility = 3
)

type Restriction struct {
	Type       string     `json:"type" validate:"required"`
	Strictness Strictness `json:"strictness" validate:"omitempty,oneof=strict flexible"`
	Since      *time.Time `json:"since,omitempty"`
}

type Dietary struct {
	Restrictions      []Restriction `json:"restrictions"`
	Allergies         []string      `json:"allergies"`
	Religious         Religious     `json:"religious,omitempty"`
	MedicalConditions []string      `json:"medical_conditions"`
}

type Favorite struct {
	Cuisine       string    `json:"cuisine"`
	Score         float64   `json:"score"`
	LastMentioned time.Time `json:"last_mentioned"`
	Frequency     int       `json:"frequency"`
}

type Cuisine struct {
	Favorites []Favorite `json:"favorites"`
	Dislikes  []string   `json:"dislikes"`
}

type Budget struct {
	Preferred   PriceTier `json:"preferred,omitempty"`
	Flexibility int       `json:"flexibility"`
}

type Location struct {
	PreferredAreas    []string `json:"preferred_areas"`
	MaxTravelDistance float64  `json:"max_travel_distance,omitempty"`
	HasTransportation bool     `json:"has_transportation"`
}

type DiningStyle struct {
	Ambiance       []Ambiance `json:"ambiance"`
	GroupSize      string     `json:"group_size,omitempty"`
	TimePreference string     `json:"time_preference,omitempty"`
}

type History struct {
	Visited           []string           `json:"visited"`
	Ratings           map[string]float64 `json:"ratings"`
	LastUpdated       time.Time          `json:"last_updated"`
	TotalInteractions int                `json:"total_interactions"`
}

// Confidence holds per-category certainty in [0,1]. Overall is the mean of the other four.
type Confidence struct {
	Dietary  float64 `json:"dietary"`
	Cuisine  float64 `json:"cuisine"`
	Budget   float64 `json:"budget"`
	Location float64 `json:"location"`
	Overall  float64 `json:"overall"`
}

func (c Confidence) mean() float64 {
	return (c.Dietary + c.Cuisine + c.Budget + c.Location) / 4
}

// Profile is one group member's preference state. Treat it as a value:
// Update returns a new Profile and never modifies its input.
type Profile struct {
	UserID      string      `json:"user_id"`
	Dietary     Dietary     `json:"dietary"`
	Cuisine     Cuisine     `json:"cuisine"`
	Budget      Budget      `json:"budget"`
	Location    Location    `json:"location"`
	DiningStyle DiningStyle `json:"dining_style"`
	History     History     `json:"history"`
	Confidence  Confidence  `json:"confidence"`

	// Memory is aspect → value → entry, maintained by ApplyActions.
	Memory map[string]map[string]MemoryEntry `json:"memory,omitempty"`
}

// New returns an empty profile for a user seen for the first time.
func New(userID string, now time.Time) *Profile {
	return &Profile{
		UserID: userID,
		Budget: Budget{Flexibility: DefaultFlexibility},
		History: History{
			Ratings:     map[string]float64{},
			LastUpdated: now,
		},
	}
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p

	c.Dietary.Restrictions = make([]Restriction, len(p.Dietary.Restrictions))
	for i, r := range p.Dietary.Restrictions {
		if r.Since != nil {
			since := *r.Since
			r.Since = &since
		}
		c.Dietary.Restrictions[i] = r
	}
	c.Dietary.Allergies = cloneStrings(p.Dietary.Allergies)
	c.Dietary.MedicalConditions = cloneStrings(p.Dietary.MedicalConditions)

	c.Cuisine.Favorites = append([]Favorite(nil), p.Cuisine.Favorites...)
	c.Cuisine.Dislikes = cloneStrings(p.Cuisine.Dislikes)

	c.Location.PreferredAreas = cloneStrings(p.Location.PreferredAreas)
	c.DiningStyle.Ambiance = append([]Ambiance(nil), p.DiningStyle.Ambiance...)

	c.History.Visited = cloneStrings(p.History.Visited)
	c.History.Ratings = make(map[string]float64, len(p.History.Ratings))
	for k, v := range p.History.Ratings {
		c.History.Ratings[k] = v
	}

	if p.Memory != nil {
		c.Memory = make(map[string]map[string]MemoryEntry, len(p.Memory))
		for aspect, mem := range p.Memory {
			m := make(map[string]MemoryEntry, len(mem))
			for v, e := range mem {
				m[v] = e
			}
			c.Memory[aspect] = m
		}
	}
	return &c
}

// Restriction returns the dietary restriction of the given type, if any.
func (p *Profile) Restriction(kind string) (Restriction, bool) {
	for _, r := range p.Dietary.Restrictions {
		if r.Type == kind {
			return r, true
		}
	}
	return Restriction{}, false
}

// Summary flattens the profile into category → values, omitting empty categories.
func (p *Profile) Summary() map[string][]string {
	out := map[string][]string{}
	add := func(key string, values []string) {
		if len(values) > 0 {
			out[key] = values
		}
	}

	var restrictions []string
	for _, r := range p.Dietary.Restrictions {
		restrictions = append(restrictions, r.Type+" ("+string(r.Strictness)+")")
	}
	add("dietary", restrictions)
	add("allergies", p.Dietary.Allergies)
	if p.Dietary.Religious != ReligiousNone {
		add("religious", []string{string(p.Dietary.Religious)})
	}
	add("medical", p.Dietary.MedicalConditions)

	var favorites []string
	for _, f := range p.Cuisine.Favorites {
		favorites = append(favorites, f.Cuisine)
	}
	add("cuisine", favorites)
	add("dislikes", p.Cuisine.Dislikes)
	if p.Budget.Preferred != PriceNone {
		add("budget", []string{string(p.Budget.Preferred)})
	}
	add("location", p.Location.PreferredAreas)

	var ambiance []string
	for _, a := range p.DiningStyle.Ambiance {
		ambiance = append(ambiance, string(a))
	}
	add("ambiance", ambiance)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package profile

import (
	"math"
	"sort"
	"time"
)

type ActionKind string

const (
	ActionAdd       ActionKind = "add"
	ActionReinforce ActionKind = "reinforce"
	ActionWeaken    ActionKind = "weaken"
	ActionMerge     ActionKind = "merge"
	ActionIgnore    ActionKind = "ignore"
)

type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// Confidence reports the memory confidence a strength stands for. Unknown
// strengths count as medium.
func (s Strength) Confidence() float64 {
	switch s {
	case StrengthWeak:
		return 0.3
	case StrengthStrong:
		return 0.9
	default:
		return 0.6
	}
}

// Memory aspects an action may target.
const (
	AspectCuisine  = "cuisine"
	AspectDietary  = "dietary"
	AspectAllergy  = "allergy"
	AspectPrice    = "price"
	AspectLocation = "location"
	AspectAmbiance = "ambiance"
)

var aspects = map[string]bool{
	AspectCuisine:  true,
	AspectDietary:  true,
	AspectAllergy:  true,
	AspectPrice:    true,
	AspectLocation: true,
	AspectAmbiance: true,
}

const (
	weakenFactor  = 0.6
	weakenFloor   = 0.05
	favoriteFloor = weakenFloor * favoriteMaxScore
)

// MemoryEntry is the remembered confidence in one aspect value.
type MemoryEntry struct {
	Confidence float64   `json:"confidence"`
	Evidence   int       `json:"evidence"`
	LastSeen   time.Time `json:"last_seen"`
}

// MemoryAction is one suggested change to a profile's preference memory.
// Target names the existing value a merge folds Value into.
type MemoryAction struct {
	Action   ActionKind `json:"action" validate:"required,oneof=add reinforce weaken merge ignore"`
	Aspect   string     `json:"aspect" validate:"required"`
	Value    string     `json:"value" validate:"required"`
	Target   string     `json:"target,omitempty" validate:"required_if=Action merge"`
	Strength Strength   `json:"strength,omitempty" validate:"omitempty,oneof=weak medium strong"`
}

// ApplyActions runs actions against p's memory in order and returns the
// result. p is left untouched. Actions with a missing field, an unknown aspect
// or a value they cannot act on are skipped.
//
// Weakening a cuisine also scales the matching favorite's score, so a
// negated cuisine loses weight in scoring.
func ApplyActions(p *Profile, actions []MemoryAction, now time.Time) *Profile {
	next := p.Clone()
	if next.Memory == nil {
		next.Memory = map[string]map[string]MemoryEntry{}
	}

	for _, act := range actions {
		aspect := normalize(act.Aspect)
		value := normalize(act.Value)
		if act.Action == "" || value == "" || !aspects[aspect] {
			continue
		}
		mem := next.Memory[aspect]
		if mem == nil {
			mem = map[string]MemoryEntry{}
			next.Memory[aspect] = mem
		}
		strength := act.Strength.Confidence()

		switch act.Action {
		case ActionAdd:
			if _, ok := mem[value]; !ok {
				mem[value] = MemoryEntry{Confidence: strength, Evidence: 1, LastSeen: now}
			}

		case ActionReinforce:
			e, ok := mem[value]
			if !ok {
				continue
			}
			e.Confidence = (e.Confidence*float64(e.Evidence) + strength) / float64(e.Evidence+1)
			e.Evidence++
			e.LastSeen = now
			mem[value] = e

		case ActionWeaken:
			if e, ok := mem[value]; ok {
				e.Confidence = math.Max(weakenFloor, e.Confidence*weakenFactor)
				e.LastSeen = now
				mem[value] = e
			}
			if aspect == AspectCuisine {
				weakenFavorite(next, value)
			}

		case ActionMerge:
			target := normalize(act.Target)
			t, ok := mem[target]
			if target == "" || !ok {
				continue
			}
			if v, ok := mem[value]; ok && value != target {
				t.Confidence = math.Max(t.Confidence, v.Confidence)
				t.Evidence += v.Evidence
				delete(mem, value)
			}
			t.LastSeen = now
			mem[target] = t
		}
	}

	for aspect, mem := range next.Memory {
		if len(mem) == 0 {
			delete(next.Memory, aspect)
		}
	}
	if len(next.Memory) == 0 {
		next.Memory = nil
	}
	return next
}

func weakenFavorite(p *Profile, cuisine string) {
	for i := range p.Cuisine.Favorites {
		f := &p.Cuisine.Favorites[i]
		if f.Cuisine == cuisine {
			f.Score = math.Max(favoriteFloor, f.Score*weakenFactor)
			p.Cuisine.Favorites = rankFavorites(p.Cuisine.Favorites)
			return
		}
	}
}

// MemoryView lists the remembered values per aspect, most confident first.
// Aspects with nothing remembered are omitted.
func (p *Profile) MemoryView() map[string][]string {
	out := map[string][]string{}
	for aspect, mem := range p.Memory {
		if len(mem) == 0 {
			continue
		}
		values := make([]string, 0, len(mem))
		for v := range mem {
			values = append(values, v)
		}
		sort.Slice(values, func(i, j int) bool {
			ci, cj := mem[values[i]].Confidence, mem[values[j]].Confidence
			if ci != cj {
				return ci > cj
			}
			return values[i] < values[j]
		})
		out[aspect] = values
	}
	return out
}

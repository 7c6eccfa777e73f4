package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

var (
	ErrNotFound  = errors.New("not found")
	errNoProfile = errors.New("update returned no profile")
)

// Recommendation is a stored selection for a group.
type Recommendation struct {
	ID        uuid.UUID        `json:"id"`
	UserIDs   []string         `json:"user_ids"`
	Mode      fairness.Mode    `json:"mode"`
	Result    *fairness.Result `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}

// UpdateFn computes the next profile from the stored one. current is nil
// for a user with no profile yet. Returning an error aborts the update.
type UpdateFn func(current *profile.Profile) (*profile.Profile, error)

// Store persists profiles and recommendations. UpdateProfile serializes
// concurrent updates for the same user, so fn always sees the latest
// committed profile.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	UpdateProfile(ctx context.Context, userID string, fn UpdateFn) (*profile.Profile, error)
	DeleteProfile(ctx context.Context, userID string) error

	SaveRecommendation(ctx context.Context, rec *Recommendation) error
	GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error)

	Close() error
}

// prepare fills the generated fields of a new recommendation.
func (r *Recommendation) prepare(now time.Time) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

func (r *Recommendation) clone() *Recommendation {
	c := *r
	c.UserIDs = append([]string(nil), r.UserIDs...)
	c.Result = r.Result.Clone()
	return &c
}

func apply(fn UpdateFn, current *profile.Profile) (*profile.Profile, error) {
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, errNoProfile
	}
	return next, nil
}

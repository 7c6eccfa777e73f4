package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

// MemoryStore keeps everything in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu              sync.Mutex
	profiles        map[string]*profile.Profile
	recommendations map[uuid.UUID]*Recommendation
	now             func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:        make(map[string]*profile.Profile),
		recommendations: make(map[uuid.UUID]*Recommendation),
		now:             time.Now,
	}
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, userID string, fn UpdateFn) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *profile.Profile
	if p, ok := s.profiles[userID]; ok {
		current = p.Clone()
	}
	next, err := apply(fn, current)
	if err != nil {
		return nil, err
	}
	s.profiles[userID] = next.Clone()
	return next, nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, userID)
	return nil
}

func (s *MemoryStore) SaveRecommendation(_ context.Context, rec *Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.prepare(s.now())
	s.recommendations[rec.ID] = rec.clone()
	return nil
}

func (s *MemoryStore) GetRecommendation(_ context.Context, id uuid.UUID) (*Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recommendations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

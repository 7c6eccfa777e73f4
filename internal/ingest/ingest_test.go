package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
)

var t0 = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

type published struct {
	subject string
	data    interface{}
}

type mockHermes struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]func(string, []byte)
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}

func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = map[string]func(string, []byte){}
	}
	m.handlers[subject] = handler
	return nil
}

func (m *mockHermes) Close() {}

// failingStore rejects updates for one user.
type failingStore struct {
	store.Store
	failUser string
}

func (s *failingStore) UpdateProfile(ctx context.Context, userID string, fn store.UpdateFn) (*profile.Profile, error) {
	if userID == s.failUser {
		return nil, errors.New("database unavailable")
	}
	return s.Store.UpdateProfile(ctx, userID, fn)
}

func newTestConsumer(s store.Store) (*Consumer, *mockHermes) {
	h := &mockHermes{}
	c := New(s, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return t0 }
	return c, h
}

func TestGroupByUser(t *testing.T) {
	entries := []hermes.PreferenceEntry{
		{UserID: "bob", Preferences: profile.ExtractedPreferences{Cuisines: []string{"thai"}}},
		{UserID: "alice", Preferences: profile.ExtractedPreferences{Cuisines: []string{"sushi"}}},
		{UserID: "bob", Preferences: profile.ExtractedPreferences{Price: profile.PriceBudget}},
	}

	got := GroupByUser(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].UserID)
	require.Len(t, got[0].Preferences, 2)
	assert.Equal(t, []string{"thai"}, got[0].Preferences[0].Cuisines)
	assert.Equal(t, profile.PriceBudget, got[0].Preferences[1].Price)
	assert.Equal(t, "alice", got[1].UserID)

	assert.Empty(t, GroupByUser(nil))
}

func TestHandleBatchAppliesEntriesInOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c, h := newTestConsumer(s)

	err := c.HandleBatch(ctx, hermes.PreferenceBatchEvent{
		BatchID:   "b1",
		SessionID: "s1",
		Entries: []hermes.PreferenceEntry{
			{UserID: "alice", Preferences: profile.ExtractedPreferences{
				Dietary: []profile.Restriction{{Type: "vegetarian", Strictness: profile.StrictnessFlexible}},
			}},
			{UserID: "bob", Preferences: profile.ExtractedPreferences{Cuisines: []string{"bbq"}}},
			{UserID: "alice", Preferences: profile.ExtractedPreferences{
				Dietary: []profile.Restriction{{Type: "vegetarian", Strictness: profile.StrictnessStrict}},
			}},
		},
	})
	require.NoError(t, err)

	alice, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice.Dietary.Restrictions, 1)
	assert.Equal(t, profile.StrictnessStrict, alice.Dietary.Restrictions[0].Strictness)
	assert.Equal(t, 1, alice.History.TotalInteractions)

	bob, err := s.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bbq", bob.Cuisine.Favorites[0].Cuisine)

	require.Len(t, h.published, 2)
	assert.Equal(t, "consensus.profile.alice.updated", h.published[0].subject)
	evt, ok := h.published[0].data.(hermes.ProfileUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, "b1", evt.BatchID)
	assert.Equal(t, "ingest", evt.Source)
	assert.Equal(t, 1, evt.TotalInteractions)
	assert.Equal(t, "consensus.profile.bob.updated", h.published[1].subject)
}

func TestHandleBatchUpdatesOncePerUser(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c, _ := newTestConsumer(s)

	_, err := s.UpdateProfile(ctx, "u1", func(*profile.Profile) (*profile.Profile, error) {
		p := profile.New("u1", t0.Add(-28*24*time.Hour))
		p.Cuisine.Favorites = []profile.Favorite{
			{Cuisine: "thai", Score: 8, LastMentioned: t0.Add(-28 * 24 * time.Hour), Frequency: 2},
		}
		return p, nil
	})
	require.NoError(t, err)

	err = c.HandleBatch(ctx, hermes.PreferenceBatchEvent{
		BatchID: "b4",
		Entries: []hermes.PreferenceEntry{
			{UserID: "u1", Preferences: profile.ExtractedPreferences{Locations: []string{"soho"}}},
			{UserID: "u1", Preferences: profile.ExtractedPreferences{Price: profile.PriceBudget}},
			{UserID: "u1", Preferences: profile.ExtractedPreferences{Price: profile.PriceModerate}},
		},
	})
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.History.TotalInteractions)
	require.Len(t, p.Cuisine.Favorites, 1)
	// Four weeks stale decays once: 8 × 0.95⁴.
	assert.InDelta(t, 8*math.Pow(0.95, 4), p.Cuisine.Favorites[0].Score, 1e-9)
	assert.Equal(t, profile.PriceModerate, p.Budget.Preferred)
	assert.Equal(t, []string{"soho"}, p.Location.PreferredAreas)
}

func TestHandleBatchAppliesMemoryActions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c, _ := newTestConsumer(s)

	err := c.HandleBatch(ctx, hermes.PreferenceBatchEvent{
		BatchID: "b5",
		Entries: []hermes.PreferenceEntry{
			{
				UserID:      "u2",
				Preferences: profile.ExtractedPreferences{Cuisines: []string{"thai"}},
				Actions: []profile.MemoryAction{
					{Action: profile.ActionAdd, Aspect: profile.AspectCuisine, Value: "thai", Strength: profile.StrengthStrong},
				},
			},
			{
				UserID: "u2",
				Actions: []profile.MemoryAction{
					{Action: profile.ActionWeaken, Aspect: profile.AspectCuisine, Value: "thai"},
				},
			},
		},
	})
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, "u2")
	require.NoError(t, err)
	assert.InDelta(t, 0.9*0.6, p.Memory[profile.AspectCuisine]["thai"].Confidence, 1e-9)
	require.Len(t, p.Cuisine.Favorites, 1)
	assert.InDelta(t, 6*0.6, p.Cuisine.Favorites[0].Score, 1e-9)
}

func TestHandleBatchRejectsInvalid(t *testing.T) {
	c, h := newTestConsumer(store.NewMemoryStore())

	tests := []struct {
		name string
		evt  hermes.PreferenceBatchEvent
	}{
		{"missing batch id", hermes.PreferenceBatchEvent{Entries: []hermes.PreferenceEntry{{UserID: "a"}}}},
		{"no entries", hermes.PreferenceBatchEvent{BatchID: "b"}},
		{"bad user id", hermes.PreferenceBatchEvent{BatchID: "b", Entries: []hermes.PreferenceEntry{{UserID: "a.b"}}}},
		{"bad price", hermes.PreferenceBatchEvent{BatchID: "b", Entries: []hermes.PreferenceEntry{
			{UserID: "a", Preferences: profile.ExtractedPreferences{Price: "cheap"}},
		}}},
		{"bad action", hermes.PreferenceBatchEvent{BatchID: "b", Entries: []hermes.PreferenceEntry{
			{UserID: "a", Actions: []profile.MemoryAction{{Action: "forget", Aspect: "cuisine", Value: "thai"}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.HandleBatch(context.Background(), tt.evt)
			assert.ErrorIs(t, err, ErrInvalidBatch)
		})
	}
	assert.Empty(t, h.published)
}

func TestHandleBatchContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryStore()
	c, h := newTestConsumer(&failingStore{Store: inner, failUser: "alice"})

	err := c.HandleBatch(ctx, hermes.PreferenceBatchEvent{
		BatchID: "b2",
		Entries: []hermes.PreferenceEntry{
			{UserID: "alice", Preferences: profile.ExtractedPreferences{Cuisines: []string{"thai"}}},
			{UserID: "bob", Preferences: profile.ExtractedPreferences{Cuisines: []string{"thai"}}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update alice")

	_, err = inner.GetProfile(ctx, "bob")
	assert.NoError(t, err)
	require.Len(t, h.published, 1)
	assert.Equal(t, "consensus.profile.bob.updated", h.published[0].subject)
}

func TestSubscriptionDecodesMessages(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c, h := newTestConsumer(s)
	require.NoError(t, c.SetupSubscriptions())

	handler := h.handlers[hermes.SubjectPreferencesExtracted]
	require.NotNil(t, handler)

	handler(hermes.SubjectPreferencesExtracted, []byte(`{
		"batch_id": "b3",
		"entries": [{"user_id": "carol", "preferences": {"cuisines": ["italian"], "price": "$$", "negations": ["spicy"]}}]
	}`))
	handler(hermes.SubjectPreferencesExtracted, []byte(`not json`))

	carol, err := s.GetProfile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, profile.PriceModerate, carol.Budget.Preferred)
	assert.Equal(t, "italian", carol.Cuisine.Favorites[0].Cuisine)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c, _ := newTestConsumer(store.NewMemoryStore())
	assert.ErrorIs(t, c.HandleMessage(context.Background(), []byte("{")), ErrInvalidBatch)
}

func TestSetupSubscriptionsWithoutHermes(t *testing.T) {
	c := New(store.NewMemoryStore(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, c.SetupSubscriptions())
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/metrics"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
	"github.com/MikeSquared-Agency/Consensus/internal/validation"
)

type ProfilesHandler struct {
	store  store.Store
	hermes hermes.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewProfilesHandler(s store.Store, h hermes.Client, logger *slog.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		store:  s,
		hermes: h,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SummaryResponse is the flattened view of what is known about a user.
type SummaryResponse struct {
	UserID            string              `json:"user_id"`
	Summary           map[string][]string `json:"summary"`
	Memory            map[string][]string `json:"memory,omitempty"`
	Confidence        profile.Confidence  `json:"confidence"`
	TotalInteractions int                 `json:"total_interactions"`
	LastUpdated       time.Time           `json:"last_updated"`
}

// userID reads and checks the path parameter, writing a 400 when it is unusable.
func (h *ProfilesHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "user_id")
	if err := validation.UserID(id); err != nil {
		writeError(w, r, h.logger, err)
		return "", false
	}
	return id, true
}

// GET /api/v1/profiles/{user_id}
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/v1/profiles/{user_id}/summary
func (h *ProfilesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		UserID:            p.UserID,
		Summary:           p.Summary(),
		Memory:            p.MemoryView(),
		Confidence:        p.Confidence,
		TotalInteractions: p.History.TotalInteractions,
		LastUpdated:       p.History.LastUpdated,
	})
}

// UpdatePreferences merges extracted preferences into the user's profile,
// creating it on first use.
// POST /api/v1/profiles/{user_id}/preferences
func (h *ProfilesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var prefs profile.ExtractedPreferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validation.Struct(&prefs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.now()
	p, err := h.store.UpdateProfile(r.Context(), id, func(current *profile.Profile) (*profile.Profile, error) {
		if current == nil {
			current = profile.New(id, now)
		}
		return profile.Update(current, prefs, now), nil
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	metrics.ProfileUpdates.WithLabelValues(metrics.SourceAPI).Inc()

	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectProfileUpdated(id), hermes.ProfileUpdatedEvent{
			UserID:            id,
			Source:            metrics.SourceAPI,
			TotalInteractions: p.History.TotalInteractions,
			Confidence:        p.Confidence,
			Timestamp:         now,
		})
	}
	writeJSON(w, http.StatusOK, p)
}

// ActionsRequest carries memory actions suggested for one user.
type ActionsRequest struct {
	Actions []profile.MemoryAction `json:"actions" validate:"required,min=1,max=50,dive"`
}

// ApplyActions runs memory actions against the user's profile, creating it
// on first use. Actions do not count as an interaction.
// POST /api/v1/profiles/{user_id}/actions
func (h *ProfilesHandler) ApplyActions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req ActionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.now()
	p, err := h.store.UpdateProfile(r.Context(), id, func(current *profile.Profile) (*profile.Profile, error) {
		if current == nil {
			current = profile.New(id, now)
		}
		return profile.ApplyActions(current, req.Actions, now), nil
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	metrics.ProfileUpdates.WithLabelValues(metrics.SourceAPI).Inc()

	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectProfileUpdated(id), hermes.ProfileUpdatedEvent{
			UserID:            id,
			Source:            metrics.SourceAPI,
			TotalInteractions: p.History.TotalInteractions,
			Confidence:        p.Confidence,
			Timestamp:         now,
		})
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /api/v1/profiles/{user_id}
func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProfile(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectProfileDeleted(id), hermes.ProfileDeletedEvent{
			UserID:    id,
			Timestamp: h.now(),
		})
	}
	h.logger.Info("profile deleted", "user_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "user_id": id})
}

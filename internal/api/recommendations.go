package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Consensus/internal/constraints"
	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/metrics"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
	"github.com/MikeSquared-Agency/Consensus/internal/validation"
)

type RecommendationsHandler struct {
	store         store.Store
	hermes        hermes.Client
	selector      *fairness.Selector
	defaultMode   fairness.Mode
	maxCandidates int
	logger        *slog.Logger
	now           func() time.Time
}

func NewRecommendationsHandler(s store.Store, h hermes.Client, sel *fairness.Selector, defaultMode fairness.Mode, maxCandidates int, logger *slog.Logger) *RecommendationsHandler {
	if defaultMode == "" {
		defaultMode = fairness.ModeBalanced
	}
	return &RecommendationsHandler{
		store:         s,
		hermes:        h,
		selector:      sel,
		defaultMode:   defaultMode,
		maxCandidates: maxCandidates,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RecommendationRequest asks for one restaurant for a group. Empty user or
// candidate lists pass validation and are rejected by the selector.
type RecommendationRequest struct {
	UserIDs    []string                 `json:"user_ids" validate:"max=50,dive,subjecttoken"`
	Candidates []constraints.Restaurant `json:"candidates" validate:"max=200,dive"`
	Mode       string                   `json:"mode,omitempty"`
}

// Create selects a restaurant for the group and stores the outcome.
// POST /api/v1/recommendations
func (h *RecommendationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	mode := h.defaultMode
	if req.Mode != "" {
		m, err := fairness.ParseMode(req.Mode)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		mode = m
	}

	userIDs := dedupe(req.UserIDs)
	profiles, err := h.loadProfiles(r.Context(), userIDs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	start := time.Now()
	pool := fairness.RankCandidates(req.Candidates, h.maxCandidates)
	result, err := h.selector.Select(pool, profiles, mode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	metrics.CandidatesEvaluated.Observe(float64(len(pool)))
	metrics.GroupSize.Observe(float64(len(profiles)))
	metrics.Recommendations.WithLabelValues(string(mode)).Inc()

	rec := &store.Recommendation{
		UserIDs:   userIDs,
		Mode:      mode,
		Result:    result,
		CreatedAt: h.now(),
	}
	if err := h.store.SaveRecommendation(r.Context(), rec); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("save recommendation: %w", err))
		return
	}

	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectRecommendationSelected(rec.ID.String()), hermes.RecommendationSelectedEvent{
			RecommendationID:  rec.ID.String(),
			UserIDs:           rec.UserIDs,
			Mode:              mode,
			RestaurantID:      result.Restaurant.ID,
			RestaurantName:    result.Restaurant.Name,
			Metrics:           result.Metrics,
			IsParetoEfficient: result.IsParetoEfficient,
			Timestamp:         rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusCreated, rec)
}

// Get returns a stored recommendation with its explanation and breakdown.
// GET /api/v1/recommendations/{id}
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid recommendation id"})
		return
	}
	rec, err := h.store.GetRecommendation(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// loadProfiles fetches each member's profile. Members without one are
// scored from an empty profile, which is not persisted.
func (h *RecommendationsHandler) loadProfiles(ctx context.Context, userIDs []string) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		p, err := h.store.GetProfile(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			p, err = profile.New(id, h.now()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("load profile %s: %w", id, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

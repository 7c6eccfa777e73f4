// Package ingest applies extracted-preference batches from NATS to stored
// profiles.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/MikeSquared-Agency/Consensus/internal/hermes"
	"github.com/MikeSquared-Agency/Consensus/internal/metrics"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
	"github.com/MikeSquared-Agency/Consensus/internal/store"
	"github.com/MikeSquared-Agency/Consensus/internal/validation"
)

const handleTimeout = 10 * time.Second

var ErrInvalidBatch = errors.New("invalid preference batch")

// UserBatch is every entry of one batch that belongs to a single user, in
// the order they arrived.
type UserBatch struct {
	UserID      string
	Preferences []profile.ExtractedPreferences
	Actions     []profile.MemoryAction
}

type Consumer struct {
	store  store.Store
	hermes hermes.Client
	logger *slog.Logger
	now    func() time.Time
}

func New(s store.Store, h hermes.Client, logger *slog.Logger) *Consumer {
	return &Consumer{
		store:  s,
		hermes: h,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetupSubscriptions registers the batch handler. It is a no-op without a
// NATS client.
func (c *Consumer) SetupSubscriptions() error {
	if c.hermes == nil {
		return nil
	}
	return c.hermes.Subscribe(hermes.SubjectPreferencesExtracted, func(_ string, data []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := c.HandleMessage(ctx, data); err != nil {
			c.logger.Warn("preference batch not fully applied", "error", err)
		}
	})
}

// HandleMessage decodes and applies one raw batch.
func (c *Consumer) HandleMessage(ctx context.Context, data []byte) error {
	var evt hermes.PreferenceBatchEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		metrics.IngestBatches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return c.HandleBatch(ctx, evt)
}

// HandleBatch validates evt and applies each user's merged entries as one
// profile update. A failure for one user does not stop the others.
func (c *Consumer) HandleBatch(ctx context.Context, evt hermes.PreferenceBatchEvent) error {
	if err := validation.Struct(&evt); err != nil {
		metrics.IngestBatches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}

	var errs []error
	for _, ub := range GroupByUser(evt.Entries) {
		if err := c.applyUser(ctx, evt.BatchID, ub); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		metrics.IngestBatches.WithLabelValues(metrics.OutcomeFailed).Inc()
		return errors.Join(errs...)
	}
	metrics.IngestBatches.WithLabelValues(metrics.OutcomeApplied).Inc()
	c.logger.Info("preference batch applied",
		"batch_id", evt.BatchID,
		"session_id", evt.SessionID,
		"entries", len(evt.Entries),
	)
	return nil
}

func (c *Consumer) applyUser(ctx context.Context, batchID string, ub UserBatch) error {
	now := c.now()
	merged := profile.Merge(ub.Preferences...)
	p, err := c.store.UpdateProfile(ctx, ub.UserID, func(current *profile.Profile) (*profile.Profile, error) {
		if current == nil {
			current = profile.New(ub.UserID, now)
		}
		next := profile.Update(current, merged, now)
		if len(ub.Actions) > 0 {
			next = profile.ApplyActions(next, ub.Actions, now)
		}
		return next, nil
	})
	if err != nil {
		c.logger.Error("failed to update profile", "user_id", ub.UserID, "batch_id", batchID, "error", err)
		return fmt.Errorf("update %s: %w", ub.UserID, err)
	}
	metrics.ProfileUpdates.WithLabelValues(metrics.SourceIngest).Inc()

	if c.hermes != nil {
		_ = c.hermes.Publish(hermes.SubjectProfileUpdated(ub.UserID), hermes.ProfileUpdatedEvent{
			UserID:            ub.UserID,
			Source:            metrics.SourceIngest,
			BatchID:           batchID,
			TotalInteractions: p.History.TotalInteractions,
			Confidence:        p.Confidence,
			Timestamp:         now,
		})
	}
	return nil
}

// GroupByUser combines entries per user. Users appear in order of their first
// entry and each user's entries keep their relative order.
func GroupByUser(entries []hermes.PreferenceEntry) []UserBatch {
	index := make(map[string]int)
	var out []UserBatch
	for _, e := range entries {
		i, ok := index[e.UserID]
		if !ok {
			i = len(out)
			index[e.UserID] = i
			out = append(out, UserBatch{UserID: e.UserID})
		}
		out[i].Preferences = append(out[i].Preferences, e.Preferences)
		out[i].Actions = append(out[i].Actions, e.Actions...)
	}
	return out
}

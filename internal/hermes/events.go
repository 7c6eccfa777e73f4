package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

// PreferenceBatchEvent is what the extraction service publishes after
// parsing a conversation. A user's entries are merged in order and applied
// as one update, followed by their memory actions.
type PreferenceBatchEvent struct {
	BatchID   string            `json:"batch_id" validate:"required"`
	SessionID string            `json:"session_id,omitempty"`
	Entries   []PreferenceEntry `json:"entries" validate:"required,min=1,dive"`
}

type PreferenceEntry struct {
	UserID      string                       `json:"user_id" validate:"required,subjecttoken"`
	Preferences profile.ExtractedPreferences `json:"preferences"`
	Actions     []profile.MemoryAction       `json:"actions,omitempty" validate:"omitempty,max=50,dive"`
}

type ProfileUpdatedEvent struct {
	UserID            string             `json:"user_id"`
	Source            string             `json:"source"`
	BatchID           string             `json:"batch_id,omitempty"`
	TotalInteractions int                `json:"total_interactions"`
	Confidence        profile.Confidence `json:"confidence"`
	Timestamp         time.Time          `json:"timestamp"`
}

type ProfileDeletedEvent struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type RecommendationSelectedEvent struct {
	RecommendationID  string           `json:"recommendation_id"`
	UserIDs           []string         `json:"user_ids"`
	Mode              fairness.Mode    `json:"mode"`
	RestaurantID      string           `json:"restaurant_id"`
	RestaurantName    string           `json:"restaurant_name"`
	Metrics           fairness.Metrics `json:"metrics"`
	IsParetoEfficient bool             `json:"is_pareto_efficient"`
	Timestamp         time.Time        `json:"timestamp"`
}

package hermes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "consensus.profile.alice.updated", SubjectProfileUpdated("alice"))
	assert.Equal(t, "consensus.profile.alice.deleted", SubjectProfileDeleted("alice"))
	assert.Equal(t, "consensus.recommendation.42.selected", SubjectRecommendationSelected("42"))
}

func TestStreamMaxAgeParses(t *testing.T) {
	d, err := time.ParseDuration(StreamMaxAge)
	assert.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)
}

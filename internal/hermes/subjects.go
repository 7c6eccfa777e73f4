package hermes

const (
	SubjectPreferencesExtracted = "consensus.preferences.extracted"

	QueueGroup = "consensus"

	StreamName   = "CONSENSUS_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectProfileUpdated(userID string) string { return "consensus.profile." + userID + ".updated" }
func SubjectProfileDeleted(userID string) string { return "consensus.profile." + userID + ".deleted" }

func SubjectRecommendationSelected(recID string) string {
	return "consensus.recommendation." + recID + ".selected"
}

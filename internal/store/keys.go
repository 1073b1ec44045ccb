package store

// Key namespace for everything this service owns in the local database.
// All components go through these prefixes so they cannot collide.
const (
	keyMain     = "state/main"
	keySettings = "settings"
	keyPerf     = "perf"

	// BackupPrefix namespaces full-state snapshots. The suffix is a
	// timestamp or a label ending in a timestamp.
	BackupPrefix = "backup/"

	// topicPrefix namespaces per-topic progress records, independent of
	// the main state blob so topic progress survives main-blob corruption.
	topicPrefix = "topic/"
)

func topicKey(topicID string) string {
	return topicPrefix + topicID
}

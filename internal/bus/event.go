package bus

import "time"

// Event kinds. Namespaces are the part up to and including the first dot.
const (
	// KindTelegramChanges carries a *telegram.Changes mapped from protocol updates.
	KindTelegramChanges = "telegram.changes"
	// KindAccountBatch carries a *drain.Batch produced by the drain pump.
	KindAccountBatch = "account.batch"
	// KindAccountRecorded carries the id of a batch the store has persisted.
	KindAccountRecorded = "account.recorded"
	// KindAccountRecordFailed carries the error from a failed batch write.
	KindAccountRecordFailed = "account.record_failed"
	// KindDaemonStatusChanged carries a status.StatusChange.
	KindDaemonStatusChanged = "daemon.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

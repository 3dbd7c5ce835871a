package store

import (
	"time"

	"github.com/matheus3301/tgp/internal/account"
)

// RecordedMessage is a delivered message together with the batch that carried it.
type RecordedMessage struct {
	account.Message
	BatchID string
}

// RecordedFailure is a rejected add-contact request as persisted.
type RecordedFailure struct {
	ID          int64
	BatchID     string
	PhoneNumber string
	Error       string
}

// BatchInfo summarizes one persisted drain batch.
type BatchInfo struct {
	ID             string
	DrainedAt      time.Time
	Messages       int
	UserUpdates    int
	UserActions    int
	FailedContacts int
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matheus3301/tgp/internal/account"
)

func upsertUser(ctx context.Context, ex execer, u *account.User, now int64) error {
	statusAt := unixMilli(u.Status.WasOnline)
	if u.Status.Kind == account.StatusOnline {
		statusAt = unixMilli(u.Status.Expires)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO users (id, phone_number, first_name, last_name, status, status_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone_number = excluded.phone_number,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			status = excluded.status,
			status_at = excluded.status_at,
			updated_at = excluded.updated_at`,
		int64(u.ID), u.PhoneNumber, u.FirstName, u.LastName, u.Status.Kind.String(), statusAt, now)
	return err
}

// GetUser returns a persisted user, or nil when it was never recorded.
func (db *DB) GetUser(id account.UserID) (*account.User, error) {
	var (
		u        account.User
		rawID    int64
		status   string
		statusAt int64
	)
	err := db.QueryRow(`
		SELECT id, phone_number, first_name, last_name, status, status_at
		FROM users WHERE id = ?`, int64(id)).
		Scan(&rawID, &u.PhoneNumber, &u.FirstName, &u.LastName, &status, &statusAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.ID = account.UserID(rawID)
	u.Status.Kind = account.ParseStatusKind(status)
	switch u.Status.Kind {
	case account.StatusOnline:
		u.Status.Expires = fromUnixMilli(statusAt)
	case account.StatusOffline:
		u.Status.WasOnline = fromUnixMilli(statusAt)
	}
	return &u, nil
}

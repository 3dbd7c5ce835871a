package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/drain"
)

// SaveBatch persists a drain batch in one transaction. Saving the same batch
// twice is a no-op.
func (db *DB) SaveBatch(ctx context.Context, b *drain.Batch) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO drain_batches (id, drained_at, messages, user_updates, user_actions, failed_contacts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		b.ID, unixMilli(b.DrainedAt), b.MessageCount(), len(b.UserUpdates), len(b.UserActions), len(b.FailedContacts))
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Rollback()
	}

	now := time.Now().UnixMilli()
	for i := range b.Users {
		if err = upsertUser(ctx, tx, &b.Users[i], now); err != nil {
			return fmt.Errorf("upsert user %d: %w", b.Users[i].ID, err)
		}
	}
	for i := range b.Chats {
		if err = upsertChat(ctx, tx, &b.Chats[i], now); err != nil {
			return fmt.Errorf("upsert chat %d: %w", b.Chats[i].ID, err)
		}
	}
	for i := range b.PrivateChats {
		pc := &b.PrivateChats[i]
		if err = upsertUser(ctx, tx, &pc.User, now); err != nil {
			return fmt.Errorf("upsert user %d: %w", pc.User.ID, err)
		}
		if err = upsertChat(ctx, tx, &pc.Chat, now); err != nil {
			return fmt.Errorf("upsert chat %d: %w", pc.Chat.ID, err)
		}
	}
	for _, unread := range b.UnreadChats {
		for i := range unread.Messages {
			if err = upsertMessage(ctx, tx, &unread.Messages[i], b.ID); err != nil {
				return fmt.Errorf("upsert message %d/%d: %w", unread.ChatID, unread.Messages[i].ID, err)
			}
		}
	}
	for _, fc := range b.FailedContacts {
		msg := ""
		if fc.Err != nil {
			msg = fc.Err.Error()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO failed_contacts (batch_id, phone_number, error) VALUES (?, ?, ?)`,
			b.ID, fc.PhoneNumber, msg); err != nil {
			return fmt.Errorf("insert failed contact: %w", err)
		}
	}
	if err = replaceContactsWithoutChat(ctx, tx, b.ContactsWithoutChat); err != nil {
		return err
	}

	return tx.Commit()
}

// replaceContactsWithoutChat swaps the stored snapshot for ids.
func replaceContactsWithoutChat(ctx context.Context, tx *sql.Tx, ids []account.UserID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts_without_chat`); err != nil {
		return fmt.Errorf("clear contacts without chat: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contacts_without_chat (position, user_id) VALUES (?, ?)`, i, int64(id)); err != nil {
			return fmt.Errorf("insert contact without chat: %w", err)
		}
	}
	return nil
}

// ContactsWithoutChat returns the most recently recorded snapshot, in order.
func (db *DB) ContactsWithoutChat() ([]account.UserID, error) {
	rows, err := db.Query(`SELECT user_id FROM contacts_without_chat ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []account.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, account.UserID(id))
	}
	return ids, rows.Err()
}

// ListFailedContacts returns recorded failures, oldest first.
func (db *DB) ListFailedContacts(limit int) ([]RecordedFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, batch_id, phone_number, error
		FROM failed_contacts
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RecordedFailure
	for rows.Next() {
		var f RecordedFailure
		if err := rows.Scan(&f.ID, &f.BatchID, &f.PhoneNumber, &f.Error); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListBatches returns the most recent batches, newest first.
func (db *DB) ListBatches(limit int) ([]BatchInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, drained_at, messages, user_updates, user_actions, failed_contacts
		FROM drain_batches
		ORDER BY drained_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []BatchInfo
	for rows.Next() {
		var (
			bi BatchInfo
			at int64
		)
		if err := rows.Scan(&bi.ID, &at, &bi.Messages, &bi.UserUpdates, &bi.UserActions, &bi.FailedContacts); err != nil {
			return nil, err
		}
		bi.DrainedAt = fromUnixMilli(at)
		out = append(out, bi)
	}
	return out, rows.Err()
}

// BatchCount returns the number of persisted batches.
func (db *DB) BatchCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM drain_batches`).Scan(&n)
	return n, err
}

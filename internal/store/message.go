package store

import (
	"context"
	"time"

	"github.com/matheus3301/tgp/internal/account"
)

func upsertMessage(ctx context.Context, ex execer, m *account.Message, batchID string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO messages (chat_id, msg_id, sender_id, body, outgoing, date, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			body = excluded.body,
			batch_id = excluded.batch_id`,
		int64(m.ChatID), m.ID, int64(m.SenderID), m.Text, m.Outgoing, unixMilli(m.Date), batchID)
	return err
}

// ListMessages returns recorded messages for a chat using keyset pagination by date.
func (db *DB) ListMessages(chatID account.ChatID, beforeTs int64, limit int) ([]RecordedMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT chat_id, msg_id, sender_id, body, outgoing, date, batch_id
		FROM messages
		WHERE chat_id = ? AND date < ?
		ORDER BY date DESC, msg_id DESC
		LIMIT ?`, int64(chatID), beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []RecordedMessage
	for rows.Next() {
		var (
			m            RecordedMessage
			chat, sender int64
			date         int64
		)
		if err := rows.Scan(&chat, &m.ID, &sender, &m.Text, &m.Outgoing, &date, &m.BatchID); err != nil {
			return nil, err
		}
		m.ChatID = account.ChatID(chat)
		m.SenderID = account.UserID(sender)
		m.Date = fromUnixMilli(date)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SearchMessages returns recorded messages whose body contains query, newest first.
// An empty chatID searches every chat.
func (db *DB) SearchMessages(query string, chatID account.ChatID, limit int) ([]RecordedMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := db.Query(`
		SELECT chat_id, msg_id, sender_id, body, outgoing, date, batch_id
		FROM messages
		WHERE body LIKE ? ESCAPE '\' AND (? = 0 OR chat_id = ?)
		ORDER BY date DESC, msg_id DESC
		LIMIT ?`, pattern, int64(chatID), int64(chatID), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []RecordedMessage
	for rows.Next() {
		var (
			m            RecordedMessage
			chat, sender int64
			date         int64
		)
		if err := rows.Scan(&chat, &m.ID, &sender, &m.Text, &m.Outgoing, &date, &m.BatchID); err != nil {
			return nil, err
		}
		m.ChatID = account.ChatID(chat)
		m.SenderID = account.UserID(sender)
		m.Date = fromUnixMilli(date)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

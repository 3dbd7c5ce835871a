package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matheus3301/tgp/internal/account"
)

func upsertChat(ctx context.Context, ex execer, c *account.Chat, now int64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO chats (id, title, kind, user_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			kind = excluded.kind,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at`,
		int64(c.ID), c.Title, c.Type.Kind.String(), int64(c.Type.UserID), now)
	return err
}

// GetChat returns a persisted chat, or nil when it was never recorded.
func (db *DB) GetChat(id account.ChatID) (*account.Chat, error) {
	row := db.QueryRow(`SELECT id, title, kind, user_id FROM chats WHERE id = ?`, int64(id))
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChats returns chats ordered by most recent update.
func (db *DB) ListChats(limit, offset int) ([]account.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, kind, user_id
		FROM chats
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []account.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*account.Chat, error) {
	var (
		c      account.Chat
		id     int64
		kind   string
		userID int64
	)
	if err := row.Scan(&id, &c.Title, &kind, &userID); err != nil {
		return nil, err
	}
	k, ok := account.ParseChatKind(kind)
	if !ok {
		return nil, fmt.Errorf("chat %d: unknown kind %q", id, kind)
	}
	c.ID = account.ChatID(id)
	c.Type = account.ChatType{Kind: k, UserID: account.UserID(userID)}
	return &c, nil
}

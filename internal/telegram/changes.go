package telegram

import "github.com/matheus3301/tgp/internal/account"

// StatusChange is a presence update for one user.
type StatusChange struct {
	UserID account.UserID
	Status account.Status
}

// Changes is the account-state delta carried by one protocol object.
// Entities come first so updates referencing them resolve when applied in order.
type Changes struct {
	Users []account.User
	Chats []account.Chat
	// PeerChats are private chats implied by message peers. They are only
	// created when missing and never replace a known chat.
	PeerChats []account.Chat
	Contacts  []account.UserID
	// ActiveChats replaces the active chat list when non-nil.
	ActiveChats   []account.ChatID
	StatusChanges []StatusChange
	Messages      []account.Message
	Typing        []account.UserAction
}

// Empty reports whether applying c would change nothing.
func (c *Changes) Empty() bool {
	return c == nil || (len(c.Users) == 0 &&
		len(c.Chats) == 0 &&
		len(c.PeerChats) == 0 &&
		len(c.Contacts) == 0 &&
		c.ActiveChats == nil &&
		len(c.StatusChanges) == 0 &&
		len(c.Messages) == 0 &&
		len(c.Typing) == 0)
}

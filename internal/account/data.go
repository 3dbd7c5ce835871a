package account

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownUser is returned when an update references a user that was never ingested.
var ErrUnknownUser = errors.New("unknown user")

// Data is the in-memory state of one account: entity tables, pending
// update queues and request correlation tables.
//
// All tables share one mutex so cross-table changes (a private chat
// resolving a chat-less contact) are observed atomically.
type Data struct {
	mu     sync.Mutex
	logger *zap.Logger

	users     map[UserID]User
	userOrder []UserID
	chats     map[ChatID]Chat
	chatOrder []ChatID

	activeChats         []ChatID
	contactsWithoutChat []UserID

	newMessages     []Message
	userUpdates     []UserUpdate
	userActions     []UserAction
	contactRequests []ContactRequest
	failedContacts  []FailedContact
}

// New creates an empty account state. A nil logger disables logging.
func New(logger *zap.Logger) *Data {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Data{
		logger: logger,
		users:  make(map[UserID]User),
		chats:  make(map[ChatID]Chat),
	}
}

// UpsertUser replaces the record for user.ID and marks the user as updated.
func (d *Data) UpsertUser(user *User) {
	if user == nil {
		d.logger.Warn("upsert user with nil user info")
		return
	}
	d.logger.Debug("update user",
		zap.Int64("user_id", int64(user.ID)),
		zap.String("phone", user.PhoneNumber),
		zap.String("first_name", user.FirstName),
		zap.String("last_name", user.LastName))

	d.mu.Lock()
	defer d.mu.Unlock()

	d.userUpdate(user.ID)
	if _, ok := d.users[user.ID]; !ok {
		d.userOrder = append(d.userOrder, user.ID)
	}
	d.users[user.ID] = *user
}

// UpsertChat replaces the record for chat.ID. A private chat resolves its
// user out of the contacts-without-chat list.
func (d *Data) UpsertChat(chat *Chat) {
	if chat == nil {
		d.logger.Warn("upsert chat with nil chat info")
		return
	}
	d.logger.Debug("add chat", zap.Int64("chat_id", int64(chat.ID)), zap.String("title", chat.Title))

	d.mu.Lock()
	defer d.mu.Unlock()

	if userID, ok := chat.PrivateUserID(); ok && slices.Contains(d.contactsWithoutChat, userID) {
		d.logger.Debug("private chat now known for contact",
			zap.Int64("chat_id", int64(chat.ID)),
			zap.Int64("user_id", int64(userID)))
		d.contactsWithoutChat = slices.DeleteFunc(d.contactsWithoutChat, func(id UserID) bool {
			return id == userID
		})
	}

	if _, ok := d.chats[chat.ID]; !ok {
		d.chatOrder = append(d.chatOrder, chat.ID)
	}
	d.chats[chat.ID] = *chat
}

// SetContacts appends every contact that has no known private chat.
// Existing entries are kept and the input is not deduplicated against them.
func (d *Data) SetContacts(userIDs []UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, userID := range userIDs {
		if _, ok := d.privateChatByUserID(userID); ok {
			continue
		}
		d.logger.Debug("private chat not yet known for contact", zap.Int64("user_id", int64(userID)))
		d.contactsWithoutChat = append(d.contactsWithoutChat, userID)
	}
}

// SetActiveChats replaces the active chat list.
func (d *Data) SetActiveChats(chatIDs []ChatID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeChats = slices.Clone(chatIDs)
}

// GetContactsWithoutChat returns a copy of the contacts that have no known private chat.
func (d *Data) GetContactsWithoutChat() []UserID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.contactsWithoutChat)
}

// GetChat returns the chat with the given id.
func (d *Data) GetChat(chatID ChatID) (Chat, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chat, ok := d.chats[chatID]
	return chat, ok
}

// GetUser returns the user with the given id.
func (d *Data) GetUser(userID UserID) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	return user, ok
}

// GetPrivateChatByUserID returns the first ingested private chat with userID.
func (d *Data) GetPrivateChatByUserID(userID UserID) (Chat, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.privateChatByUserID(userID)
}

// GetUserByPhone returns the first ingested user whose phone number equals
// phoneNumber, ignoring a leading '+' on either side.
func (d *Data) GetUserByPhone(phoneNumber string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.userOrder {
		if user := d.users[id]; PhoneEqual(user.PhoneNumber, phoneNumber) {
			return user, true
		}
	}
	return User{}, false
}

// PhoneEqual compares phone numbers exactly after stripping one leading '+' from each.
func PhoneEqual(a, b string) bool {
	return strings.TrimPrefix(a, "+") == strings.TrimPrefix(b, "+")
}

// RecordUserStatusChange sets the status of a known user and flags the change.
func (d *Data) RecordUserStatusChange(userID UserID, status Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[userID]
	if !ok {
		d.logger.Warn("user status update for unknown user", zap.Int64("user_id", int64(userID)))
		return ErrUnknownUser
	}
	user.Status = status
	d.users[userID] = user
	d.userUpdate(userID).Updates.Status = true
	return nil
}

// GetPrivateChats resolves the active chat list into private chats with
// their users, in list order. Unknown chats and users are skipped.
func (d *Data) GetPrivateChats() []PrivateChat {
	d.mu.Lock()
	defer d.mu.Unlock()

	var chats []PrivateChat
	for _, chatID := range d.activeChats {
		chat, ok := d.chats[chatID]
		if !ok {
			d.logger.Warn("active chat list references unknown chat", zap.Int64("chat_id", int64(chatID)))
			continue
		}
		userID, ok := chat.PrivateUserID()
		if !ok {
			continue
		}
		user, ok := d.users[userID]
		if !ok {
			d.logger.Warn("private chat with unknown user",
				zap.Int64("chat_id", int64(chatID)),
				zap.Int64("user_id", int64(userID)))
			continue
		}
		chats = append(chats, PrivateChat{Chat: chat, User: user})
	}
	return chats
}

// Stats returns the current table sizes.
func (d *Data) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Users:               len(d.users),
		Chats:               len(d.chats),
		ActiveChats:         len(d.activeChats),
		ContactsWithoutChat: len(d.contactsWithoutChat),
		PendingMessages:     len(d.newMessages),
		UserUpdates:         len(d.userUpdates),
		UserActions:         len(d.userActions),
		ContactRequests:     len(d.contactRequests),
		FailedContacts:      len(d.failedContacts),
	}
}

func (d *Data) privateChatByUserID(userID UserID) (Chat, bool) {
	for _, id := range d.chatOrder {
		chat := d.chats[id]
		if peer, ok := chat.PrivateUserID(); ok && peer == userID {
			return chat, true
		}
	}
	return Chat{}, false
}

// userUpdate returns the accumulator for userID, creating it if absent.
// The returned pointer is only valid until the next append.
func (d *Data) userUpdate(userID UserID) *UserUpdate {
	for i := range d.userUpdates {
		if d.userUpdates[i].UserID == userID {
			return &d.userUpdates[i]
		}
	}
	d.userUpdates = append(d.userUpdates, UserUpdate{UserID: userID})
	return &d.userUpdates[len(d.userUpdates)-1]
}

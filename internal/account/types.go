package account

import "time"

// UserID is the protocol-assigned user identity.
type UserID int64

// ChatID is the protocol-assigned chat identity.
type ChatID int64

// StatusKind enumerates user presence states.
type StatusKind int

const (
	StatusEmpty StatusKind = iota
	StatusOnline
	StatusOffline
	StatusRecently
	StatusLastWeek
	StatusLastMonth
)

func (k StatusKind) String() string {
	switch k {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	case StatusRecently:
		return "recently"
	case StatusLastWeek:
		return "last_week"
	case StatusLastMonth:
		return "last_month"
	default:
		return "empty"
	}
}

// ParseStatusKind is the inverse of StatusKind.String. Unknown names map to StatusEmpty.
func ParseStatusKind(s string) StatusKind {
	for k := StatusOnline; k <= StatusLastMonth; k++ {
		if k.String() == s {
			return k
		}
	}
	return StatusEmpty
}

// Status is a user's presence. Expires is set for online users, WasOnline for offline ones.
type Status struct {
	Kind      StatusKind
	Expires   time.Time
	WasOnline time.Time
}

// User is a cached user record.
type User struct {
	ID          UserID
	PhoneNumber string
	FirstName   string
	LastName    string
	Status      Status
}

// ChatKind enumerates chat types.
type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatBasicGroup
	ChatSupergroup
	ChatChannel
)

func (k ChatKind) String() string {
	switch k {
	case ChatPrivate:
		return "private"
	case ChatBasicGroup:
		return "basic_group"
	case ChatSupergroup:
		return "supergroup"
	case ChatChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// ParseChatKind is the inverse of ChatKind.String.
func ParseChatKind(s string) (ChatKind, bool) {
	for k := ChatPrivate; k <= ChatChannel; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// ChatType tags a chat. UserID is only meaningful for private chats.
type ChatType struct {
	Kind   ChatKind
	UserID UserID
}

// PrivateChatType returns the type of a one-to-one chat with userID.
func PrivateChatType(userID UserID) ChatType {
	return ChatType{Kind: ChatPrivate, UserID: userID}
}

// Chat is a cached chat record.
type Chat struct {
	ID    ChatID
	Title string
	Type  ChatType
}

// PrivateUserID returns the peer of a private chat.
func (c Chat) PrivateUserID() (UserID, bool) {
	if c.Type.Kind != ChatPrivate {
		return 0, false
	}
	return c.Type.UserID, true
}

// Message is a received message waiting to be delivered to the application.
type Message struct {
	ID       int64
	ChatID   ChatID
	SenderID UserID
	Text     string
	Date     time.Time
	Outgoing bool
}

// UserUpdates flags which user attributes changed since the last drain.
type UserUpdates struct {
	Status bool
}

// Merge ORs other into u.
func (u *UserUpdates) Merge(other UserUpdates) {
	u.Status = u.Status || other.Status
}

// UserUpdate accumulates changes for one user.
type UserUpdate struct {
	UserID  UserID
	Updates UserUpdates
}

// UserAction is the latest typing state of a user.
type UserAction struct {
	UserID   UserID
	IsTyping bool
}

// ContactRequest is a pending add-contact request.
type ContactRequest struct {
	RequestID   uint64
	PhoneNumber string
	UserID      UserID
}

// FailedContact is an add-contact attempt the backend rejected.
type FailedContact struct {
	PhoneNumber string
	Err         error
}

// PrivateChat pairs an active private chat with its resolved user.
type PrivateChat struct {
	Chat Chat
	User User
}

// UnreadChat groups pending messages of one chat in arrival order.
type UnreadChat struct {
	ChatID   ChatID
	Messages []Message
}

// Stats reports table sizes.
type Stats struct {
	Users               int
	Chats               int
	ActiveChats         int
	ContactsWithoutChat int
	PendingMessages     int
	UserUpdates         int
	UserActions         int
	ContactRequests     int
	FailedContacts      int
}

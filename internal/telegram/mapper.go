package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/matheus3301/tgp/internal/account"
)

// channelChatIDOffset follows the tdlib chat id layout: supergroups and
// channels live below -1e12.
const channelChatIDOffset = 1_000_000_000_000

// PrivateChatID returns the chat id of the one-to-one chat with a user.
func PrivateChatID(userID int64) account.ChatID {
	return account.ChatID(userID)
}

// BasicGroupChatID returns the chat id of a basic group.
func BasicGroupChatID(chatID int64) account.ChatID {
	return account.ChatID(-chatID)
}

// ChannelChatID returns the chat id of a supergroup or channel.
func ChannelChatID(channelID int64) account.ChatID {
	return account.ChatID(-(channelChatIDOffset + channelID))
}

// PeerChatID maps a message peer to its chat id.
func PeerChatID(peer tg.PeerClass) (account.ChatID, bool) {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return PrivateChatID(typed.UserID), true
	case *tg.PeerChat:
		return BasicGroupChatID(typed.ChatID), true
	case *tg.PeerChannel:
		return ChannelChatID(typed.ChannelID), true
	default:
		return 0, false
	}
}

// MapUpdates converts one gotd updates container into account changes.
func MapUpdates(updates tg.UpdatesClass) (*Changes, error) {
	if updates == nil {
		return nil, fmt.Errorf("map updates: nil updates")
	}

	switch typed := updates.(type) {
	case *tg.Updates:
		return mapBatch(typed.Updates, typed.Users, typed.Chats), nil
	case *tg.UpdatesCombined:
		return mapBatch(typed.Updates, typed.Users, typed.Chats), nil
	case *tg.UpdateShort:
		return mapBatch([]tg.UpdateClass{typed.Update}, nil, nil), nil
	case *tg.UpdateShortMessage:
		msg := &tg.Message{
			ID:      typed.ID,
			Out:     typed.Out,
			PeerID:  &tg.PeerUser{UserID: typed.UserID},
			Date:    typed.Date,
			Message: typed.Message,
		}
		if !typed.Out {
			msg.SetFromID(&tg.PeerUser{UserID: typed.UserID})
		}
		return mapBatch([]tg.UpdateClass{&tg.UpdateNewMessage{Message: msg}}, nil, nil), nil
	case *tg.UpdateShortChatMessage:
		msg := &tg.Message{
			ID:      typed.ID,
			Out:     typed.Out,
			PeerID:  &tg.PeerChat{ChatID: typed.ChatID},
			Date:    typed.Date,
			Message: typed.Message,
		}
		msg.SetFromID(&tg.PeerUser{UserID: typed.FromID})
		return mapBatch([]tg.UpdateClass{&tg.UpdateNewMessage{Message: msg}}, nil, nil), nil
	case *tg.UpdatesTooLong:
		return &Changes{}, nil
	default:
		return nil, fmt.Errorf("map updates %s: unsupported container", updates.TypeName())
	}
}

// MapContacts converts a contacts.getContacts result.
func MapContacts(result tg.ContactsContactsClass) (*Changes, error) {
	if result == nil {
		return nil, fmt.Errorf("map contacts: nil result")
	}

	switch typed := result.(type) {
	case *tg.ContactsContacts:
		changes := &Changes{Users: mapUsers(typed.Users)}
		for _, contact := range typed.Contacts {
			changes.Contacts = append(changes.Contacts, account.UserID(contact.UserID))
		}
		return changes, nil
	case *tg.ContactsContactsNotModified:
		return &Changes{}, nil
	default:
		return nil, fmt.Errorf("map contacts %s: unsupported result", result.TypeName())
	}
}

// MapDialogs converts a messages.getDialogs result. Dialog order becomes
// the active chat list.
func MapDialogs(result tg.MessagesDialogsClass) (*Changes, error) {
	if result == nil {
		return nil, fmt.Errorf("map dialogs: nil result")
	}

	var (
		dialogs []tg.DialogClass
		users   []tg.UserClass
		chats   []tg.ChatClass
	)
	switch typed := result.(type) {
	case *tg.MessagesDialogs:
		dialogs, users, chats = typed.Dialogs, typed.Users, typed.Chats
	case *tg.MessagesDialogsSlice:
		dialogs, users, chats = typed.Dialogs, typed.Users, typed.Chats
	case *tg.MessagesDialogsNotModified:
		return &Changes{}, nil
	default:
		return nil, fmt.Errorf("map dialogs %s: unsupported result", result.TypeName())
	}

	usersByID := indexUsers(users)
	changes := &Changes{
		Users:       mapUsers(users),
		Chats:       mapChats(chats),
		ActiveChats: make([]account.ChatID, 0, len(dialogs)),
	}
	for _, dialog := range dialogs {
		d, ok := dialog.(*tg.Dialog)
		if !ok {
			continue
		}
		chatID, ok := PeerChatID(d.Peer)
		if !ok {
			continue
		}
		if peer, ok := d.Peer.(*tg.PeerUser); ok {
			changes.Chats = append(changes.Chats, privateChat(peer.UserID, usersByID))
		}
		changes.ActiveChats = append(changes.ActiveChats, chatID)
	}
	return changes, nil
}

func mapBatch(updates []tg.UpdateClass, users []tg.UserClass, chats []tg.ChatClass) *Changes {
	usersByID := indexUsers(users)
	changes := &Changes{
		Users: mapUsers(users),
		Chats: mapChats(chats),
	}

	for _, update := range updates {
		switch typed := update.(type) {
		case *tg.UpdateUserStatus:
			changes.StatusChanges = append(changes.StatusChanges, StatusChange{
				UserID: account.UserID(typed.UserID),
				Status: MapStatus(typed.Status),
			})
		case *tg.UpdateUserTyping:
			_, cancel := typed.Action.(*tg.SendMessageCancelAction)
			changes.Typing = append(changes.Typing, account.UserAction{
				UserID:   account.UserID(typed.UserID),
				IsTyping: !cancel,
			})
		case *tg.UpdateNewMessage:
			msg, ok := typed.Message.(*tg.Message)
			if !ok {
				continue
			}
			mapped, ok := mapMessage(msg)
			if !ok {
				continue
			}
			changes.Messages = append(changes.Messages, mapped)
			if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
				changes.PeerChats = append(changes.PeerChats, privateChat(peer.UserID, usersByID))
			}
		}
	}
	return changes
}

// MapUser converts a gotd user.
func MapUser(user *tg.User) account.User {
	return account.User{
		ID:          account.UserID(user.ID),
		PhoneNumber: user.Phone,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Status:      MapStatus(user.Status),
	}
}

// MapStatus converts a gotd user status. Unknown or absent statuses map to StatusEmpty.
func MapStatus(status tg.UserStatusClass) account.Status {
	switch typed := status.(type) {
	case *tg.UserStatusOnline:
		return account.Status{Kind: account.StatusOnline, Expires: unixTime(typed.Expires)}
	case *tg.UserStatusOffline:
		return account.Status{Kind: account.StatusOffline, WasOnline: unixTime(typed.WasOnline)}
	case *tg.UserStatusRecently:
		return account.Status{Kind: account.StatusRecently}
	case *tg.UserStatusLastWeek:
		return account.Status{Kind: account.StatusLastWeek}
	case *tg.UserStatusLastMonth:
		return account.Status{Kind: account.StatusLastMonth}
	default:
		return account.Status{Kind: account.StatusEmpty}
	}
}

func mapUsers(users []tg.UserClass) []account.User {
	var out []account.User
	for _, user := range users {
		if user == nil {
			continue
		}
		u, ok := user.AsNotEmpty()
		if !ok || u == nil {
			continue
		}
		out = append(out, MapUser(u))
	}
	return out
}

func indexUsers(users []tg.UserClass) map[int64]*tg.User {
	if len(users) == 0 {
		return nil
	}
	out := make(map[int64]*tg.User, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		if u, ok := user.AsNotEmpty(); ok && u != nil {
			out[u.ID] = u
		}
	}
	return out
}

func mapChats(chats []tg.ChatClass) []account.Chat {
	var out []account.Chat
	for _, chat := range chats {
		switch typed := chat.(type) {
		case *tg.Chat:
			out = append(out, account.Chat{
				ID:    BasicGroupChatID(typed.ID),
				Title: typed.Title,
				Type:  account.ChatType{Kind: account.ChatBasicGroup},
			})
		case *tg.ChatForbidden:
			out = append(out, account.Chat{
				ID:    BasicGroupChatID(typed.ID),
				Title: typed.Title,
				Type:  account.ChatType{Kind: account.ChatBasicGroup},
			})
		case *tg.Channel:
			out = append(out, account.Chat{
				ID:    ChannelChatID(typed.ID),
				Title: typed.Title,
				Type:  account.ChatType{Kind: channelKind(typed.Megagroup)},
			})
		case *tg.ChannelForbidden:
			out = append(out, account.Chat{
				ID:    ChannelChatID(typed.ID),
				Title: typed.Title,
				Type:  account.ChatType{Kind: channelKind(typed.Megagroup)},
			})
		}
	}
	return out
}

func channelKind(megagroup bool) account.ChatKind {
	if megagroup {
		return account.ChatSupergroup
	}
	return account.ChatChannel
}

func privateChat(userID int64, usersByID map[int64]*tg.User) account.Chat {
	chat := account.Chat{
		ID:   PrivateChatID(userID),
		Type: account.PrivateChatType(account.UserID(userID)),
	}
	if user, ok := usersByID[userID]; ok {
		chat.Title = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return chat
}

func mapMessage(msg *tg.Message) (account.Message, bool) {
	chatID, ok := PeerChatID(msg.PeerID)
	if !ok {
		return account.Message{}, false
	}
	out := account.Message{
		ID:       int64(msg.ID),
		ChatID:   chatID,
		Text:     msg.Message,
		Date:     unixTime(msg.Date),
		Outgoing: msg.Out,
	}
	if from, ok := msg.GetFromID(); ok {
		if peer, ok := from.(*tg.PeerUser); ok {
			out.SenderID = account.UserID(peer.UserID)
		}
	} else if peer, ok := msg.PeerID.(*tg.PeerUser); ok && !msg.Out {
		out.SenderID = account.UserID(peer.UserID)
	}
	return out, true
}

func unixTime(sec int) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

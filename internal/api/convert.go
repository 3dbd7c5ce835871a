package api

import (
	"fmt"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/drain"
	"github.com/matheus3301/tgp/internal/store"
	"google.golang.org/protobuf/types/known/structpb"
)

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func userValue(u account.User) map[string]any {
	v := map[string]any{
		"id":           int64(u.ID),
		"phone_number": u.PhoneNumber,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"status":       u.Status.Kind.String(),
	}
	if !u.Status.Expires.IsZero() {
		v["expires_ms"] = unixMs(u.Status.Expires)
	}
	if !u.Status.WasOnline.IsZero() {
		v["was_online_ms"] = unixMs(u.Status.WasOnline)
	}
	return v
}

func chatValue(c account.Chat) map[string]any {
	v := map[string]any{
		"id":    int64(c.ID),
		"title": c.Title,
		"kind":  c.Type.Kind.String(),
	}
	if userID, ok := c.PrivateUserID(); ok {
		v["user_id"] = int64(userID)
	}
	return v
}

func messageValue(m account.Message) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"chat_id":   int64(m.ChatID),
		"sender_id": int64(m.SenderID),
		"text":      m.Text,
		"date_ms":   unixMs(m.Date),
		"outgoing":  m.Outgoing,
	}
}

func recordedMessageValue(m store.RecordedMessage) map[string]any {
	v := messageValue(m.Message)
	v["batch_id"] = m.BatchID
	return v
}

func unreadChatValue(c account.UnreadChat) map[string]any {
	msgs := make([]any, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, messageValue(m))
	}
	return map[string]any{
		"chat_id":  int64(c.ChatID),
		"messages": msgs,
	}
}

func userUpdateValue(u account.UserUpdate) map[string]any {
	return map[string]any{
		"user_id": int64(u.UserID),
		"status":  u.Updates.Status,
	}
}

func userActionValue(a account.UserAction) map[string]any {
	return map[string]any{
		"user_id":   int64(a.UserID),
		"is_typing": a.IsTyping,
	}
}

func failedContactValue(f account.FailedContact) map[string]any {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return map[string]any{
		"phone_number": f.PhoneNumber,
		"error":        msg,
	}
}

func privateChatValue(pc account.PrivateChat) map[string]any {
	return map[string]any{
		"chat": chatValue(pc.Chat),
		"user": userValue(pc.User),
	}
}

func contactRequestValue(r account.ContactRequest) map[string]any {
	return map[string]any{
		"request_id":   r.RequestID,
		"phone_number": r.PhoneNumber,
		"user_id":      int64(r.UserID),
	}
}

func statsValue(s account.Stats) map[string]any {
	return map[string]any{
		"users":                 s.Users,
		"chats":                 s.Chats,
		"active_chats":          s.ActiveChats,
		"contacts_without_chat": s.ContactsWithoutChat,
		"pending_messages":      s.PendingMessages,
		"user_updates":          s.UserUpdates,
		"user_actions":          s.UserActions,
		"contact_requests":      s.ContactRequests,
		"failed_contacts":       s.FailedContacts,
	}
}

func batchValue(b *drain.Batch) map[string]any {
	return map[string]any{
		"batch_id":        b.ID,
		"drained_at_ms":   unixMs(b.DrainedAt),
		"chats":           len(b.UnreadChats),
		"messages":        b.MessageCount(),
		"user_updates":    len(b.UserUpdates),
		"user_actions":    len(b.UserActions),
		"failed_contacts": len(b.FailedContacts),
	}
}

func recordedFailureValue(f store.RecordedFailure) map[string]any {
	return map[string]any{
		"id":           f.ID,
		"batch_id":     f.BatchID,
		"phone_number": f.PhoneNumber,
		"error":        f.Error,
	}
}

func batchInfoValue(b store.BatchInfo) map[string]any {
	return map[string]any{
		"batch_id":        b.ID,
		"drained_at_ms":   unixMs(b.DrainedAt),
		"messages":        b.Messages,
		"user_updates":    b.UserUpdates,
		"user_actions":    b.UserActions,
		"failed_contacts": b.FailedContacts,
	}
}

// listOf converts items with fn into a ListValue of structs.
func listOf[T any](items []T, fn func(T) map[string]any) (*structpb.ListValue, error) {
	values := make([]any, 0, len(items))
	for _, it := range items {
		values = append(values, fn(it))
	}
	return structpb.NewList(values)
}

func numberField(s *structpb.Struct, key string) (int64, bool) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return int64(n.NumberValue), true
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func requireNumber(s *structpb.Struct, key string) (int64, error) {
	n, ok := numberField(s, key)
	if !ok {
		return 0, fmt.Errorf("missing numeric field %q", key)
	}
	return n, nil
}

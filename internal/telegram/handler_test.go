package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/matheus3301/tgp/internal/bus"
	"go.uber.org/zap"
)

func TestHandlerPublishesChanges(t *testing.T) {
	b := bus.New()
	h := NewHandler(b, zap.NewNop())

	ch, unsub := b.Subscribe("telegram.", 10)
	defer unsub()

	err := h.Handle(context.Background(), &tg.UpdateShort{
		Update: &tg.UpdateUserTyping{UserID: 1, Action: &tg.SendMessageTypingAction{}},
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindTelegramChanges {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindTelegramChanges)
		}
		changes, ok := evt.Payload.(*Changes)
		if !ok {
			t.Fatalf("payload type = %T, want *Changes", evt.Payload)
		}
		if len(changes.Typing) != 1 {
			t.Errorf("typing = %+v, want 1 action", changes.Typing)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for telegram.changes event")
	}
}

func TestHandlerSkipsEmptyChanges(t *testing.T) {
	b := bus.New()
	h := NewHandler(b, nil)

	ch, unsub := b.Subscribe("telegram.", 10)
	defer unsub()

	if err := h.Handle(context.Background(), &tg.UpdatesTooLong{}); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestIngestDecodesTL verifies the wire path used by the gRPC API: an
// encoded Updates object is decoded with gotd and published.
func TestIngestDecodesTL(t *testing.T) {
	b := bus.New()
	h := NewHandler(b, zap.NewNop())

	ch, unsub := b.Subscribe("telegram.", 10)
	defer unsub()

	data, err := Encode(&tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateUserStatus{UserID: 42, Status: &tg.UserStatusRecently{}},
		},
		Users: []tg.UserClass{&tg.User{ID: 42, FirstName: "Ann"}},
		Chats: []tg.ChatClass{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Ingest(context.Background(), ObjectUpdates, data); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	select {
	case evt := <-ch:
		changes := evt.Payload.(*Changes)
		if len(changes.Users) != 1 || changes.Users[0].FirstName != "Ann" {
			t.Errorf("users = %+v, want Ann", changes.Users)
		}
		if len(changes.StatusChanges) != 1 {
			t.Errorf("status changes = %+v, want 1", changes.StatusChanges)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for telegram.changes event")
	}
}

func TestIngestContactsAndDialogs(t *testing.T) {
	b := bus.New()
	h := NewHandler(b, zap.NewNop())

	ch, unsub := b.Subscribe("telegram.", 10)
	defer unsub()

	contacts, err := Encode(&tg.ContactsContacts{
		Contacts: []tg.Contact{{UserID: 1}},
		Users:    []tg.UserClass{&tg.User{ID: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	dialogs, err := Encode(&tg.MessagesDialogs{
		Dialogs:  []tg.DialogClass{&tg.Dialog{Peer: &tg.PeerUser{UserID: 1}}},
		Messages: []tg.MessageClass{},
		Chats:    []tg.ChatClass{},
		Users:    []tg.UserClass{&tg.User{ID: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Ingest(context.Background(), ObjectContacts, contacts); err != nil {
		t.Fatalf("Ingest(contacts) error = %v", err)
	}
	if err := h.Ingest(context.Background(), ObjectDialogs, dialogs); err != nil {
		t.Fatalf("Ingest(dialogs) error = %v", err)
	}

	first := <-ch
	if got := first.Payload.(*Changes).Contacts; len(got) != 1 || got[0] != 1 {
		t.Errorf("contacts = %v, want [1]", got)
	}
	second := <-ch
	if got := second.Payload.(*Changes).ActiveChats; len(got) != 1 || got[0] != 1 {
		t.Errorf("active chats = %v, want [1]", got)
	}
}

func TestIngestRejectsGarbage(t *testing.T) {
	h := NewHandler(bus.New(), zap.NewNop())

	if err := h.Ingest(context.Background(), ObjectUpdates, []byte{1, 2, 3}); err == nil {
		t.Error("Ingest(garbage) expected error")
	}
	if err := h.Ingest(context.Background(), "stickers", nil); err == nil {
		t.Error("Ingest(unknown kind) expected error")
	}
}

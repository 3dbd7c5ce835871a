package sync

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/telegram"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestEngineApplyOrder(t *testing.T) {
	data := account.New(nil)
	e := NewEngine(data, bus.New(), nil, 0)

	// The status change and the user arrive in the same container; the
	// user must be ingested first for the status change to apply.
	e.Apply(&telegram.Changes{
		Users:         []account.User{{ID: 1, FirstName: "Ann"}},
		StatusChanges: []telegram.StatusChange{{UserID: 1, Status: account.Status{Kind: account.StatusOnline}}},
		Messages:      []account.Message{{ID: 1, ChatID: 1, Text: "hi"}},
		PeerChats:     []account.Chat{{ID: 1, Type: account.PrivateChatType(1)}},
		Typing:        []account.UserAction{{UserID: 1, IsTyping: true}},
	})

	user, ok := data.GetUser(1)
	if !ok || user.Status.Kind != account.StatusOnline {
		t.Errorf("user = %+v, %v; want online Ann", user, ok)
	}
	updates := data.DrainUserUpdates()
	if len(updates) != 1 || !updates[0].Updates.Status {
		t.Errorf("updates = %+v, want one status update", updates)
	}
	if _, ok := data.GetPrivateChatByUserID(1); !ok {
		t.Error("peer chat not created")
	}
	if chats := data.DrainUnreadMessages(); len(chats) != 1 {
		t.Errorf("unread chats = %+v, want 1", chats)
	}
	if actions := data.DrainUserActions(); len(actions) != 1 || !actions[0].IsTyping {
		t.Errorf("actions = %+v, want one typing", actions)
	}
}

func TestEnginePeerChatDoesNotReplaceKnownChat(t *testing.T) {
	data := account.New(nil)
	e := NewEngine(data, bus.New(), nil, 0)

	e.Apply(&telegram.Changes{
		Chats: []account.Chat{{ID: 7, Title: "Seven", Type: account.PrivateChatType(7)}},
	})
	e.Apply(&telegram.Changes{
		PeerChats: []account.Chat{{ID: 7, Type: account.PrivateChatType(7)}},
	})

	chat, _ := data.GetChat(7)
	if chat.Title != "Seven" {
		t.Errorf("title = %q, want Seven (peer chat must not overwrite)", chat.Title)
	}
}

func TestEngineContactsAndDialogs(t *testing.T) {
	data := account.New(nil)
	e := NewEngine(data, bus.New(), nil, 0)

	e.Apply(&telegram.Changes{
		Users:    []account.User{{ID: 1}, {ID: 2}},
		Contacts: []account.UserID{1, 2, 3},
	})
	if got := data.GetContactsWithoutChat(); !slices.Equal(got, []account.UserID{1, 2, 3}) {
		t.Fatalf("contacts without chat = %v, want [1 2 3]", got)
	}

	e.Apply(&telegram.Changes{
		Chats:       []account.Chat{{ID: 2, Type: account.PrivateChatType(2)}},
		ActiveChats: []account.ChatID{2, 5},
	})
	if got := data.GetContactsWithoutChat(); !slices.Equal(got, []account.UserID{1, 3}) {
		t.Errorf("contacts without chat = %v, want [1 3]", got)
	}
	if chats := data.GetPrivateChats(); len(chats) != 1 || chats[0].User.ID != 2 {
		t.Errorf("private chats = %+v, want user 2", chats)
	}
}

func TestEngineStatusForUnknownUserIsSkipped(t *testing.T) {
	data := account.New(nil)
	e := NewEngine(data, bus.New(), zap.NewNop(), 0)

	e.Apply(&telegram.Changes{
		StatusChanges: []telegram.StatusChange{{UserID: 9, Status: account.Status{Kind: account.StatusOnline}}},
		Typing:        []account.UserAction{{UserID: 9, IsTyping: true}},
	})

	if updates := data.DrainUserUpdates(); len(updates) != 0 {
		t.Errorf("updates = %+v, want none", updates)
	}
	// The rest of the batch is still applied.
	if actions := data.DrainUserActions(); len(actions) != 1 {
		t.Errorf("actions = %+v, want 1", actions)
	}
}

func TestEngineCompleteContactRequest(t *testing.T) {
	data := account.New(nil)
	e := NewEngine(data, bus.New(), nil, 0)

	e.AddContactRequest(7, "+1555", 42)
	e.AddContactRequest(8, "+1666", 0)

	req, ok := e.CompleteContactRequest(7, nil)
	if !ok || req.PhoneNumber != "+1555" || req.UserID != 42 {
		t.Errorf("CompleteContactRequest(7) = %+v, %v", req, ok)
	}
	if _, ok := e.CompleteContactRequest(7, nil); ok {
		t.Error("second CompleteContactRequest(7) ok = true, want false")
	}

	rejected := errors.New("PHONE_NOT_OCCUPIED")
	if _, ok := e.CompleteContactRequest(8, rejected); !ok {
		t.Fatal("CompleteContactRequest(8) ok = false")
	}
	failed := data.DrainFailedContacts()
	if len(failed) != 1 || failed[0].PhoneNumber != "+1666" || !errors.Is(failed[0].Err, rejected) {
		t.Errorf("failed contacts = %+v, want +1666", failed)
	}
}

// TestEngineBusSubscription verifies the engine processes events from the
// bus. This is the core of the telegram→bus→account decoupling.
func TestEngineBusSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	data := account.New(nil)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(data, b, logger, 4)

	e.Start(context.Background())

	for i := 1; i <= 20; i++ {
		b.Publish(bus.Event{
			Kind:      bus.KindTelegramChanges,
			Timestamp: time.Now(),
			Payload: &telegram.Changes{
				Messages: []account.Message{{ID: int64(i), ChatID: 10}},
			},
		})
	}

	deadline := time.Now().Add(time.Second)
	for data.Stats().PendingMessages < 20 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	e.Stop()

	chats := data.DrainUnreadMessages()
	if len(chats) != 1 || len(chats[0].Messages) != 20 {
		t.Fatalf("unread = %+v, want 20 messages in one chat (lossless)", chats)
	}
	for i, m := range chats[0].Messages {
		if m.ID != int64(i+1) {
			t.Fatalf("message %d id = %d, want %d (arrival order)", i, m.ID, i+1)
		}
	}
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/drain"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBatch() *drain.Batch {
	when := time.UnixMilli(1_700_000_000_000)
	return &drain.Batch{
		ID:        "batch-1",
		DrainedAt: when,
		UnreadChats: []account.UnreadChat{
			{ChatID: 10, Messages: []account.Message{
				{ID: 1, ChatID: 10, SenderID: 1, Text: "hello world", Date: when},
				{ID: 2, ChatID: 10, SenderID: 1, Text: "goodbye world", Date: when.Add(time.Second)},
			}},
			{ChatID: -5, Messages: []account.Message{
				{ID: 1, ChatID: -5, SenderID: 2, Text: "group 50% off", Date: when},
			}},
		},
		UserUpdates:    []account.UserUpdate{{UserID: 1, Updates: account.UserUpdates{Status: true}}},
		UserActions:    []account.UserAction{{UserID: 1, IsTyping: true}},
		FailedContacts: []account.FailedContact{{PhoneNumber: "+1555", Err: errors.New("PHONE_NOT_OCCUPIED")}},
		Users: []account.User{{
			ID: 1, FirstName: "Ann", PhoneNumber: "+1000",
			Status: account.Status{Kind: account.StatusOffline, WasOnline: when},
		}},
		Chats: []account.Chat{{ID: -5, Title: "Group", Type: account.ChatType{Kind: account.ChatBasicGroup}}},
		PrivateChats: []account.PrivateChat{{
			Chat: account.Chat{ID: 10, Title: "Bob", Type: account.PrivateChatType(10)},
			User: account.User{ID: 10, FirstName: "Bob"},
		}},
		ContactsWithoutChat: []account.UserID{3, 4},
	}
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so this run checks idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + contacts_without_chat)", result.Version)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)

	if v, err := db.SchemaVersion(); err != nil || v != 2 {
		t.Fatalf("SchemaVersion() = %d, %v; want 2", v, err)
	}
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); !errors.Is(err, ErrDirtySchema) {
		t.Errorf("Migrate() error = %v, want ErrDirtySchema", err)
	}
}

func TestUserUpsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	u := account.User{ID: 7, FirstName: "Ann", Status: account.Status{Kind: account.StatusOnline, Expires: time.UnixMilli(5000)}}
	if err := db.SaveBatch(ctx, userBatch("b1", u)); err != nil {
		t.Fatal(err)
	}
	u.FirstName = "Annie"
	if err := db.SaveBatch(ctx, userBatch("b2", u)); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetUser(7)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.FirstName != "Annie" {
		t.Fatalf("got %+v, want Annie", got)
	}
	if got.Status.Kind != account.StatusOnline || !got.Status.Expires.Equal(time.UnixMilli(5000)) {
		t.Errorf("status = %+v, want online until 5000ms", got.Status)
	}

	missing, err := db.GetUser(8)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user")
	}
}

func TestChatUpsertAndGet(t *testing.T) {
	db := testDB(t)

	batch := userBatch("b1", account.User{ID: 3})
	batch.Chats = []account.Chat{{ID: 3, Title: "Three", Type: account.PrivateChatType(3)}}
	if err := db.SaveBatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetChat(3)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Title != "Three" || c.Type.Kind != account.ChatPrivate || c.Type.UserID != 3 {
		t.Errorf("got %+v, want private chat Three", c)
	}

	c, err = db.GetChat(4)
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}

	chats, err := db.ListChats(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 {
		t.Errorf("got %d chats, want 1", len(chats))
	}
}

// userBatch is a minimal batch carrying one user status update.
func userBatch(id string, u account.User) *drain.Batch {
	return &drain.Batch{
		ID:          id,
		DrainedAt:   time.Now(),
		UserUpdates: []account.UserUpdate{{UserID: u.ID, Updates: account.UserUpdates{Status: true}}},
		Users:       []account.User{u},
	}
}

func TestSaveBatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SaveBatch(ctx, testBatch()); err != nil {
		t.Fatal(err)
	}

	user, err := db.GetUser(1)
	if err != nil || user == nil || user.PhoneNumber != "+1000" || user.Status.Kind != account.StatusOffline {
		t.Errorf("GetUser(1) = %+v, %v", user, err)
	}
	if bob, _ := db.GetUser(10); bob == nil || bob.FirstName != "Bob" {
		t.Errorf("private chat user not recorded: %+v", bob)
	}
	if group, _ := db.GetChat(-5); group == nil || group.Type.Kind != account.ChatBasicGroup {
		t.Errorf("group chat not recorded: %+v", group)
	}

	msgs, err := db.ListMessages(10, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != 2 || msgs[0].BatchID != "batch-1" {
		t.Errorf("messages = %+v, want [2 1] from batch-1", msgs)
	}

	failed, err := db.ListFailedContacts(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].PhoneNumber != "+1555" || failed[0].Error != "PHONE_NOT_OCCUPIED" {
		t.Errorf("failed = %+v", failed)
	}

	ids, err := db.ContactsWithoutChat()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []account.UserID{3, 4}) {
		t.Errorf("contacts without chat = %v, want [3 4]", ids)
	}

	batches, err := db.ListBatches(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].Messages != 3 || batches[0].FailedContacts != 1 {
		t.Errorf("batches = %+v", batches)
	}
}

func TestSaveBatchIsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for range 2 {
		if err := db.SaveBatch(ctx, testBatch()); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.BatchCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("batch count = %d, want 1", n)
	}
	failed, _ := db.ListFailedContacts(0)
	if len(failed) != 1 {
		t.Errorf("failed contacts = %d, want 1 (replayed batch must not duplicate)", len(failed))
	}
}

func TestSaveBatchReplacesContactSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SaveBatch(ctx, testBatch()); err != nil {
		t.Fatal(err)
	}
	next := &drain.Batch{
		ID:                  "batch-2",
		DrainedAt:           time.Now(),
		UserActions:         []account.UserAction{{UserID: 1}},
		ContactsWithoutChat: []account.UserID{4},
	}
	if err := db.SaveBatch(ctx, next); err != nil {
		t.Fatal(err)
	}
	ids, _ := db.ContactsWithoutChat()
	if !slices.Equal(ids, []account.UserID{4}) {
		t.Errorf("contacts without chat = %v, want [4]", ids)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	if err := db.SaveBatch(context.Background(), testBatch()); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("hello", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 1 || results[0].ChatID != 10 {
		t.Fatalf("results = %+v, want message 1 in chat 10", results)
	}

	// LIKE wildcards in the query are literal.
	results, err = db.SearchMessages("50%", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChatID != -5 {
		t.Errorf("results = %+v, want the group message", results)
	}

	results, err = db.SearchMessages("world", -5, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none in chat -5", results)
	}
}

func TestRecorderPersistsBatches(t *testing.T) {
	// The sql.DB opener goroutine lives until the cleanup closes the db.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	db := testDB(t)
	b := bus.New()
	r := NewRecorder(db, b, zap.NewNop(), 4)

	recorded, unsub := b.Subscribe(bus.KindAccountRecorded, 10)
	defer unsub()

	r.Start(context.Background())
	b.Publish(bus.Event{Kind: bus.KindAccountBatch, Timestamp: time.Now(), Payload: testBatch()})

	select {
	case evt := <-recorded:
		if evt.Payload.(string) != "batch-1" {
			t.Errorf("recorded payload = %v, want batch-1", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for account.recorded event")
	}
	r.Stop()

	if n, _ := db.BatchCount(); n != 1 {
		t.Errorf("batch count = %d, want 1", n)
	}
}

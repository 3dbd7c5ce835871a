package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/api"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/drain"
	"github.com/matheus3301/tgp/internal/status"
	intsync "github.com/matheus3301/tgp/internal/sync"
	"github.com/matheus3301/tgp/internal/telegram"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func startServer(t *testing.T) (*Client, *account.Data) {
	t.Helper()
	// Short path to stay under the 104-char Unix socket limit on macOS.
	tmpDir, err := os.MkdirTemp("/tmp", "tgp-client-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	socketPath := filepath.Join(tmpDir, "d.sock")

	logger := zap.NewNop()
	data := account.New(logger)
	b := bus.New()
	engine := intsync.NewEngine(data, b, logger, 16)
	svc := api.NewAccountService(api.Deps{
		AccountName: "test",
		Data:        data,
		Handler:     telegram.NewHandler(b, logger),
		Engine:      engine,
		Pump:        drain.NewPump(data, b, logger, 0),
		Bus:         b,
		Machine:     status.NewMachine(b),
		Logger:      logger,
	})

	srv := grpc.NewServer()
	api.RegisterAccountServer(srv, svc)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	c, err := New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, data
}

func TestClientQueries(t *testing.T) {
	c, data := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data.UpsertUser(&account.User{ID: 5, FirstName: "Eve", PhoneNumber: "+1999"})
	data.UpsertChat(&account.Chat{ID: 5, Title: "Eve", Type: account.PrivateChatType(5)})

	user, err := c.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user["first_name"] != "Eve" {
		t.Errorf("user = %v", user)
	}

	chat, err := c.GetChat(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if chat["kind"] != "private" || chat["user_id"] != float64(5) {
		t.Errorf("chat = %v", chat)
	}

	if _, err := c.GetUser(ctx, 6); grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("GetUser(6) code = %v, want NotFound", grpcstatus.Code(err))
	}

	st, err := c.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st["account"] != "test" || st["status"] != "BOOTING" || st["store_enabled"] != false {
		t.Errorf("status = %v", st)
	}

	if _, err := c.ListMessages(ctx, 5, 0, 10); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("ListMessages code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
	if _, err := c.ListChats(ctx, 10, 0); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("ListChats code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
	if _, err := c.ListFailedContacts(ctx, 10); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("ListFailedContacts code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
	if _, err := c.GetRecordedContactsWithoutChat(ctx); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("GetRecordedContactsWithoutChat code = %v, want FailedPrecondition", grpcstatus.Code(err))
	}
}

func TestClientContactRequestsAndDrain(t *testing.T) {
	c, data := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.AddContactRequest(ctx, 9, "+1777", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CompleteContactRequest(ctx, 9, "USER_PRIVACY_RESTRICTED"); err != nil {
		t.Fatal(err)
	}
	failed, err := c.Drain(ctx, api.TableFailedContacts)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Errorf("failed = %v, want 1", failed)
	}

	data.EnqueueMessage(&account.Message{ID: 1, ChatID: 3})
	summary, err := c.DrainNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary["messages"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}
}

func TestClientWatch(t *testing.T) {
	c, data := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan map[string]any, 4)
	go func() {
		_ = c.Watch(ctx, func(evt map[string]any) {
			select {
			case events <- evt:
			default:
			}
		})
	}()

	// The subscription is registered asynchronously; keep producing batches
	// until one is observed.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for id := int64(1); ; id++ {
		select {
		case evt := <-events:
			if evt["kind"] != bus.KindAccountBatch {
				t.Errorf("kind = %v, want %s", evt["kind"], bus.KindAccountBatch)
			}
			return
		case <-ticker.C:
			data.EnqueueMessage(&account.Message{ID: id, ChatID: 1})
			if _, err := c.DrainNow(ctx); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("timeout waiting for watched event")
		}
	}
}

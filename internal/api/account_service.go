package api

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/drain"
	"github.com/matheus3301/tgp/internal/status"
	"github.com/matheus3301/tgp/internal/store"
	intsync "github.com/matheus3301/tgp/internal/sync"
	"github.com/matheus3301/tgp/internal/telegram"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Deps are the components the account service reads and drives.
// DB and Machine may be nil.
type Deps struct {
	AccountName string
	Data        *account.Data
	Handler     *telegram.Handler
	Engine      *intsync.Engine
	Pump        *drain.Pump
	Bus         *bus.Bus
	DB          *store.DB
	Machine     *status.Machine
	Logger      *zap.Logger
}

// AccountService implements AccountServer over the account state.
type AccountService struct {
	Deps
	startedAt time.Time
}

var _ AccountServer = (*AccountService)(nil)

// NewAccountService creates a new account service.
func NewAccountService(d Deps) *AccountService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &AccountService{Deps: d, startedAt: time.Now()}
}

func (s *AccountService) IngestUpdates(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return s.ingest(ctx, telegram.ObjectUpdates, req.GetValue())
}

func (s *AccountService) IngestContacts(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return s.ingest(ctx, telegram.ObjectContacts, req.GetValue())
}

func (s *AccountService) IngestDialogs(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return s.ingest(ctx, telegram.ObjectDialogs, req.GetValue())
}

func (s *AccountService) ingest(ctx context.Context, kind string, data []byte) (*emptypb.Empty, error) {
	if len(data) == 0 {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "empty %s payload", kind)
	}
	if err := s.Handler.Ingest(ctx, kind, data); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "ingest %s: %v", kind, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *AccountService) AddContactRequest(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	requestID, err := requireNumber(req, "request_id")
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	phone := stringField(req, "phone_number")
	if phone == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "missing phone_number")
	}
	userID, _ := numberField(req, "user_id")
	s.Engine.AddContactRequest(uint64(requestID), phone, account.UserID(userID))
	return &emptypb.Empty{}, nil
}

func (s *AccountService) CompleteContactRequest(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID, err := requireNumber(req, "request_id")
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	var result error
	if msg := stringField(req, "error"); msg != "" {
		result = errors.New(msg)
	}
	cr, ok := s.Engine.CompleteContactRequest(uint64(requestID), result)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "contact request %d not pending", requestID)
	}
	return newStruct(contactRequestValue(cr))
}

func (s *AccountService) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	v := map[string]any{
		"account":       s.AccountName,
		"pid":           os.Getpid(),
		"uptime_ms":     time.Since(s.startedAt).Milliseconds(),
		"store_enabled": s.DB != nil,
		"bus_dropped":   s.Bus.Dropped(),
	}
	if s.Machine != nil {
		v["status"] = string(s.Machine.Current())
	}
	if s.DB != nil {
		if n, err := s.DB.BatchCount(); err == nil {
			v["batches_recorded"] = n
		}
		if version, err := s.DB.SchemaVersion(); err == nil {
			v["schema_version"] = int64(version)
		}
	}
	return newStruct(v)
}

func (s *AccountService) GetStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return newStruct(statsValue(s.Data.Stats()))
}

func (s *AccountService) GetUser(_ context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	id := account.UserID(req.GetValue())
	if u, ok := s.Data.GetUser(id); ok {
		return newStruct(userValue(u))
	}
	if s.DB != nil {
		u, err := s.DB.GetUser(id)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "get user: %v", err)
		}
		if u != nil {
			v := userValue(*u)
			v["recorded"] = true
			return newStruct(v)
		}
	}
	return nil, grpcstatus.Errorf(codes.NotFound, "user %d not found", req.GetValue())
}

func (s *AccountService) GetUserByPhone(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "empty phone number")
	}
	u, ok := s.Data.GetUserByPhone(req.GetValue())
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "no user with phone %q", req.GetValue())
	}
	return newStruct(userValue(u))
}

func (s *AccountService) GetChat(_ context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	id := account.ChatID(req.GetValue())
	if c, ok := s.Data.GetChat(id); ok {
		return newStruct(chatValue(c))
	}
	if s.DB != nil {
		c, err := s.DB.GetChat(id)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "get chat: %v", err)
		}
		if c != nil {
			v := chatValue(*c)
			v["recorded"] = true
			return newStruct(v)
		}
	}
	return nil, grpcstatus.Errorf(codes.NotFound, "chat %d not found", req.GetValue())
}

func (s *AccountService) GetContactsWithoutChat(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return userIDList(s.Data.GetContactsWithoutChat())
}

func (s *AccountService) GetPrivateChats(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return wrapList(listOf(s.Data.GetPrivateChats(), privateChatValue))
}

// Drain empties one queue of the cache directly. Items drained here bypass
// the pump and are not recorded.
func (s *AccountService) Drain(_ context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	switch req.GetValue() {
	case TableMessages:
		return wrapList(listOf(s.Data.DrainUnreadMessages(), unreadChatValue))
	case TableUserUpdates:
		return wrapList(listOf(s.Data.DrainUserUpdates(), userUpdateValue))
	case TableUserActions:
		return wrapList(listOf(s.Data.DrainUserActions(), userActionValue))
	case TableFailedContacts:
		return wrapList(listOf(s.Data.DrainFailedContacts(), failedContactValue))
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown table %q", req.GetValue())
	}
}

// DrainNow runs one pump pass immediately and returns its summary.
func (s *AccountService) DrainNow(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return newStruct(batchValue(s.Pump.DrainOnce()))
}

func (s *AccountService) ListMessages(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	chatID, err := requireNumber(req, "chat_id")
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	before, _ := numberField(req, "before_ms")
	limit, _ := numberField(req, "limit")
	msgs, err := s.DB.ListMessages(account.ChatID(chatID), before, int(limit))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	return wrapList(listOf(msgs, recordedMessageValue))
}

func (s *AccountService) SearchMessages(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	query := stringField(req, "query")
	if query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "missing query")
	}
	chatID, _ := numberField(req, "chat_id")
	limit, _ := numberField(req, "limit")
	msgs, err := s.DB.SearchMessages(query, account.ChatID(chatID), int(limit))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	return wrapList(listOf(msgs, recordedMessageValue))
}

func (s *AccountService) ListBatches(_ context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	batches, err := s.DB.ListBatches(int(req.GetValue()))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list batches: %v", err)
	}
	return wrapList(listOf(batches, batchInfoValue))
}

func (s *AccountService) ListChats(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	limit, _ := numberField(req, "limit")
	offset, _ := numberField(req, "offset")
	if offset < 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "negative offset")
	}
	chats, err := s.DB.ListChats(int(limit), int(offset))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list chats: %v", err)
	}
	return wrapList(listOf(chats, chatValue))
}

func (s *AccountService) ListFailedContacts(_ context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	failed, err := s.DB.ListFailedContacts(int(req.GetValue()))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list failed contacts: %v", err)
	}
	return wrapList(listOf(failed, recordedFailureValue))
}

// GetRecordedContactsWithoutChat returns the snapshot written with the last recorded batch.
func (s *AccountService) GetRecordedContactsWithoutChat(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if s.DB == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "store disabled")
	}
	ids, err := s.DB.ContactsWithoutChat()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "contacts without chat: %v", err)
	}
	return userIDList(ids)
}

// Watch streams account and daemon events until the client goes away.
func (s *AccountService) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	accountCh, unsubAccount := s.Bus.Subscribe("account.", 256)
	defer unsubAccount()
	daemonCh, unsubDaemon := s.Bus.Subscribe("daemon.", 16)
	defer unsubDaemon()

	for {
		var evt bus.Event
		select {
		case evt = <-accountCh:
		case evt = <-daemonCh:
		case <-stream.Context().Done():
			return nil
		}
		msg, err := newStruct(eventValue(evt))
		if err != nil {
			s.Logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
			continue
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
}

func eventValue(evt bus.Event) map[string]any {
	v := map[string]any{
		"kind":           evt.Kind,
		"occurred_at_ms": unixMs(evt.Timestamp),
	}
	switch p := evt.Payload.(type) {
	case *drain.Batch:
		v["batch"] = batchValue(p)
	case string:
		v["batch_id"] = p
	case error:
		v["error"] = p.Error()
	case status.StatusChange:
		v["from"] = string(p.From)
		v["to"] = string(p.To)
	}
	return v
}

func newStruct(v map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func userIDList(ids []account.UserID) (*structpb.ListValue, error) {
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, int64(id))
	}
	return wrapList(structpb.NewList(values))
}

func wrapList(l *structpb.ListValue, err error) (*structpb.ListValue, error) {
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return l, nil
}

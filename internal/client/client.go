package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/tgp/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client wraps a gRPC connection to the daemon's account service.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any, PResp interface {
	*Resp
	proto.Message
}](ctx context.Context, c *Client, method string, in proto.Message) (PResp, error) {
	out := PResp(new(Resp))
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) IngestUpdates(ctx context.Context, raw []byte) error {
	_, err := invoke[emptypb.Empty](ctx, c, "IngestUpdates", wrapperspb.Bytes(raw))
	return err
}

func (c *Client) IngestContacts(ctx context.Context, raw []byte) error {
	_, err := invoke[emptypb.Empty](ctx, c, "IngestContacts", wrapperspb.Bytes(raw))
	return err
}

func (c *Client) IngestDialogs(ctx context.Context, raw []byte) error {
	_, err := invoke[emptypb.Empty](ctx, c, "IngestDialogs", wrapperspb.Bytes(raw))
	return err
}

// AddContactRequest registers a pending add-contact request.
func (c *Client) AddContactRequest(ctx context.Context, requestID uint64, phone string, userID int64) error {
	req, err := structpb.NewStruct(map[string]any{
		"request_id":   requestID,
		"phone_number": phone,
		"user_id":      userID,
	})
	if err != nil {
		return err
	}
	_, err = invoke[emptypb.Empty](ctx, c, "AddContactRequest", req)
	return err
}

// CompleteContactRequest resolves a pending request. A non-empty errMsg records it as failed.
func (c *Client) CompleteContactRequest(ctx context.Context, requestID uint64, errMsg string) (map[string]any, error) {
	fields := map[string]any{"request_id": requestID}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return asMap(invoke[structpb.Struct](ctx, c, "CompleteContactRequest", req))
}

func (c *Client) GetStatus(ctx context.Context) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "GetStatus", &emptypb.Empty{}))
}

func (c *Client) GetStats(ctx context.Context) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "GetStats", &emptypb.Empty{}))
}

func (c *Client) GetUser(ctx context.Context, id int64) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "GetUser", wrapperspb.Int64(id)))
}

func (c *Client) GetUserByPhone(ctx context.Context, phone string) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "GetUserByPhone", wrapperspb.String(phone)))
}

func (c *Client) GetChat(ctx context.Context, id int64) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "GetChat", wrapperspb.Int64(id)))
}

func (c *Client) GetContactsWithoutChat(ctx context.Context) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "GetContactsWithoutChat", &emptypb.Empty{}))
}

func (c *Client) GetPrivateChats(ctx context.Context) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "GetPrivateChats", &emptypb.Empty{}))
}

// Drain empties one cache queue; table is one of the api.Table* names.
func (c *Client) Drain(ctx context.Context, table string) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "Drain", wrapperspb.String(table)))
}

// DrainNow runs one pump pass and returns the batch summary.
func (c *Client) DrainNow(ctx context.Context) (map[string]any, error) {
	return asMap(invoke[structpb.Struct](ctx, c, "DrainNow", &emptypb.Empty{}))
}

func (c *Client) ListMessages(ctx context.Context, chatID, beforeMs int64, limit int) ([]any, error) {
	req, err := structpb.NewStruct(map[string]any{"chat_id": chatID, "before_ms": beforeMs, "limit": limit})
	if err != nil {
		return nil, err
	}
	return asSlice(invoke[structpb.ListValue](ctx, c, "ListMessages", req))
}

func (c *Client) SearchMessages(ctx context.Context, query string, chatID int64, limit int) ([]any, error) {
	req, err := structpb.NewStruct(map[string]any{"query": query, "chat_id": chatID, "limit": limit})
	if err != nil {
		return nil, err
	}
	return asSlice(invoke[structpb.ListValue](ctx, c, "SearchMessages", req))
}

func (c *Client) ListBatches(ctx context.Context, limit int64) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "ListBatches", wrapperspb.Int64(limit)))
}

func (c *Client) ListChats(ctx context.Context, limit, offset int) ([]any, error) {
	req, err := structpb.NewStruct(map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	return asSlice(invoke[structpb.ListValue](ctx, c, "ListChats", req))
}

func (c *Client) ListFailedContacts(ctx context.Context, limit int64) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "ListFailedContacts", wrapperspb.Int64(limit)))
}

func (c *Client) GetRecordedContactsWithoutChat(ctx context.Context) ([]any, error) {
	return asSlice(invoke[structpb.ListValue](ctx, c, "GetRecordedContactsWithoutChat", &emptypb.Empty{}))
}

// Watch streams daemon events to fn until ctx is done or the stream fails.
func (c *Client) Watch(ctx context.Context, fn func(map[string]any)) error {
	stream, err := c.conn.NewStream(ctx, &api.ServiceDesc.Streams[0], api.FullMethod("Watch"))
	if err != nil {
		return err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := x.CloseSend(); err != nil {
		return err
	}
	for {
		evt, err := x.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(evt.AsMap())
	}
}

func asMap(s *structpb.Struct, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

func asSlice(l *structpb.ListValue, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	return l.AsSlice(), nil
}

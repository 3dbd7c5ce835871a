package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tgp.v1.AccountService"

// Drain table names accepted by Drain.
const (
	TableMessages       = "messages"
	TableUserUpdates    = "user_updates"
	TableUserActions    = "user_actions"
	TableFailedContacts = "failed_contacts"
)

// AccountServer is the server API for the account service. Requests and
// responses are protobuf well-known types; structured payloads use
// google.protobuf.Struct with snake_case keys.
type AccountServer interface {
	IngestUpdates(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	IngestContacts(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	IngestDialogs(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	AddContactRequest(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CompleteContactRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetUser(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetUserByPhone(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetChat(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetContactsWithoutChat(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetPrivateChats(context.Context, *emptypb.Empty) (*structpb.ListValue, error)

	Drain(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	DrainNow(context.Context, *emptypb.Empty) (*structpb.Struct, error)

	ListMessages(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	ListBatches(context.Context, *wrapperspb.Int64Value) (*structpb.ListValue, error)
	ListChats(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	ListFailedContacts(context.Context, *wrapperspb.Int64Value) (*structpb.ListValue, error)
	GetRecordedContactsWithoutChat(context.Context, *emptypb.Empty) (*structpb.ListValue, error)

	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes AccountService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IngestUpdates", AccountServer.IngestUpdates),
		unary("IngestContacts", AccountServer.IngestContacts),
		unary("IngestDialogs", AccountServer.IngestDialogs),
		unary("AddContactRequest", AccountServer.AddContactRequest),
		unary("CompleteContactRequest", AccountServer.CompleteContactRequest),
		unary("GetStatus", AccountServer.GetStatus),
		unary("GetStats", AccountServer.GetStats),
		unary("GetUser", AccountServer.GetUser),
		unary("GetUserByPhone", AccountServer.GetUserByPhone),
		unary("GetChat", AccountServer.GetChat),
		unary("GetContactsWithoutChat", AccountServer.GetContactsWithoutChat),
		unary("GetPrivateChats", AccountServer.GetPrivateChats),
		unary("Drain", AccountServer.Drain),
		unary("DrainNow", AccountServer.DrainNow),
		unary("ListMessages", AccountServer.ListMessages),
		unary("SearchMessages", AccountServer.SearchMessages),
		unary("ListBatches", AccountServer.ListBatches),
		unary("ListChats", AccountServer.ListChats),
		unary("ListFailedContacts", AccountServer.ListFailedContacts),
		unary("GetRecordedContactsWithoutChat", AccountServer.GetRecordedContactsWithoutChat),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tgp/v1/account.proto",
}

// RegisterAccountServer registers srv on s.
func RegisterAccountServer(s grpc.ServiceRegistrar, srv AccountServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the wire name of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](name string, call func(AccountServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	full := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccountServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccountServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AccountServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

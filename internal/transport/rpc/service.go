package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// BridgeServer is the server API for the wabridge.Bridge service.
type BridgeServer interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	Connect(context.Context, *Empty) (*Empty, error)
	Disconnect(context.Context, *Empty) (*Empty, error)
	Logout(context.Context, *Empty) (*Empty, error)
	PairQR(*PairQRRequest, Bridge_PairQRServer) error
	PairWithCode(context.Context, *PairWithCodeRequest) (*PairWithCodeResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	GetMessages(context.Context, *GetMessagesRequest) (*GetMessagesResponse, error)
	GetMessagesSince(context.Context, *GetMessagesSinceRequest) (*GetMessagesResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*GetMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	SendReaction(context.Context, *SendReactionRequest) (*Empty, error)
	MarkRead(context.Context, *MarkReadRequest) (*Empty, error)
	DownloadMedia(context.Context, *DownloadMediaRequest) (*DownloadMediaResponse, error)
	SubscribeEvents(*SubscribeEventsRequest, Bridge_SubscribeEventsServer) error
}

type Bridge_PairQRServer interface {
	Send(*PairingUpdate) error
	grpc.ServerStream
}

type bridgePairQRServer struct {
	grpc.ServerStream
}

func (s *bridgePairQRServer) Send(m *PairingUpdate) error {
	return s.ServerStream.SendMsg(m)
}

type Bridge_SubscribeEventsServer interface {
	Send(*EventEnvelope) error
	grpc.ServerStream
}

type bridgeSubscribeEventsServer struct {
	grpc.ServerStream
}

func (s *bridgeSubscribeEventsServer) Send(m *EventEnvelope) error {
	return s.ServerStream.SendMsg(m)
}

func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&Bridge_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(BridgeServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BridgeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BridgeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _Bridge_PairQR_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(PairQRRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServer).PairQR(in, &bridgePairQRServer{stream})
}

func _Bridge_SubscribeEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(SubscribeEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServer).SubscribeEvents(in, &bridgeSubscribeEventsServer{stream})
}

// Bridge_ServiceDesc mirrors what generated service code would produce for
// the Bridge service.
var Bridge_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "wabridge.Bridge",
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unaryHandler("/wabridge.Bridge/Status", func(s BridgeServer, ctx context.Context, in *Empty) (*StatusResponse, error) {
			return s.Status(ctx, in)
		})},
		{MethodName: "Connect", Handler: unaryHandler("/wabridge.Bridge/Connect", func(s BridgeServer, ctx context.Context, in *Empty) (*Empty, error) {
			return s.Connect(ctx, in)
		})},
		{MethodName: "Disconnect", Handler: unaryHandler("/wabridge.Bridge/Disconnect", func(s BridgeServer, ctx context.Context, in *Empty) (*Empty, error) {
			return s.Disconnect(ctx, in)
		})},
		{MethodName: "Logout", Handler: unaryHandler("/wabridge.Bridge/Logout", func(s BridgeServer, ctx context.Context, in *Empty) (*Empty, error) {
			return s.Logout(ctx, in)
		})},
		{MethodName: "PairWithCode", Handler: unaryHandler("/wabridge.Bridge/PairWithCode", func(s BridgeServer, ctx context.Context, in *PairWithCodeRequest) (*PairWithCodeResponse, error) {
			return s.PairWithCode(ctx, in)
		})},
		{MethodName: "ListChats", Handler: unaryHandler("/wabridge.Bridge/ListChats", func(s BridgeServer, ctx context.Context, in *ListChatsRequest) (*ListChatsResponse, error) {
			return s.ListChats(ctx, in)
		})},
		{MethodName: "GetMessages", Handler: unaryHandler("/wabridge.Bridge/GetMessages", func(s BridgeServer, ctx context.Context, in *GetMessagesRequest) (*GetMessagesResponse, error) {
			return s.GetMessages(ctx, in)
		})},
		{MethodName: "GetMessagesSince", Handler: unaryHandler("/wabridge.Bridge/GetMessagesSince", func(s BridgeServer, ctx context.Context, in *GetMessagesSinceRequest) (*GetMessagesResponse, error) {
			return s.GetMessagesSince(ctx, in)
		})},
		{MethodName: "SearchMessages", Handler: unaryHandler("/wabridge.Bridge/SearchMessages", func(s BridgeServer, ctx context.Context, in *SearchMessagesRequest) (*GetMessagesResponse, error) {
			return s.SearchMessages(ctx, in)
		})},
		{MethodName: "SendMessage", Handler: unaryHandler("/wabridge.Bridge/SendMessage", func(s BridgeServer, ctx context.Context, in *SendMessageRequest) (*SendMessageResponse, error) {
			return s.SendMessage(ctx, in)
		})},
		{MethodName: "SendReaction", Handler: unaryHandler("/wabridge.Bridge/SendReaction", func(s BridgeServer, ctx context.Context, in *SendReactionRequest) (*Empty, error) {
			return s.SendReaction(ctx, in)
		})},
		{MethodName: "MarkRead", Handler: unaryHandler("/wabridge.Bridge/MarkRead", func(s BridgeServer, ctx context.Context, in *MarkReadRequest) (*Empty, error) {
			return s.MarkRead(ctx, in)
		})},
		{MethodName: "DownloadMedia", Handler: unaryHandler("/wabridge.Bridge/DownloadMedia", func(s BridgeServer, ctx context.Context, in *DownloadMediaRequest) (*DownloadMediaResponse, error) {
			return s.DownloadMedia(ctx, in)
		})},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PairQR", Handler: _Bridge_PairQR_Handler, ServerStreams: true},
		{StreamName: "SubscribeEvents", Handler: _Bridge_SubscribeEvents_Handler, ServerStreams: true},
	},
	Metadata: "wabridge",
}

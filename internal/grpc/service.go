package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "subtrans.v1.TranslationService"

// TranslationServiceServer is the gRPC API. Messages are google.protobuf.Struct
// documents shaped like the HTTP API's JSON.
type TranslationServiceServer interface {
	// MatchFiles pairs subtitles with videos.
	// Request: {subtitles: [string], videos: [string]}. Response: {matches: [...]}.
	MatchFiles(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// TranslateFiles streams one FileResult document per requested file.
	// Request: {selected_files: [{subtitle, video}], <settings overrides>}.
	TranslateFiles(req *structpb.Struct, stream grpc.ServerStream) error
	// StreamEvents streams progress and log events until the client leaves.
	StreamEvents(req *emptypb.Empty, stream grpc.ServerStream) error
}

// ServiceDesc describes TranslationService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "MatchFiles", Handler: matchFilesHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "TranslateFiles", Handler: translateFilesHandler, ServerStreams: true},
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "subtrans/v1/translation.proto",
}

// RegisterTranslationServiceServer registers srv on s.
func RegisterTranslationServiceServer(s grpc.ServiceRegistrar, srv TranslationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func matchFilesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranslationServiceServer).MatchFiles(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/MatchFiles"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TranslationServiceServer).MatchFiles(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func translateFilesHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TranslationServiceServer).TranslateFiles(in, stream)
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TranslationServiceServer).StreamEvents(in, stream)
}

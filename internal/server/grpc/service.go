package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/contacttrace/internal/rpcx"
	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
	"github.com/dmitrijs2005/contacttrace/internal/server/pipeline"
)

// commandServer is the handler type of serviceDesc.
type commandServer interface {
	dispatch(ctx context.Context, cmd pipeline.Command) (any, error)
}

// serviceDesc maps each RPC onto one command. Requests and replies are the
// command and result structs, carried by the rpcx JSON codec.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpcx.ServiceName,
	HandlerType: (*commandServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[commands.CreateProfileCommand](rpcx.MethodCreateProfile),
		unary[commands.UpdatePushTokenCommand](rpcx.MethodUpdatePushToken),
		unary[commands.ReportLocationCommand](rpcx.MethodReportLocation),
		unary[commands.AddContactsCommand](rpcx.MethodAddContacts),
		unary[commands.ClearContactLocationCommand](rpcx.MethodClearContactLocation),
		unary[commands.ExportContactsCommand](rpcx.MethodExportContacts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contacttrace",
}

func unary[C pipeline.Command](method string) grpc.MethodDesc {
	fullMethod := rpcx.FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			var cmd C
			if err := dec(&cmd); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "malformed %s request: %v", method, err)
			}
			s := srv.(commandServer)
			if interceptor == nil {
				return s.dispatch(ctx, cmd)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, cmd, info, func(ctx context.Context, req any) (any, error) {
				return s.dispatch(ctx, req.(C))
			})
		},
	}
}

func (s *GRPCServer) dispatch(ctx context.Context, cmd pipeline.Command) (any, error) {
	res, err := s.dispatcher.Send(ctx, cmd)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

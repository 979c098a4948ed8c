package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/contacttrace/internal/logging"
	"github.com/dmitrijs2005/contacttrace/internal/server/pipeline"
)

// Dispatcher runs a command through the pipeline.
type Dispatcher interface {
	Send(ctx context.Context, cmd pipeline.Command) (any, error)
}

// TokenVerifier resolves a bearer token to the profile it was issued for.
type TokenVerifier interface {
	Verify(token string) (uint32, error)
}

type GRPCServer struct {
	address    string
	logger     logging.Logger
	dispatcher Dispatcher
	tokens     TokenVerifier
}

func NewGRPCServer(a string, l logging.Logger, d Dispatcher, tokens TokenVerifier) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		dispatcher: d,
		tokens:     tokens,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers service
	srv.RegisterService(&serviceDesc, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	return srv.Serve(lis)
}

package rpc

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/wirebird/wabridge/internal/logger"
)

// drainTimeout bounds graceful shutdown before in-flight calls are cut off.
const drainTimeout = 10 * time.Second

// Server hosts the Bridge service on a TCP listener.
type Server struct {
	addr  string
	grpc  *grpc.Server
	lis   net.Listener
	ready chan struct{}
	log   zerolog.Logger
}

func NewServer(addr string, session SessionAPI, messages MessageAPI) *Server {
	log := logger.Module("rpc")
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(log),
			loggingUnaryInterceptor(log),
		),
		grpc.ChainStreamInterceptor(
			recoveryStreamInterceptor(log),
			loggingStreamInterceptor(log),
		),
	)
	RegisterBridgeServer(srv, NewHandler(session, messages))
	return &Server{
		addr:  addr,
		grpc:  srv,
		ready: make(chan struct{}),
		log:   log,
	}
}

// Start binds the listener and begins serving in the background. Ready is
// closed as soon as the port is bound, before the first call is served.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.lis = lis
	close(s.ready)
	s.log.Info().Str("addr", lis.Addr().String()).Msg("rpc server listening")

	go func() {
		if err := s.grpc.Serve(lis); err != nil {
			s.log.Error().Err(err).Msg("rpc server stopped")
		}
	}()
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr reports the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Shutdown drains in-flight calls, then stops hard if the drain outlives
// its deadline or ctx.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	case <-timer.C:
		s.log.Warn().Msg("rpc drain deadline hit, stopping hard")
		s.grpc.Stop()
	}
}

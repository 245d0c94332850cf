// Package grpc is the request surface of the wakevault server. It serves
// the wakevault.v1.Vault service over gRPC.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/logging"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/timex"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

// Service is the part of ledger.Runtime the transport needs.
type Service interface {
	Machine() *escrow.Machine
	Reader() ledger.Reader
	Submit(ctx context.Context, env *wire.Envelope) (*escrow.Result, error)
	Airdrop(ctx context.Context, addr escrow.Address, amount uint64) (uint64, error)
}

type GRPCServer struct {
	address string
	service Service
	clock   timex.Clock
	logger  logging.Logger

	rateLimit rate.Limit
	rateBurst int
	mu        sync.Mutex
	limiters  map[string]*peerLimiter
	now       func() time.Time
}

// NewGRPCServer creates a server for svc. A rateLimit of zero disables
// per-peer limiting.
func NewGRPCServer(a string, l logging.Logger, svc Service, clock timex.Clock, rateLimit float64, rateBurst int) *GRPCServer {
	return &GRPCServer{
		address:   a,
		service:   svc,
		clock:     clock,
		logger:    l.With("module", "grpc_server"),
		rateLimit: rate.Limit(rateLimit),
		rateBurst: rateBurst,
		limiters:  make(map[string]*peerLimiter),
		now:       time.Now,
	}
}

// NewServer builds the grpc.Server with the interceptor chain and the Vault
// service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.recoveryInterceptor,
		s.loggingInterceptor,
		s.rateLimitInterceptor,
	))
	rpc.RegisterVaultServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()
	if s.rateLimit > 0 {
		s.startLimiterCleanup(ctx, limiterSweepInterval)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

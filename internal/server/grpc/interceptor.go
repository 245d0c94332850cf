package grpc

import (
	"context"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/wakevault/internal/common"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

// RequestID returns the id the logging interceptor attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.RequestIDHeaderName); len(values) > 0 {
			id = values[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx = context.WithValue(ctx, requestIDKey, id)

	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Info(ctx, "rpc",
		"method", info.FullMethod,
		"request_id", id,
		"peer", peerKey(ctx),
		"code", status.Code(err).String(),
		"duration", time.Since(start).String(),
	)
	return resp, err
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return p.Addr.String()
}

// Idle peers lose their bucket after limiterIdleTTL; a sweep runs every
// limiterSweepInterval while the server is serving.
const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type peerLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func (s *GRPCServer) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = &peerLimiter{lim: rate.NewLimiter(s.rateLimit, s.rateBurst)}
		s.limiters[key] = l
	}
	l.lastSeen = s.now()
	return l.lim
}

// sweepLimiters drops buckets not used since before now-ttl and reports how
// many were removed.
func (s *GRPCServer) sweepLimiters(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, l := range s.limiters {
		if now.Sub(l.lastSeen) > ttl {
			delete(s.limiters, k)
			n++
		}
	}
	return n
}

// startLimiterCleanup sweeps idle buckets until ctx is done.
func (s *GRPCServer) startLimiterCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sweepLimiters(s.now(), limiterIdleTTL); n > 0 {
					s.logger.Info(ctx, "rate limiters swept", "removed", n)
				}
			}
		}
	}()
}

// rateLimitInterceptor rejects requests once a peer exceeds its token bucket.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if s.rateLimit <= 0 {
		return handler(ctx, req)
	}
	if !s.limiter(peerHost(ctx)).Allow() {
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return handler(ctx, req)
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// peerHost is the peer address without its port, so reconnecting does not
// reset a client's bucket.
func peerHost(ctx context.Context) string {
	addr := peerKey(ctx)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

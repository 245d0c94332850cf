package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

var _ Client = (*GRPCClient)(nil)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.VaultClient
}

func withRequestID(ctx context.Context) context.Context {
	if md, ok := metadata.FromOutgoingContext(ctx); ok && len(md.Get(common.RequestIDHeaderName)) > 0 {
		return ctx
	}
	id, err := common.MakeRandHexString(8)
	if err != nil {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, common.RequestIDHeaderName, id)
}

func requestIDInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withRequestID(ctx), method, req, reply, cc, opts...)
}

func NewVaultClientService(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// InitGRPCClient dials the endpoint. Extra options are appended after the
// defaults, so tests can swap the dialer.
func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(requestIDInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewVaultClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) (*rpc.Info, error) {
	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	info, err := rpc.DecodeInfo(resp)
	if err != nil {
		return nil, err
	}
	if info.Status != "OK" {
		return nil, ErrUnavailable
	}
	return info, nil
}

func (s *GRPCClient) Submit(ctx context.Context, env *wire.Envelope) (*rpc.Receipt, error) {
	req, err := rpc.EncodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Submit(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return rpc.DecodeReceipt(resp)
}

func (s *GRPCClient) Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	resp, err := s.client.GetAlarm(ctx, rpc.EncodeAddress(addr))
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(resp.GetFields()) == 0 {
		return nil, common.ErrNotFound
	}
	return rpc.DecodeAlarm(resp)
}

func (s *GRPCClient) Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error) {
	resp, err := s.client.GetVault(ctx, rpc.EncodeAddress(addr))
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(resp.GetFields()) == 0 {
		return nil, common.ErrNotFound
	}
	return rpc.DecodeVault(resp)
}

func (s *GRPCClient) Balance(ctx context.Context, addr escrow.Address) (uint64, error) {
	resp, err := s.client.GetBalance(ctx, rpc.EncodeAddress(addr))
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.GetValue(), nil
}

func (s *GRPCClient) Airdrop(ctx context.Context, addr escrow.Address, lamports uint64) (uint64, error) {
	resp, err := s.client.Airdrop(ctx, rpc.EncodeAirdrop(addr, lamports))
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.GetValue(), nil
}

// escrowError recovers the escrow sentinel from a "Code: message" status.
func escrowError(msg string) error {
	code, _, ok := strings.Cut(msg, ":")
	if !ok {
		return nil
	}
	if e := escrow.ErrorByCode(code); e != nil {
		return e
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	if e := escrowError(st.Message()); e != nil {
		return e
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Unimplemented:
		return common.ErrFaucetDisabled
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrMalformedRequest, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

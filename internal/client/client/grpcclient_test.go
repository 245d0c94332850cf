package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

// fakeServer answers every call from its fields and records request ids.
type fakeServer struct {
	err        error
	alarm      *escrow.Alarm
	vault      *escrow.Vault
	balance    uint64
	submitted  *wire.Envelope
	requestIDs []string
	airdropped uint64
}

func (f *fakeServer) record(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.requestIDs = append(f.requestIDs, md.Get(common.RequestIDHeaderName)...)
}

func (f *fakeServer) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	f.record(ctx)
	env, err := rpc.DecodeEnvelope(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.submitted = env
	if f.err != nil {
		return nil, f.err
	}
	return rpc.EncodeReceipt(&rpc.Receipt{Op: "claim"}), nil
}

func (f *fakeServer) GetAlarm(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	if f.alarm == nil {
		return &structpb.Struct{}, nil
	}
	return rpc.EncodeAlarm(f.alarm), nil
}

func (f *fakeServer) GetVault(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	if f.vault == nil {
		return &structpb.Struct{}, nil
	}
	return rpc.EncodeVault(f.vault), nil
}

func (f *fakeServer) GetBalance(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return wrapperspb.UInt64(f.balance), nil
}

func (f *fakeServer) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return rpc.EncodeInfo(&rpc.Info{Status: "OK", Cluster: "localnet", Now: 42}), nil
}

func (f *fakeServer) Airdrop(ctx context.Context, in *structpb.Struct) (*wrapperspb.UInt64Value, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	_, lamports, err := rpc.DecodeAirdrop(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.airdropped += lamports
	return wrapperspb.UInt64(f.airdropped), nil
}

func newTestClient(t *testing.T, srv *fakeServer) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterVaultServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewVaultClientService("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_Reads(t *testing.T) {
	a := &escrow.Alarm{AlarmID: 3, RemainingAmount: 10, Status: escrow.StatusCreated}
	srv := &fakeServer{alarm: a, vault: &escrow.Vault{Lamports: 11}, balance: 99}
	c := newTestClient(t, srv)
	ctx := context.Background()

	ping, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "localnet", ping.Cluster)
	assert.Equal(t, int64(42), ping.Now)

	got, err := c.Alarm(ctx, escrow.Address{})
	require.NoError(t, err)
	assert.Equal(t, a, got)

	v, err := c.Vault(ctx, escrow.Address{})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), v.Lamports)

	bal, err := c.Balance(ctx, escrow.Address{})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), bal)

	bal, err = c.Airdrop(ctx, escrow.Address{}, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), bal)

	require.Len(t, srv.requestIDs, 5)
	for _, id := range srv.requestIDs {
		assert.Len(t, id, 16)
	}
}

func TestGRPCClient_KeepsCallerRequestID(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.RequestIDHeaderName, "abc")
	_, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, srv.requestIDs)
}

func TestGRPCClient_Submit(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)

	env := &wire.Envelope{Payload: []byte{1, 2, 3}, Signer: escrow.Address{9}, Signature: []byte{4}}
	resp, err := c.Submit(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "claim", resp.Op)
	assert.Equal(t, env, srv.submitted)
}

func TestGRPCClient_MissingRecord(t *testing.T) {
	c := newTestClient(t, &fakeServer{})

	_, err := c.Alarm(context.Background(), escrow.Address{})
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = c.Vault(context.Background(), escrow.Address{})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGRPCClient_MapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"escrow code", status.Error(codes.FailedPrecondition, "TooEarly: alarm time has not been reached"), escrow.ErrTooEarly},
		{"attestation code", status.Error(codes.Unauthenticated, "PermitExpired: permit has expired"), escrow.ErrPermitExpired},
		{"not found", status.Error(codes.NotFound, "not found"), common.ErrNotFound},
		{"faucet", status.Error(codes.Unimplemented, "faucet disabled"), common.ErrFaucetDisabled},
		{"bad signature", status.Error(codes.Unauthenticated, "invalid signature"), ErrUnauthorized},
		{"malformed", status.Error(codes.InvalidArgument, "malformed request: short buffer"), common.ErrMalformedRequest},
		{"unavailable", status.Error(codes.Unavailable, "down"), ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeServer{err: tt.err})
			_, err := c.Balance(context.Background(), escrow.Address{})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGRPCClient_MapError_Unknown(t *testing.T) {
	c := &GRPCClient{}
	err := c.mapError(status.Error(codes.Internal, "internal error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc error")
	assert.False(t, errors.Is(err, ErrUnavailable))

	err = c.mapError(errors.New("Unknown: no such code"))
	assert.Contains(t, err.Error(), "rpc error")

	assert.NoError(t, c.mapError(nil))
}

package grpc

import (
	"context"
	"crypto/ed25519"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/ledger/memstore"
	"github.com/dmitrijs2005/wakevault/internal/logging"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/timex"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

func nopLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testDeployment = escrow.Deployment{
	Cluster:           escrow.DefaultCluster,
	ProgramID:         escrow.Address{0xf0},
	AttestationDomain: escrow.DefaultAttestationDomain,
}

type env struct {
	client rpc.VaultClient
	clock  *timex.ManualClock
	key    ed25519.PrivateKey
	owner  escrow.Address
}

func newEnv(t *testing.T, faucet uint64) *env {
	t.Helper()

	clock := timex.NewManualClock(time.Unix(1_000, 0))
	m := escrow.NewMachine(escrow.DefaultParams(), testDeployment)
	rt := ledger.NewRuntime(m, memstore.New(), clock, nopLogger(), ledger.WithFaucet(faucet))
	s := NewGRPCServer("bufnet", nopLogger(), rt, clock, 0, 0)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	pub, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner, err := escrow.AddressFromPublicKey(pub)
	require.NoError(t, err)

	return &env{client: rpc.NewVaultClient(conn), clock: clock, key: key, owner: owner}
}

func (e *env) create(t *testing.T, deposit uint64) (*wire.Envelope, escrow.Address, escrow.Address) {
	t.Helper()
	alarm := escrow.AlarmAddress(testDeployment.ProgramID, e.owner, 1)
	vault := escrow.VaultAddress(testDeployment.ProgramID, alarm)
	envl, err := wire.Sign(e.key, escrow.CreateAlarm{AlarmID: 1, AlarmTime: 2_000, Deadline: 3_000, Deposit: deposit},
		[]escrow.Address{alarm, vault, e.owner})
	require.NoError(t, err)
	return envl, alarm, vault
}

func (e *env) submit(t *testing.T, envl *wire.Envelope) (*rpc.Receipt, error) {
	t.Helper()
	req, err := rpc.EncodeEnvelope(envl)
	require.NoError(t, err)
	resp, err := e.client.Submit(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeReceipt(resp)
}

func TestPing(t *testing.T) {
	e := newEnv(t, 0)

	resp, err := e.client.Ping(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	info, err := rpc.DecodeInfo(resp)
	require.NoError(t, err)
	assert.Equal(t, "OK", info.Status)
	assert.Equal(t, testDeployment.ProgramID, info.ProgramID)
	assert.Equal(t, testDeployment.Cluster, info.Cluster)
	assert.Equal(t, int64(1_000), info.Now)
}

func TestSubmitAndRead(t *testing.T) {
	e := newEnv(t, 10_000_000_000)
	ctx := context.Background()

	ad, err := e.client.Airdrop(ctx, rpc.EncodeAirdrop(e.owner, 5_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), ad.GetValue())

	envl, alarm, vault := e.create(t, 1_000_000_000)
	rc, err := e.submit(t, envl)
	require.NoError(t, err)
	assert.Equal(t, "create", rc.Op)
	require.Len(t, rc.Events, 1)
	assert.Equal(t, escrow.EventAlarmCreated, rc.Events[0].Kind)
	assert.Equal(t, alarm, rc.Events[0].Account)

	as, err := e.client.GetAlarm(ctx, rpc.EncodeAddress(alarm))
	require.NoError(t, err)
	a, err := rpc.DecodeAlarm(as)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), a.RemainingAmount)
	assert.Equal(t, escrow.StatusCreated, a.Status)

	vs, err := e.client.GetVault(ctx, rpc.EncodeAddress(vault))
	require.NoError(t, err)
	v, err := rpc.DecodeVault(vs)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000)+escrow.DefaultParams().VaultFloor, v.Lamports)

	b, err := e.client.GetBalance(ctx, rpc.EncodeAddress(e.owner))
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000_000)-escrow.DefaultParams().VaultFloor, b.GetValue())
}

func TestSubmit_RejectionCodes(t *testing.T) {
	e := newEnv(t, 10_000_000_000)
	ctx := context.Background()

	envl, alarm, _ := e.create(t, 1_000_000_000)
	_, err := e.submit(t, envl)
	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "InsufficientFunds")

	_, err = e.client.Airdrop(ctx, rpc.EncodeAirdrop(e.owner, 5_000_000_000))
	require.NoError(t, err)
	_, err = e.submit(t, envl)
	require.NoError(t, err)

	ack, err := wire.Sign(e.key, escrow.Acknowledge{}, []escrow.Address{alarm, e.owner})
	require.NoError(t, err)
	_, err = e.submit(t, ack)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "too early")

	ack.Signature[0] ^= 0xff
	_, err = e.submit(t, ack)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = e.client.Submit(ctx, &wrapperspb.BytesValue{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = e.client.Submit(ctx, wrapperspb.Bytes([]byte{1, 2, 3}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestReads_NotFound(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()

	_, err := e.client.GetAlarm(ctx, rpc.EncodeAddress(escrow.Address{1}))
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = e.client.GetVault(ctx, rpc.EncodeAddress(escrow.Address{1}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	b, err := e.client.GetBalance(ctx, rpc.EncodeAddress(escrow.Address{1}))
	require.NoError(t, err)
	assert.Zero(t, b.GetValue())
}

func TestReads_BadAddress(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.client.GetAlarm(context.Background(), wrapperspb.Bytes([]byte{1, 2}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = e.client.Airdrop(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAirdrop_Disabled(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.client.Airdrop(context.Background(), rpc.EncodeAirdrop(e.owner, 1))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", nopLogger(), nil, timex.SystemClock{}, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nopLogger(), nil, timex.SystemClock{}, 0, 0)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

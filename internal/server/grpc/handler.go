package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
)

var _ rpc.VaultServer = (*GRPCServer)(nil)

func (s *GRPCServer) Submit(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "envelope is required")
	}
	env, err := rpc.DecodeEnvelope(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.service.Submit(ctx, env)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return rpc.EncodeReceipt(&rpc.Receipt{Op: res.Op.String(), Events: res.Events}), nil
}

func address(req *wrapperspb.BytesValue) (escrow.Address, error) {
	a, err := rpc.DecodeAddress(req)
	if err != nil {
		return a, status.Error(codes.InvalidArgument, err.Error())
	}
	return a, nil
}

func (s *GRPCServer) GetAlarm(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	addr, err := address(req)
	if err != nil {
		return nil, err
	}
	a, err := s.service.Reader().Alarm(ctx, addr)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.EncodeAlarm(a), nil
}

func (s *GRPCServer) GetVault(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	addr, err := address(req)
	if err != nil {
		return nil, err
	}
	v, err := s.service.Reader().Vault(ctx, addr)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.EncodeVault(v), nil
}

func (s *GRPCServer) GetBalance(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	addr, err := address(req)
	if err != nil {
		return nil, err
	}
	b, err := s.service.Reader().Balance(ctx, addr)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.UInt64(b), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	d := s.service.Machine().Deployment()
	return rpc.EncodeInfo(&rpc.Info{
		Status:            "OK",
		Cluster:           d.Cluster,
		ProgramID:         d.ProgramID,
		AttestationDomain: d.AttestationDomain,
		Now:               s.clock.Now().Unix(),
	}), nil
}

func (s *GRPCServer) Airdrop(ctx context.Context, req *structpb.Struct) (*wrapperspb.UInt64Value, error) {
	to, lamports, err := rpc.DecodeAirdrop(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	b, err := s.service.Airdrop(ctx, to, lamports)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.UInt64(b), nil
}

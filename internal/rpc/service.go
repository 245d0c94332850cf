// Package rpc defines the wakevault.v1.Vault gRPC service. Messages are
// protobuf well-known types carried by the default proto codec: addresses
// and signed envelopes as BytesValue, records and receipts as Struct.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "wakevault.v1.Vault"

// Full method names.
const (
	MethodSubmit     = "/" + ServiceName + "/Submit"
	MethodGetAlarm   = "/" + ServiceName + "/GetAlarm"
	MethodGetVault   = "/" + ServiceName + "/GetVault"
	MethodGetBalance = "/" + ServiceName + "/GetBalance"
	MethodPing       = "/" + ServiceName + "/Ping"
	MethodAirdrop    = "/" + ServiceName + "/Airdrop"
)

// VaultServer is implemented by the server transport.
type VaultServer interface {
	// Submit takes an encoded wire.Envelope and returns a Receipt.
	Submit(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetAlarm(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetVault(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetBalance(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
	Ping(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Airdrop(context.Context, *structpb.Struct) (*wrapperspb.UInt64Value, error)
}

// RegisterVaultServer registers srv on s.
func RegisterVaultServer(s grpc.ServiceRegistrar, srv VaultServer) {
	s.RegisterService(&VaultServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(VaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var VaultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Submit", VaultServer.Submit),
		unary("GetAlarm", VaultServer.GetAlarm),
		unary("GetVault", VaultServer.GetVault),
		unary("GetBalance", VaultServer.GetBalance),
		unary("Ping", VaultServer.Ping),
		unary("Airdrop", VaultServer.Airdrop),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wakevault/v1/vault.proto",
}

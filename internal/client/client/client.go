package client

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) (*rpc.Info, error)
	Submit(ctx context.Context, env *wire.Envelope) (*rpc.Receipt, error)
	Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error)
	Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error)
	Balance(ctx context.Context, addr escrow.Address) (uint64, error)
	Airdrop(ctx context.Context, addr escrow.Address, lamports uint64) (uint64, error)
}

package vaults

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

type Repository interface {
	Get(ctx context.Context, addr escrow.Address) (*escrow.Vault, error)
	Create(ctx context.Context, v *escrow.Vault) error
	UpdateLamports(ctx context.Context, addr escrow.Address, lamports uint64) error
	Delete(ctx context.Context, addr escrow.Address) error
}

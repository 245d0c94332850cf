package balances

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Repository holds wallet balances. An address without a row has balance 0.
type Repository interface {
	Get(ctx context.Context, addr escrow.Address) (uint64, error)
	Set(ctx context.Context, addr escrow.Address, lamports uint64) error
}

package permits

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Repository stores consumed permit nonces. Records are never removed.
type Repository interface {
	Create(ctx context.Context, n *escrow.PermitNonce) error
}

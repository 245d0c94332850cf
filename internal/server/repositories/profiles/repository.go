package profiles

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

type Repository interface {
	Get(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error)
	Create(ctx context.Context, p *escrow.UserProfile) error
}

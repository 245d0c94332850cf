package alarms

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

type Repository interface {
	Get(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error)
	Create(ctx context.Context, a *escrow.Alarm) error
	Update(ctx context.Context, a *escrow.Alarm) error
	// Due lists open alarms with deadline <= now, oldest deadline first.
	// A limit of 0 means no limit.
	Due(ctx context.Context, now int64, limit int) ([]*escrow.Alarm, error)
}

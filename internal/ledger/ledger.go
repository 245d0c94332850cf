// Package ledger is the execution environment the escrow machine runs in.
// It authenticates envelopes, serializes conflicting requests by locking the
// accounts they name, supplies a trusted clock, and publishes events after a
// request has been committed.
package ledger

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// UpdateFunc runs inside one atomic unit. Returning an error discards every
// write made through accts.
type UpdateFunc func(ctx context.Context, accts escrow.Accounts) error

// Reader serves committed state to the read API and the keeper.
type Reader interface {
	Profile(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error)
	Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error)
	Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error)
	Balance(ctx context.Context, addr escrow.Address) (uint64, error)
	// DueAlarms lists open alarms whose deadline is at or before now, oldest
	// deadline first.
	DueAlarms(ctx context.Context, now int64, limit int) ([]*escrow.Alarm, error)
}

// Store is the account store behind the runtime.
type Store interface {
	Reader
	// Update locks keys for exclusive access, runs fn against a view that only
	// allows those keys, and commits its writes if fn returns nil.
	Update(ctx context.Context, keys []escrow.Address, fn UpdateFunc) error
}

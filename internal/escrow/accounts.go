package escrow

import "context"

// Accounts is the record store one Request executes against. Implementations
// must scope every read and write to a single atomic unit and return
// common.ErrNotFound for absent records and common.ErrAlreadyExists when an
// insert hits an existing key. Returned records are copies; changes are only
// persisted through the Update and Insert methods.
type Accounts interface {
	Profile(ctx context.Context, addr Address) (*UserProfile, error)
	InsertProfile(ctx context.Context, p *UserProfile) error

	Alarm(ctx context.Context, addr Address) (*Alarm, error)
	InsertAlarm(ctx context.Context, a *Alarm) error
	UpdateAlarm(ctx context.Context, a *Alarm) error

	Vault(ctx context.Context, addr Address) (*Vault, error)
	InsertVault(ctx context.Context, v *Vault) error
	UpdateVault(ctx context.Context, v *Vault) error
	DeleteVault(ctx context.Context, addr Address) error

	InsertPermitNonce(ctx context.Context, n *PermitNonce) error

	// Balance returns the native balance of addr; unknown addresses hold 0.
	Balance(ctx context.Context, addr Address) (uint64, error)
	SetBalance(ctx context.Context, addr Address, lamports uint64) error
}

// Package pgstore is the Postgres ledger.Store. Each Update runs in one
// database transaction that first takes an advisory lock per declared
// account.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/dbx"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/repomanager"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func New(db *sql.DB, repos repomanager.RepositoryManager) *Store {
	return &Store{db: db, repos: repos}
}

// LockKey maps an address onto the advisory lock space. Addresses are hashes
// or public keys, so their leading bytes are uniformly spread.
func LockKey(a escrow.Address) int64 {
	return int64(binary.BigEndian.Uint64(a[:8]))
}

func (s *Store) Update(ctx context.Context, keys []escrow.Address, fn ledger.UpdateFunc) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		locks := make([]int64, len(keys))
		for i, k := range keys {
			locks[i] = LockKey(k)
		}
		if err := dbx.LockXact(ctx, tx, locks); err != nil {
			return err
		}
		return fn(ctx, s.begin(tx, keys))
	})
}

func (s *Store) Profile(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error) {
	return s.repos.Profiles(s.db).Get(ctx, addr)
}

func (s *Store) Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	return s.repos.Alarms(s.db).Get(ctx, addr)
}

func (s *Store) Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error) {
	return s.repos.Vaults(s.db).Get(ctx, addr)
}

func (s *Store) Balance(ctx context.Context, addr escrow.Address) (uint64, error) {
	return s.repos.Balances(s.db).Get(ctx, addr)
}

func (s *Store) DueAlarms(ctx context.Context, now int64, limit int) ([]*escrow.Alarm, error) {
	return s.repos.Alarms(s.db).Due(ctx, now, limit)
}

type tx struct {
	db       dbx.DBTX
	repos    repomanager.RepositoryManager
	declared map[escrow.Address]struct{}
}

func (s *Store) begin(db dbx.DBTX, keys []escrow.Address) *tx {
	declared := make(map[escrow.Address]struct{}, len(keys))
	for _, k := range keys {
		declared[k] = struct{}{}
	}
	return &tx{db: db, repos: s.repos, declared: declared}
}

func (t *tx) check(addr escrow.Address) error {
	if _, ok := t.declared[addr]; !ok {
		return fmt.Errorf("%w: %s", common.ErrAccountNotDeclared, addr)
	}
	return nil
}

func (t *tx) Profile(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error) {
	if err := t.check(addr); err != nil {
		return nil, err
	}
	return t.repos.Profiles(t.db).Get(ctx, addr)
}

func (t *tx) InsertProfile(ctx context.Context, p *escrow.UserProfile) error {
	if err := t.check(p.Address); err != nil {
		return err
	}
	return t.repos.Profiles(t.db).Create(ctx, p)
}

func (t *tx) Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	if err := t.check(addr); err != nil {
		return nil, err
	}
	return t.repos.Alarms(t.db).Get(ctx, addr)
}

func (t *tx) InsertAlarm(ctx context.Context, a *escrow.Alarm) error {
	if err := t.check(a.Address); err != nil {
		return err
	}
	return t.repos.Alarms(t.db).Create(ctx, a)
}

func (t *tx) UpdateAlarm(ctx context.Context, a *escrow.Alarm) error {
	if err := t.check(a.Address); err != nil {
		return err
	}
	return t.repos.Alarms(t.db).Update(ctx, a)
}

func (t *tx) Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error) {
	if err := t.check(addr); err != nil {
		return nil, err
	}
	return t.repos.Vaults(t.db).Get(ctx, addr)
}

func (t *tx) InsertVault(ctx context.Context, v *escrow.Vault) error {
	if err := t.check(v.Address); err != nil {
		return err
	}
	return t.repos.Vaults(t.db).Create(ctx, v)
}

func (t *tx) UpdateVault(ctx context.Context, v *escrow.Vault) error {
	if err := t.check(v.Address); err != nil {
		return err
	}
	return t.repos.Vaults(t.db).UpdateLamports(ctx, v.Address, v.Lamports)
}

func (t *tx) DeleteVault(ctx context.Context, addr escrow.Address) error {
	if err := t.check(addr); err != nil {
		return err
	}
	return t.repos.Vaults(t.db).Delete(ctx, addr)
}

func (t *tx) InsertPermitNonce(ctx context.Context, n *escrow.PermitNonce) error {
	if err := t.check(n.Address); err != nil {
		return err
	}
	return t.repos.Permits(t.db).Create(ctx, n)
}

func (t *tx) Balance(ctx context.Context, addr escrow.Address) (uint64, error) {
	if err := t.check(addr); err != nil {
		return 0, err
	}
	return t.repos.Balances(t.db).Get(ctx, addr)
}

func (t *tx) SetBalance(ctx context.Context, addr escrow.Address, lamports uint64) error {
	if err := t.check(addr); err != nil {
		return err
	}
	return t.repos.Balances(t.db).Set(ctx, addr, lamports)
}

// Package memstore is an in-process ledger.Store. It is the default store of
// the development server and the store used by the escrow tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps committed records in maps guarded by mu. Writers additionally
// hold the per-address locks of every key they touch, so two updates never
// see each other's uncommitted state.
type Store struct {
	locks *keyLocks

	mu       sync.RWMutex
	profiles map[escrow.Address]*escrow.UserProfile
	alarms   map[escrow.Address]*escrow.Alarm
	vaults   map[escrow.Address]*escrow.Vault
	nonces   map[escrow.Address]*escrow.PermitNonce
	balances map[escrow.Address]*uint64
}

func New() *Store {
	return &Store{
		locks:    newKeyLocks(),
		profiles: make(map[escrow.Address]*escrow.UserProfile),
		alarms:   make(map[escrow.Address]*escrow.Alarm),
		vaults:   make(map[escrow.Address]*escrow.Vault),
		nonces:   make(map[escrow.Address]*escrow.PermitNonce),
		balances: make(map[escrow.Address]*uint64),
	}
}

func cloneProfile(p *escrow.UserProfile) *escrow.UserProfile {
	c := *p
	if p.TagHash != nil {
		tag := *p.TagHash
		c.TagHash = &tag
	}
	return &c
}

func cloneAlarm(a *escrow.Alarm) *escrow.Alarm { return a.Clone() }

func clonePlain[T any](v *T) *T {
	c := *v
	return &c
}

func (s *Store) Update(ctx context.Context, keys []escrow.Address, fn ledger.UpdateFunc) error {
	unlock, err := s.locks.lock(ctx, keys)
	if err != nil {
		return err
	}
	defer unlock()

	t := s.begin(keys)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.profiles.commit()
	t.alarms.commit()
	t.vaults.commit()
	t.nonces.commit()
	t.balances.commit()
	return nil
}

func (s *Store) Profile(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error) {
	return get(s, s.profiles, addr, cloneProfile)
}

func (s *Store) Alarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	return get(s, s.alarms, addr, cloneAlarm)
}

func (s *Store) Vault(ctx context.Context, addr escrow.Address) (*escrow.Vault, error) {
	return get(s, s.vaults, addr, clonePlain[escrow.Vault])
}

func (s *Store) Balance(ctx context.Context, addr escrow.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[addr]; ok {
		return *b, nil
	}
	return 0, nil
}

func (s *Store) DueAlarms(ctx context.Context, now int64, limit int) ([]*escrow.Alarm, error) {
	s.mu.RLock()
	var out []*escrow.Alarm
	for _, a := range s.alarms {
		if a.Status.Open() && a.Deadline <= now {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *escrow.Alarm) int {
		if a.Deadline != b.Deadline {
			if a.Deadline < b.Deadline {
				return -1
			}
			return 1
		}
		return slices.Compare(a.Address[:], b.Address[:])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func get[T any](s *Store, m map[escrow.Address]*T, addr escrow.Address, clone func(*T) *T) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := m[addr]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(v), nil
}

// table is the copy-on-write view of one record map inside an update.
// A nil entry in writes marks a deletion.
type table[T any] struct {
	mu     *sync.RWMutex
	base   map[escrow.Address]*T
	writes map[escrow.Address]*T
	clone  func(*T) *T
}

func newTable[T any](mu *sync.RWMutex, base map[escrow.Address]*T, clone func(*T) *T) *table[T] {
	return &table[T]{mu: mu, base: base, writes: make(map[escrow.Address]*T), clone: clone}
}

func (t *table[T]) get(k escrow.Address) (*T, bool) {
	if v, ok := t.writes[k]; ok {
		if v == nil {
			return nil, false
		}
		return t.clone(v), true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.base[k]
	if !ok {
		return nil, false
	}
	return t.clone(v), true
}

func (t *table[T]) put(k escrow.Address, v *T) {
	t.writes[k] = t.clone(v)
}

func (t *table[T]) del(k escrow.Address) {
	t.writes[k] = nil
}

// commit must be called with mu held for writing.
func (t *table[T]) commit() {
	for k, v := range t.writes {
		if v == nil {
			delete(t.base, k)
		} else {
			t.base[k] = v
		}
	}
}

type tx struct {
	declared map[escrow.Address]struct{}
	profiles *table[escrow.UserProfile]
	alarms   *table[escrow.Alarm]
	vaults   *table[escrow.Vault]
	nonces   *table[escrow.PermitNonce]
	balances *table[uint64]
}

func (s *Store) begin(keys []escrow.Address) *tx {
	declared := make(map[escrow.Address]struct{}, len(keys))
	for _, k := range keys {
		declared[k] = struct{}{}
	}
	return &tx{
		declared: declared,
		profiles: newTable(&s.mu, s.profiles, cloneProfile),
		alarms:   newTable(&s.mu, s.alarms, cloneAlarm),
		vaults:   newTable(&s.mu, s.vaults, clonePlain[escrow.Vault]),
		nonces:   newTable(&s.mu, s.nonces, clonePlain[escrow.PermitNonce]),
		balances: newTable(&s.mu, s.balances, clonePlain[uint64]),
	}
}

func (t *tx) check(addr escrow.Address) error {
	if _, ok := t.declared[addr]; !ok {
		return fmt.Errorf("%w: %s", common.ErrAccountNotDeclared, addr)
	}
	return nil
}

func load[T any](t *tx, tbl *table[T], addr escrow.Address) (*T, error) {
	if err := t.check(addr); err != nil {
		return nil, err
	}
	v, ok := tbl.get(addr)
	if !ok {
		return nil, common.ErrNotFound
	}
	return v, nil
}

func insert[T any](t *tx, tbl *table[T], addr escrow.Address, v *T) error {
	if err := t.check(addr); err != nil {
		return err
	}
	if _, ok := tbl.get(addr); ok {
		return common.ErrAlreadyExists
	}
	tbl.put(addr, v)
	return nil
}

func update[T any](t *tx, tbl *table[T], addr escrow.Address, v *T) error {
	if err := t.check(addr); err != nil {
		return err
	}
	if _, ok := tbl.get(addr); !ok {
		return common.ErrNotFound
	}
	tbl.put(addr, v)
	return nil
}

func (t *tx) Profile(_ context.Context, addr escrow.Address) (*escrow.UserProfile, error) {
	return load(t, t.profiles, addr)
}

func (t *tx) InsertProfile(_ context.Context, p *escrow.UserProfile) error {
	return insert(t, t.profiles, p.Address, p)
}

func (t *tx) Alarm(_ context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	return load(t, t.alarms, addr)
}

func (t *tx) InsertAlarm(_ context.Context, a *escrow.Alarm) error {
	return insert(t, t.alarms, a.Address, a)
}

func (t *tx) UpdateAlarm(_ context.Context, a *escrow.Alarm) error {
	return update(t, t.alarms, a.Address, a)
}

func (t *tx) Vault(_ context.Context, addr escrow.Address) (*escrow.Vault, error) {
	return load(t, t.vaults, addr)
}

func (t *tx) InsertVault(_ context.Context, v *escrow.Vault) error {
	return insert(t, t.vaults, v.Address, v)
}

func (t *tx) UpdateVault(_ context.Context, v *escrow.Vault) error {
	return update(t, t.vaults, v.Address, v)
}

func (t *tx) DeleteVault(_ context.Context, addr escrow.Address) error {
	if err := t.check(addr); err != nil {
		return err
	}
	if _, ok := t.vaults.get(addr); !ok {
		return common.ErrNotFound
	}
	t.vaults.del(addr)
	return nil
}

func (t *tx) InsertPermitNonce(_ context.Context, n *escrow.PermitNonce) error {
	return insert(t, t.nonces, n.Address, n)
}

func (t *tx) Balance(_ context.Context, addr escrow.Address) (uint64, error) {
	if err := t.check(addr); err != nil {
		return 0, err
	}
	if b, ok := t.balances.get(addr); ok {
		return *b, nil
	}
	return 0, nil
}

func (t *tx) SetBalance(_ context.Context, addr escrow.Address, lamports uint64) error {
	if err := t.check(addr); err != nil {
		return err
	}
	t.balances.put(addr, &lamports)
	return nil
}

package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

func addr(b byte) escrow.Address {
	var a escrow.Address
	a[0] = b
	return a
}

func TestUpdate_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &escrow.Alarm{Address: addr(1), Owner: addr(2), RemainingAmount: 10}

	err := s.Update(ctx, []escrow.Address{addr(1), addr(2)}, func(ctx context.Context, accts escrow.Accounts) error {
		require.NoError(t, accts.InsertAlarm(ctx, a))
		return accts.SetBalance(ctx, addr(2), 99)
	})
	require.NoError(t, err)

	got, err := s.Alarm(ctx, addr(1))
	require.NoError(t, err)
	assert.Equal(t, a, got)
	bal, err := s.Balance(ctx, addr(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), bal)
}

func TestUpdate_DiscardsOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		require.NoError(t, accts.InsertVault(ctx, &escrow.Vault{Address: addr(1), Lamports: 5}))
		require.NoError(t, accts.SetBalance(ctx, addr(1), 7))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Vault(ctx, addr(1))
	require.ErrorIs(t, err, common.ErrNotFound)
	bal, err := s.Balance(ctx, addr(1))
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestUpdate_ReadYourWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		require.NoError(t, accts.InsertVault(ctx, &escrow.Vault{Address: addr(1), Lamports: 5}))
		v, err := accts.Vault(ctx, addr(1))
		require.NoError(t, err)
		assert.Equal(t, uint64(5), v.Lamports)

		require.NoError(t, accts.DeleteVault(ctx, addr(1)))
		_, err = accts.Vault(ctx, addr(1))
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, accts.UpdateVault(ctx, v), common.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		return accts.InsertAlarm(ctx, &escrow.Alarm{Address: addr(1), SnoozeCount: 1})
	}))

	require.NoError(t, s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		a, err := accts.Alarm(ctx, addr(1))
		require.NoError(t, err)
		a.SnoozeCount = 9 // not saved
		return nil
	}))

	a, err := s.Alarm(ctx, addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), a.SnoozeCount)
}

func TestUpdate_DuplicateInsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := &escrow.PermitNonce{Address: addr(3), Nonce: 1}

	err := s.Update(ctx, []escrow.Address{addr(3)}, func(ctx context.Context, accts escrow.Accounts) error {
		require.NoError(t, accts.InsertPermitNonce(ctx, n))
		return accts.InsertPermitNonce(ctx, n)
	})
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestUpdate_UndeclaredAccount(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		_, err := accts.Balance(ctx, addr(2))
		return err
	})
	require.ErrorIs(t, err, common.ErrAccountNotDeclared)
}

func TestUpdate_CanceledBeforeCommit(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, []escrow.Address{addr(1)}, func(ctx context.Context, accts escrow.Accounts) error {
		cancel()
		return accts.SetBalance(ctx, addr(1), 1)
	})
	require.ErrorIs(t, err, context.Canceled)

	bal, _ := s.Balance(context.Background(), addr(1))
	assert.Zero(t, bal)
}

func TestUpdate_SerializesConflictingKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// alternate key order to exercise sorted acquisition
			keys := []escrow.Address{addr(1), addr(2)}
			if i%2 == 1 {
				keys = []escrow.Address{addr(2), addr(1)}
			}
			err := s.Update(ctx, keys, func(ctx context.Context, accts escrow.Accounts) error {
				a, err := accts.Balance(ctx, addr(1))
				if err != nil {
					return err
				}
				b, err := accts.Balance(ctx, addr(2))
				if err != nil {
					return err
				}
				if err := accts.SetBalance(ctx, addr(1), a+1); err != nil {
					return err
				}
				return accts.SetBalance(ctx, addr(2), b+2)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	a, _ := s.Balance(ctx, addr(1))
	b, _ := s.Balance(ctx, addr(2))
	assert.Equal(t, uint64(workers), a)
	assert.Equal(t, uint64(2*workers), b)
	assert.Empty(t, s.locks.m)
}

func TestLock_WaitRespectsContext(t *testing.T) {
	l := newKeyLocks()
	unlock, err := l.lock(context.Background(), []escrow.Address{addr(1)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.lock(ctx, []escrow.Address{addr(0), addr(1)})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, l.m)

	unlock, err = l.lock(context.Background(), []escrow.Address{addr(0), addr(1)})
	require.NoError(t, err)
	unlock()
}

func TestDueAlarms(t *testing.T) {
	s := New()
	ctx := context.Background()
	keys := []escrow.Address{addr(1), addr(2), addr(3), addr(4)}
	require.NoError(t, s.Update(ctx, keys, func(ctx context.Context, accts escrow.Accounts) error {
		for _, a := range []*escrow.Alarm{
			{Address: addr(1), Deadline: 300, Status: escrow.StatusCreated},
			{Address: addr(2), Deadline: 100, Status: escrow.StatusAcknowledged},
			{Address: addr(3), Deadline: 50, Status: escrow.StatusClaimed},
			{Address: addr(4), Deadline: 900, Status: escrow.StatusCreated},
		} {
			if err := accts.InsertAlarm(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	due, err := s.DueAlarms(ctx, 300, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, addr(2), due[0].Address)
	assert.Equal(t, addr(1), due[1].Address)

	due, err = s.DueAlarms(ctx, 300, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

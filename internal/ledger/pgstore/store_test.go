package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/repomanager"
)

const lockQuery = `^SELECT pg_advisory_xact_lock\(\$1\)$`

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, repomanager.NewPostgresRepositoryManager()), mock
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, int64(0x0100000000000000), LockKey(escrow.Address{1}))
	assert.Equal(t, int64(-1), LockKey(escrow.Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}))
}

func TestUpdate_LocksThenCommits(t *testing.T) {
	s, mock := newStore(t)
	a, b := escrow.Address{2}, escrow.Address{1}

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(LockKey(b)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(lockQuery).WithArgs(LockKey(a)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM balances`).WithArgs(a[:]).WillReturnRows(sqlmock.NewRows([]string{"lamports"}).AddRow("10"))
	mock.ExpectExec(`INSERT\s+INTO\s+balances`).WithArgs(a[:], "4").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+balances`).WithArgs(b[:], "6").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Update(context.Background(), []escrow.Address{a, b}, func(ctx context.Context, accts escrow.Accounts) error {
		bal, err := accts.Balance(ctx, a)
		if err != nil {
			return err
		}
		if err := accts.SetBalance(ctx, a, bal-6); err != nil {
			return err
		}
		return accts.SetBalance(ctx, b, 6)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s, mock := newStore(t)
	a := escrow.Address{1}
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(LockKey(a)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT\s+INTO\s+balances`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.Update(context.Background(), []escrow.Address{a}, func(ctx context.Context, accts escrow.Accounts) error {
		if err := accts.SetBalance(ctx, a, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_UndeclaredAccount(t *testing.T) {
	s, mock := newStore(t)
	a := escrow.Address{1}

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Update(context.Background(), []escrow.Address{a}, func(ctx context.Context, accts escrow.Accounts) error {
		_, err := accts.Alarm(ctx, escrow.Address{9})
		return err
	})
	require.ErrorIs(t, err, common.ErrAccountNotDeclared)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_LockFailure(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	called := false
	err := s.Update(context.Background(), []escrow.Address{{1}}, func(context.Context, escrow.Accounts) error {
		called = true
		return nil
	})
	require.ErrorContains(t, err, "lock timeout")
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_MapsNotFound(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`FROM\s+alarms`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+vaults`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+profiles`).WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	_, err := s.Alarm(ctx, escrow.Address{1})
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.Vault(ctx, escrow.Address{1})
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.Profile(ctx, escrow.Address{1})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_WithMachine(t *testing.T) {
	s, mock := newStore(t)
	dep := escrow.Deployment{Cluster: escrow.DefaultCluster, ProgramID: escrow.Address{0xf0}, AttestationDomain: escrow.DefaultAttestationDomain}
	m := escrow.NewMachine(escrow.DefaultParams(), dep)
	owner := escrow.Address{0x01}
	profile := escrow.ProfileAddress(dep.ProgramID, owner)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(lockQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT\s+INTO\s+profiles`).
		WithArgs(profile[:], owner[:], nil, int64(1234)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := &escrow.Request{Signer: owner, Accounts: []escrow.Address{profile, owner}, Instruction: escrow.Initialize{}}
	err := s.Update(context.Background(), req.Accounts, func(ctx context.Context, accts escrow.Accounts) error {
		_, err := m.Execute(ctx, accts, 1234, req)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

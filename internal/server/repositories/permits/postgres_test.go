package permits

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

func TestCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)
	n := &escrow.PermitNonce{Address: escrow.Address{1}, Alarm: escrow.Address{2}, Nonce: 42, Owner: escrow.Address{3}, ExpiresAt: 77}

	q := `(?s)^INSERT\s+INTO\s+permit_nonces\s*\(address,\s*alarm,\s*nonce,\s*owner,\s*expires_at\)`
	mock.ExpectExec(q).WithArgs(n.Address[:], n.Alarm[:], "42", n.Owner[:], int64(77)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WillReturnError(errors.New("db down"))

	require.NoError(t, repo.Create(context.Background(), n))
	require.ErrorIs(t, repo.Create(context.Background(), n), common.ErrAlreadyExists)
	require.ErrorContains(t, repo.Create(context.Background(), n), "db error")
	require.NoError(t, mock.ExpectationsWereMet())
}

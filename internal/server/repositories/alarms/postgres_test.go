package alarms

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

var cols = []string{"address", "owner", "alarm_id", "alarm_time", "deadline", "initial_amount",
	"remaining_amount", "penalty_route", "penalty_destination", "snooze_count", "status"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sample() *escrow.Alarm {
	dest := escrow.Address{0x0d}
	return &escrow.Alarm{
		Address:            escrow.Address{0x0a},
		Owner:              escrow.Address{0x0b},
		AlarmID:            18446744073709551615,
		AlarmTime:          2000,
		Deadline:           3000,
		InitialAmount:      100_000_000,
		RemainingAmount:    90_000_000,
		PenaltyRoute:       escrow.RouteBuddy,
		PenaltyDestination: &dest,
		SnoozeCount:        1,
		Status:             escrow.StatusCreated,
	}
}

func row(a *escrow.Alarm) []driver.Value {
	var dest any
	if a.PenaltyDestination != nil {
		dest = a.PenaltyDestination[:]
	}
	return []driver.Value{a.Address[:], a.Owner[:], "18446744073709551615", a.AlarmTime, a.Deadline,
		"100000000", "90000000", int64(a.PenaltyRoute), dest, int64(a.SnoozeCount), int64(a.Status)}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	want := sample()

	mock.ExpectQuery(`(?s)^SELECT\s+address,.*FROM\s+alarms\s+WHERE\s+address\s*=\s*\$1$`).
		WithArgs(want.Address[:]).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row(want)...))

	got, err := repo.Get(context.Background(), want.Address)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NullDestination(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	want := sample()
	want.PenaltyRoute = escrow.RouteBurn
	want.PenaltyDestination = nil

	mock.ExpectQuery(`FROM\s+alarms`).WillReturnRows(sqlmock.NewRows(cols).AddRow(row(want)...))

	got, err := repo.Get(context.Background(), want.Address)
	require.NoError(t, err)
	assert.Nil(t, got.PenaltyDestination)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+alarms`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), escrow.Address{1})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	a := sample()

	q := `(?s)^INSERT\s+INTO\s+alarms.*ON\s+CONFLICT\s+\(address\)\s+DO\s+NOTHING$`
	mock.ExpectExec(q).
		WithArgs(a.Address[:], a.Owner[:], "18446744073709551615", a.AlarmTime, a.Deadline,
			"100000000", "90000000", int16(2), a.PenaltyDestination[:], int16(1), int16(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WillReturnError(errors.New("db down"))

	require.NoError(t, repo.Create(context.Background(), a))
	require.ErrorIs(t, repo.Create(context.Background(), a), common.ErrAlreadyExists)
	require.ErrorContains(t, repo.Create(context.Background(), a), "db error: db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	a := sample()
	a.Status = escrow.StatusSlashed
	a.RemainingAmount = 0

	q := `(?s)^UPDATE\s+alarms\s+SET\s+alarm_time\s*=\s*\$2,.*WHERE\s+address\s*=\s*\$1$`
	mock.ExpectExec(q).
		WithArgs(a.Address[:], a.AlarmTime, a.Deadline, "0", int16(1), int16(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Update(context.Background(), a))
	require.ErrorIs(t, repo.Update(context.Background(), a), common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDue(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	a, b := sample(), sample()
	b.Address = escrow.Address{0x0c}

	mock.ExpectQuery(`(?s)WHERE\s+status\s+IN\s+\(\$1,\s*\$2\)\s+AND\s+deadline\s*<=\s*\$3.*ORDER\s+BY\s+deadline,\s*address.*LIMIT\s+NULLIF\(\$4,\s*0\)`).
		WithArgs(int16(0), int16(1), int64(5000), 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row(a)...).AddRow(row(b)...))

	got, err := repo.Due(context.Background(), 5000, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.Address, got[1].Address)
	require.NoError(t, mock.ExpectationsWereMet())
}

package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/dbx"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

const columns = `address, owner, alarm_id, alarm_time, deadline, initial_amount, remaining_amount,
		penalty_route, penalty_dest, snooze_count, status, label, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *Entry) error {
	a := &e.Alarm
	var dest any
	if a.PenaltyDestination != nil {
		dest = a.PenaltyDestination[:]
	}

	query := `INSERT INTO alarms (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			alarm_time = excluded.alarm_time,
			deadline = excluded.deadline,
			remaining_amount = excluded.remaining_amount,
			snooze_count = excluded.snooze_count,
			status = excluded.status,
			label = CASE WHEN excluded.label = '' THEN alarms.label ELSE excluded.label END,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		a.Address[:], a.Owner[:], dbx.Numeric(a.AlarmID), a.AlarmTime, a.Deadline,
		dbx.Numeric(a.InitialAmount), dbx.Numeric(a.RemainingAmount),
		int(a.PenaltyRoute), dest, int(a.SnoozeCount), int(a.Status), e.Label, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert alarm: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                 Entry
		addr, owner       dbx.Bytes32
		dest              *dbx.Bytes32
		id, initial, rest dbx.Numeric
		route, snoozes    int
		status            int
	)
	err := row.Scan(&addr, &owner, &id, &e.Alarm.AlarmTime, &e.Alarm.Deadline, &initial, &rest,
		&route, &dest, &snoozes, &status, &e.Label, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a := &e.Alarm
	a.Address = escrow.Address(addr)
	a.Owner = escrow.Address(owner)
	a.AlarmID = uint64(id)
	a.InitialAmount = uint64(initial)
	a.RemainingAmount = uint64(rest)
	a.PenaltyRoute = escrow.Route(route)
	if dest != nil {
		d := escrow.Address(*dest)
		a.PenaltyDestination = &d
	}
	a.SnoozeCount = uint8(snoozes)
	a.Status = escrow.Status(status)
	return &e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, addr escrow.Address) (*Entry, error) {
	query := `SELECT ` + columns + ` FROM alarms WHERE address = ?`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, addr[:]))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select alarm: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, owner escrow.Address) ([]Entry, error) {
	query := `SELECT ` + columns + ` FROM alarms WHERE owner = ? ORDER BY alarm_time, address`

	rows, err := r.db.QueryContext(ctx, query, owner[:])
	if err != nil {
		return nil, fmt.Errorf("failed to select alarms: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

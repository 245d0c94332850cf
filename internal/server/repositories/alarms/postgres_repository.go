package alarms

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
		penalty_route, penalty_destination, snooze_count, status`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row scanner) (*escrow.Alarm, error) {
	var (
		addr, owner       dbx.Bytes32
		dest              *dbx.Bytes32
		id, initial, rest dbx.Numeric
		route, snoozes    int16
		status            int16
		a                 escrow.Alarm
	)
	err := row.Scan(&addr, &owner, &id, &a.AlarmTime, &a.Deadline, &initial, &rest,
		&route, &dest, &snoozes, &status)
	if err != nil {
		return nil, err
	}
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
	return &a, nil
}

func destinationArg(d *escrow.Address) any {
	if d == nil {
		return nil
	}
	return d[:]
}

func (r *PostgresRepository) Get(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	query := `SELECT ` + columns + ` FROM alarms WHERE address = $1`

	a, err := scanAlarm(r.db.QueryRowContext(ctx, query, addr[:]))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *escrow.Alarm) error {
	query :=
		`INSERT INTO alarms (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (address) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		a.Address[:], a.Owner[:], dbx.Numeric(a.AlarmID), a.AlarmTime, a.Deadline,
		dbx.Numeric(a.InitialAmount), dbx.Numeric(a.RemainingAmount),
		int16(a.PenaltyRoute), destinationArg(a.PenaltyDestination), int16(a.SnoozeCount), int16(a.Status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

// Update writes the mutable fields of a.
func (r *PostgresRepository) Update(ctx context.Context, a *escrow.Alarm) error {
	query :=
		`UPDATE alarms
		 SET alarm_time = $2, deadline = $3, remaining_amount = $4, snooze_count = $5, status = $6
		 WHERE address = $1`

	res, err := r.db.ExecContext(ctx, query,
		a.Address[:], a.AlarmTime, a.Deadline, dbx.Numeric(a.RemainingAmount), int16(a.SnoozeCount), int16(a.Status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Due(ctx context.Context, now int64, limit int) ([]*escrow.Alarm, error) {
	query :=
		`SELECT ` + columns + ` FROM alarms
		 WHERE status IN ($1, $2) AND deadline <= $3
		 ORDER BY deadline, address
		 LIMIT NULLIF($4, 0)`

	rows, err := r.db.QueryContext(ctx, query,
		int16(escrow.StatusCreated), int16(escrow.StatusAcknowledged), now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*escrow.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/dbx"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, addr escrow.Address) (*escrow.Vault, error) {
	query :=
		`SELECT address, alarm, owner, lamports FROM vaults
		 WHERE address = $1`

	var (
		a, alarm, owner dbx.Bytes32
		lamports        dbx.Numeric
	)
	err := r.db.QueryRowContext(ctx, query, addr[:]).Scan(&a, &alarm, &owner, &lamports)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &escrow.Vault{
		Address:  escrow.Address(a),
		Alarm:    escrow.Address(alarm),
		Owner:    escrow.Address(owner),
		Lamports: uint64(lamports),
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, v *escrow.Vault) error {
	query :=
		`INSERT INTO vaults (address, alarm, owner, lamports)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, v.Address[:], v.Alarm[:], v.Owner[:], dbx.Numeric(v.Lamports))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrAlreadyExists)
}

func (r *PostgresRepository) UpdateLamports(ctx context.Context, addr escrow.Address, lamports uint64) error {
	query := `UPDATE vaults SET lamports = $2 WHERE address = $1`

	res, err := r.db.ExecContext(ctx, query, addr[:], dbx.Numeric(lamports))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrNotFound)
}

func (r *PostgresRepository) Delete(ctx context.Context, addr escrow.Address) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaults WHERE address = $1`, addr[:])
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrNotFound)
}

// expectOne returns none when the statement touched no row.
func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

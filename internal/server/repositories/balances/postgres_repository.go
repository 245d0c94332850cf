package balances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/dbx"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, addr escrow.Address) (uint64, error) {
	var lamports dbx.Numeric
	err := r.db.QueryRowContext(ctx, `SELECT lamports FROM balances WHERE address = $1`, addr[:]).Scan(&lamports)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uint64(lamports), nil
}

func (r *PostgresRepository) Set(ctx context.Context, addr escrow.Address, lamports uint64) error {
	query :=
		`INSERT INTO balances (address, lamports)
		 VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET lamports = EXCLUDED.lamports`

	if _, err := r.db.ExecContext(ctx, query, addr[:], dbx.Numeric(lamports)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

package permits

import (
	"context"
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

func (r *PostgresRepository) Create(ctx context.Context, n *escrow.PermitNonce) error {
	query :=
		`INSERT INTO permit_nonces (address, alarm, nonce, owner, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (address) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, n.Address[:], n.Alarm[:], dbx.Numeric(n.Nonce), n.Owner[:], n.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

package profiles

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

func (r *PostgresRepository) Get(ctx context.Context, addr escrow.Address) (*escrow.UserProfile, error) {
	query :=
		`SELECT address, owner, tag_hash, created_at FROM profiles
		 WHERE address = $1`

	var (
		a, owner dbx.Bytes32
		tag      *dbx.Bytes32
		p        escrow.UserProfile
	)
	err := r.db.QueryRowContext(ctx, query, addr[:]).Scan(&a, &owner, &tag, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	p.Address = escrow.Address(a)
	p.Owner = escrow.Address(owner)
	if tag != nil {
		h := [32]byte(*tag)
		p.TagHash = &h
	}
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *escrow.UserProfile) error {
	query :=
		`INSERT INTO profiles (address, owner, tag_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO NOTHING`

	var tag any
	if p.TagHash != nil {
		tag = p.TagHash[:]
	}
	res, err := r.db.ExecContext(ctx, query, p.Address[:], p.Owner[:], tag, p.CreatedAt)
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

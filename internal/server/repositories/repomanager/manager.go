package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wakevault/internal/dbx"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/alarms"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/balances"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/permits"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/vaults"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	Alarms(db dbx.DBTX) alarms.Repository
	Vaults(db dbx.DBTX) vaults.Repository
	Permits(db dbx.DBTX) permits.Repository
	Balances(db dbx.DBTX) balances.Repository
}

// Package book is the CLI's local record of the alarms it has created or
// looked at, so that listing works without a server round trip.
package book

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Entry is a cached alarm plus local-only fields.
type Entry struct {
	Alarm escrow.Alarm
	// Label is a free-form note set at creation time.
	Label string
	// UpdatedAt is when the entry was last refreshed from the server.
	UpdatedAt int64
}

type Repository interface {
	// Upsert stores the alarm. An empty label keeps the existing one.
	Upsert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, addr escrow.Address) (*Entry, error)
	// List returns the owner's alarms ordered by alarm time.
	List(ctx context.Context, owner escrow.Address) ([]Entry, error)
}

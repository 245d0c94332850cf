// Package events delivers committed escrow events to the outside world:
// the structured log, a Redis stream and a batched S3 archive.
package events

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Publisher receives the events of one committed request. Publishers run
// after commit, so an error here never undoes the request.
type Publisher interface {
	Publish(ctx context.Context, events []escrow.Event) error
}

// Discard drops everything.
type Discard struct{}

func (Discard) Publish(context.Context, []escrow.Event) error { return nil }

// Multi fans events out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events []escrow.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

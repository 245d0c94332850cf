package events

import (
	"context"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/logging"
)

// LogPublisher writes one log line per event and one per transfer.
type LogPublisher struct {
	logger logging.Logger
}

func NewLogPublisher(l logging.Logger) *LogPublisher {
	return &LogPublisher{logger: l.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, events []escrow.Event) error {
	for _, e := range events {
		p.logger.Info(ctx, "event",
			"kind", string(e.Kind),
			"account", e.Account.String(),
			"owner", e.Owner.String(),
			"alarm_id", e.AlarmID,
			"amount", e.Amount,
			"timestamp", e.Timestamp,
		)
		for _, t := range e.Transfers {
			p.logger.Info(ctx, "transfer",
				"kind", string(e.Kind),
				"from", t.From.String(),
				"to", t.To.String(),
				"amount", t.Amount,
				"reason", t.Reason,
			)
		}
	}
	return nil
}

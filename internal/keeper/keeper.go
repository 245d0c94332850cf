// Package keeper runs the permissionless liveness actor: on a cron schedule
// it settles alarms whose deadline has passed so deposits do not sit in
// escrow forever. The keeper is an ordinary signer; its requests go through
// the same validation as anyone else's and losing a race to another caller
// is expected.
package keeper

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/logging"
	"github.com/dmitrijs2005/wakevault/internal/timex"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

// Runtime is the part of ledger.Runtime the keeper drives.
type Runtime interface {
	Reader() ledger.Reader
	Machine() *escrow.Machine
	Submit(ctx context.Context, env *wire.Envelope) (*escrow.Result, error)
}

// Observer counts keeper actions by op and result.
type Observer interface {
	ObserveKeeper(op, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveKeeper(string, string) {}

// Keeper results reported to the Observer.
const (
	ResultSettled  = "settled"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

type Keeper struct {
	rt       Runtime
	key      ed25519.PrivateKey
	addr     escrow.Address
	clock    timex.Clock
	logger   logging.Logger
	observer Observer
	batch    int

	mu sync.Mutex // one pass at a time
}

type Option func(*Keeper)

func WithObserver(o Observer) Option {
	return func(k *Keeper) { k.observer = o }
}

// WithBatch limits how many due alarms one pass looks at.
func WithBatch(n int) Option {
	return func(k *Keeper) { k.batch = n }
}

func New(rt Runtime, key ed25519.PrivateKey, clock timex.Clock, logger logging.Logger, opts ...Option) (*Keeper, error) {
	addr, err := escrow.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	k := &Keeper{
		rt:       rt,
		key:      key,
		addr:     addr,
		clock:    clock,
		logger:   logger.With("component", "keeper"),
		observer: nopObserver{},
		batch:    100,
	}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

// Address is the keeper's signing address. Slashes pay nothing to it, but
// it appears as caller in events.
func (k *Keeper) Address() escrow.Address {
	return k.addr
}

// Pass is the outcome of one RunOnce.
type Pass struct {
	Scanned  int
	Settled  int
	Skipped  int
	Rejected int
	Failed   int
}

// RunOnce scans due alarms and submits one settling request per alarm it
// may act on.
func (k *Keeper) RunOnce(ctx context.Context) (Pass, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.clock.Now().Unix()
	due, err := k.rt.Reader().DueAlarms(ctx, now, k.batch)
	if err != nil {
		return Pass{}, err
	}

	p := Pass{Scanned: len(due)}
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		ins, accounts, ok := k.plan(a, now)
		if !ok {
			p.Skipped++
			continue
		}
		op := ins.Op().String()
		env, err := wire.Sign(k.key, ins, accounts)
		if err != nil {
			return p, err
		}
		_, err = k.rt.Submit(ctx, env)
		switch {
		case err == nil:
			p.Settled++
			k.observer.ObserveKeeper(op, ResultSettled)
			k.logger.Info(ctx, "alarm settled", "op", op, "alarm", a.Address.String())
		case ledger.IsRejection(err):
			p.Rejected++
			k.observer.ObserveKeeper(op, ResultRejected)
		default:
			p.Failed++
			k.observer.ObserveKeeper(op, ResultFailed)
			k.logger.Error(ctx, "settle alarm", "op", op, "alarm", a.Address.String(), "error", err.Error())
		}
	}
	return p, nil
}

// plan picks the request that settles a at now, if the keeper may send one.
func (k *Keeper) plan(a *escrow.Alarm, now int64) (escrow.Instruction, []escrow.Address, bool) {
	m := k.rt.Machine()
	params := m.Params()
	vault := escrow.VaultAddress(m.Deployment().ProgramID, a.Address)

	w, err := escrow.WindowsAt(params, a, now)
	if err != nil || w.Base != escrow.WindowSlash || w.ClaimGrace {
		return nil, nil, false
	}

	if a.Status == escrow.StatusAcknowledged {
		return escrow.Sweep{}, []escrow.Address{a.Address, vault, a.Owner, k.addr}, true
	}
	if a.Status != escrow.StatusCreated || w.BuddyOnlySlash {
		return nil, nil, false
	}

	var recipient escrow.Address
	switch {
	case a.PenaltyRoute == escrow.RouteBurn:
		recipient = escrow.BurnSink
	case a.PenaltyDestination != nil:
		recipient = *a.PenaltyDestination
	default:
		return nil, nil, false
	}
	return escrow.Slash{}, []escrow.Address{a.Address, vault, recipient, k.addr}, true
}

// Schedule registers RunOnce on c. Errors are logged; the next tick retries.
func (k *Keeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		p, err := k.RunOnce(ctx)
		if err != nil {
			k.logger.Error(ctx, "keeper pass", "error", err.Error())
			return
		}
		if p.Scanned > 0 {
			k.logger.Info(ctx, "keeper pass", "scanned", p.Scanned, "settled", p.Settled,
				"skipped", p.Skipped, "rejected", p.Rejected, "failed", p.Failed)
		}
	})
}

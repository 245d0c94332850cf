package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/events"
	"github.com/dmitrijs2005/wakevault/internal/logging"
	"github.com/dmitrijs2005/wakevault/internal/timex"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

// Recorder receives per-request measurements.
type Recorder interface {
	ObserveRequest(op string, outcome string, d time.Duration)
	ObserveTransfer(reason string, amount uint64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, time.Duration) {}
func (nopRecorder) ObserveTransfer(string, uint64)               {}

// Runtime executes signed requests against a Store.
type Runtime struct {
	machine   *escrow.Machine
	store     Store
	clock     timex.Clock
	logger    logging.Logger
	publisher events.Publisher
	recorder  Recorder
	faucetMax uint64
}

type Option func(*Runtime)

// WithPublisher sets where committed events go.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runtime) { r.publisher = p }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runtime) { r.recorder = rec }
}

// WithFaucet enables Airdrop with a per-call limit.
func WithFaucet(limit uint64) Option {
	return func(r *Runtime) { r.faucetMax = limit }
}

func NewRuntime(m *escrow.Machine, store Store, clock timex.Clock, logger logging.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		machine:   m,
		store:     store,
		clock:     clock,
		logger:    logger,
		publisher: events.Discard{},
		recorder:  nopRecorder{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runtime) Machine() *escrow.Machine {
	return r.machine
}

func (r *Runtime) Reader() Reader {
	return r.store
}

// Submit authenticates env and executes it.
func (r *Runtime) Submit(ctx context.Context, env *wire.Envelope) (*escrow.Result, error) {
	req, err := env.Open()
	if err != nil {
		r.recorder.ObserveRequest("unknown", "rejected", 0)
		return nil, err
	}
	return r.Execute(ctx, req)
}

// Execute runs an already authenticated request in one atomic unit. The
// clock is read once, after the request's accounts are locked.
func (r *Runtime) Execute(ctx context.Context, req *escrow.Request) (*escrow.Result, error) {
	start := time.Now()
	op := "unknown"
	if req.Instruction != nil {
		op = req.Instruction.Op().String()
	}

	var res *escrow.Result
	var now int64
	err := r.store.Update(ctx, req.Accounts, func(ctx context.Context, accts escrow.Accounts) error {
		now = r.clock.Now().Unix()
		var err error
		res, err = r.machine.Execute(ctx, accts, now, req)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		r.recorder.ObserveRequest(op, outcome(err), elapsed)
		r.logger.Warn(ctx, "request rejected", "op", op, "signer", req.Signer.String(), "error", err.Error())
		return nil, err
	}

	r.recorder.ObserveRequest(op, "ok", elapsed)
	for _, t := range res.Transfers {
		r.recorder.ObserveTransfer(t.Reason, t.Amount)
	}
	r.logger.Info(ctx, "request committed", "op", op, "signer", req.Signer.String(), "now", now, "events", len(res.Events))

	if err := r.publisher.Publish(ctx, res.Events); err != nil {
		r.logger.Error(ctx, "publish events", "op", op, "error", err.Error())
	}
	return res, nil
}

func outcome(err error) string {
	if k := escrow.KindOf(err); k != escrow.KindUnknown {
		return k.String()
	}
	return "error"
}

// Airdrop credits amount to addr. It only works when the faucet is enabled.
func (r *Runtime) Airdrop(ctx context.Context, addr escrow.Address, amount uint64) (uint64, error) {
	if r.faucetMax == 0 {
		return 0, common.ErrFaucetDisabled
	}
	if amount == 0 || amount > r.faucetMax {
		return 0, fmt.Errorf("%w: airdrop amount must be in [1, %d]", common.ErrMalformedRequest, r.faucetMax)
	}

	var balance uint64
	err := r.store.Update(ctx, []escrow.Address{addr}, func(ctx context.Context, accts escrow.Accounts) error {
		bal, err := accts.Balance(ctx, addr)
		if err != nil {
			return err
		}
		if bal+amount < bal {
			return escrow.ErrOverflow
		}
		balance = bal + amount
		return accts.SetBalance(ctx, addr, balance)
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info(ctx, "airdrop", "to", addr.String(), "amount", amount)
	return balance, nil
}

// IsRejection reports whether err is a validation failure of the request as
// opposed to an infrastructure error.
func IsRejection(err error) bool {
	return escrow.KindOf(err) != escrow.KindUnknown ||
		errors.Is(err, common.ErrInvalidSignature) ||
		errors.Is(err, common.ErrMalformedRequest) ||
		errors.Is(err, common.ErrAccountNotDeclared)
}

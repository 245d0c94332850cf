package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
)

type handler func(x *execution) error

// Machine dispatches requests to their handlers. It holds no mutable state
// and is safe for concurrent use.
type Machine struct {
	params     Params
	deployment Deployment
	handlers   map[Op]handler
}

func NewMachine(p Params, d Deployment) *Machine {
	m := &Machine{params: p, deployment: d}
	m.handlers = map[Op]handler{
		OpInitialize:          handleInitialize,
		OpCreateAlarm:         handleCreateAlarm,
		OpAcknowledge:         handleAcknowledge,
		OpAcknowledgeAttested: handleAcknowledgeAttested,
		OpClaim:               handleClaim,
		OpSnooze:              handleSnooze,
		OpSlash:               handleSlash,
		OpEmergencyRefund:     handleEmergencyRefund,
		OpSweep:               handleSweep,
	}
	return m
}

func (m *Machine) Params() Params {
	return m.params
}

func (m *Machine) Deployment() Deployment {
	return m.deployment
}

// Execute applies req against accts at time now. On error the caller must
// discard every write made through accts.
func (m *Machine) Execute(ctx context.Context, accts Accounts, now int64, req *Request) (*Result, error) {
	if req == nil || req.Instruction == nil {
		return nil, ErrInvalidInstruction
	}
	op := req.Instruction.Op()
	h, ok := m.handlers[op]
	if !ok {
		return nil, ErrInvalidInstruction
	}
	if len(req.Accounts) != op.AccountCount() {
		return nil, ErrInvalidAccountCount
	}

	x := &execution{
		ctx:     ctx,
		accts:   accts,
		params:  m.params,
		dep:     m.deployment,
		now:     now,
		req:     req,
		custody: NewCustodian(accts, m.params.VaultFloor),
		result:  &Result{Op: op},
	}
	if err := h(x); err != nil {
		return nil, err
	}
	x.result.Transfers = x.custody.Transfers()
	return x.result, nil
}

// execution carries the state of one Execute call through a handler.
type execution struct {
	ctx     context.Context
	accts   Accounts
	params  Params
	dep     Deployment
	now     int64
	req     *Request
	custody *Custodian
	result  *Result
}

func (x *execution) account(i int) Address {
	return x.req.Accounts[i]
}

func (x *execution) emit(e Event, transfers ...Transfer) {
	e.Timestamp = x.now
	e.Transfers = transfers
	x.result.Events = append(x.result.Events, e)
}

func (x *execution) loadAlarm(addr Address) (*Alarm, error) {
	a, err := x.accts.Alarm(x.ctx, addr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load alarm: %w", err)
	}
	return a, nil
}

// loadOwnedAlarm loads the alarm at account 0 and requires that the owner
// account at ownerIdx is the alarm owner and signed the request.
func (x *execution) loadOwnedAlarm(ownerIdx int) (*Alarm, error) {
	a, err := x.loadAlarm(x.account(0))
	if err != nil {
		return nil, err
	}
	owner := x.account(ownerIdx)
	if owner != a.Owner || x.req.Signer != owner {
		return nil, ErrUnauthorized
	}
	return a, nil
}

// loadVault requires that the vault account at idx is the alarm's vault.
func (x *execution) loadVault(a *Alarm, idx int) (*Vault, error) {
	addr := x.account(idx)
	if addr != VaultAddress(x.dep.ProgramID, a.Address) {
		return nil, ErrInvalidAccount
	}
	v, err := x.accts.Vault(x.ctx, addr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load vault: %w", err)
	}
	return v, nil
}

func (x *execution) saveAlarm(a *Alarm) error {
	if err := x.accts.UpdateAlarm(x.ctx, a); err != nil {
		return fmt.Errorf("update alarm: %w", err)
	}
	return nil
}

// requireActive maps the non-active base windows to their timing errors.
func (x *execution) requireActive(a *Alarm) error {
	switch BaseWindow(x.now, a.AlarmTime, a.Deadline) {
	case WindowRefund:
		return ErrTooEarly
	case WindowSlash:
		return ErrDeadlinePassed
	}
	return nil
}

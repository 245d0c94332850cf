package escrow

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
)

func instruction[T Instruction](x *execution) (T, error) {
	v, ok := x.req.Instruction.(T)
	if !ok {
		return v, ErrInvalidInstruction
	}
	return v, nil
}

func addrPtr(a Address) *Address {
	return &a
}

// accounts: profile, owner
func handleInitialize(x *execution) error {
	ins, err := instruction[Initialize](x)
	if err != nil {
		return err
	}
	profile, owner := x.account(0), x.account(1)
	if x.req.Signer != owner {
		return ErrUnauthorized
	}
	if profile != ProfileAddress(x.dep.ProgramID, owner) {
		return ErrInvalidAccount
	}

	p := &UserProfile{Address: profile, Owner: owner, CreatedAt: x.now}
	if ins.TagHash != nil {
		tag := *ins.TagHash
		p.TagHash = &tag
	}
	if err := x.accts.InsertProfile(x.ctx, p); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return ErrAccountExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	x.emit(Event{Kind: EventProfileInitialized, Owner: owner, Account: profile})
	return nil
}

// accounts: alarm, vault, owner
func handleCreateAlarm(x *execution) error {
	ins, err := instruction[CreateAlarm](x)
	if err != nil {
		return err
	}
	alarmAddr, vaultAddr, owner := x.account(0), x.account(1), x.account(2)
	if x.req.Signer != owner {
		return ErrUnauthorized
	}
	if alarmAddr != AlarmAddress(x.dep.ProgramID, owner, ins.AlarmID) ||
		vaultAddr != VaultAddress(x.dep.ProgramID, alarmAddr) {
		return ErrInvalidAccount
	}

	if ins.AlarmTime <= x.now {
		return ErrAlarmTimeInPast
	}
	if ins.Deadline <= ins.AlarmTime {
		return ErrInvalidDeadline
	}
	if ins.Deposit > 0 && ins.Deposit < x.params.MinDeposit {
		return ErrDepositTooSmall
	}
	route, err := ParseRoute(ins.Route)
	if err != nil {
		return err
	}
	var dest *Address
	if route.RequiresDestination() {
		if ins.Destination == nil || ins.Destination.IsZero() {
			return ErrPenaltyDestinationRequired
		}
		dest = addrPtr(*ins.Destination)
	}

	if _, err := x.accts.Alarm(x.ctx, alarmAddr); err == nil {
		return ErrAccountExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("load alarm: %w", err)
	}

	total := ins.Deposit + x.params.VaultFloor
	if total < ins.Deposit {
		return ErrOverflow
	}
	vault := &Vault{Address: vaultAddr, Alarm: alarmAddr, Owner: owner}
	t, err := x.custody.Open(x.ctx, vault, owner, total)
	if err != nil {
		return err
	}

	a := &Alarm{
		Address:            alarmAddr,
		Owner:              owner,
		AlarmID:            ins.AlarmID,
		AlarmTime:          ins.AlarmTime,
		Deadline:           ins.Deadline,
		InitialAmount:      ins.Deposit,
		RemainingAmount:    ins.Deposit,
		PenaltyRoute:       route,
		PenaltyDestination: dest,
		Status:             StatusCreated,
	}
	if err := x.accts.InsertAlarm(x.ctx, a); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return ErrAccountExists
		}
		return fmt.Errorf("insert alarm: %w", err)
	}

	x.emit(Event{
		Kind:      EventAlarmCreated,
		Owner:     owner,
		Account:   alarmAddr,
		AlarmID:   a.AlarmID,
		Amount:    a.InitialAmount,
		Remaining: a.RemainingAmount,
		AlarmTime: a.AlarmTime,
		Deadline:  a.Deadline,
		Route:     &route,
		Recipient: dest,
	}, t)
	return nil
}

// accounts: alarm, owner
func handleAcknowledge(x *execution) error {
	if _, err := instruction[Acknowledge](x); err != nil {
		return err
	}
	a, err := x.loadOwnedAlarm(1)
	if err != nil {
		return err
	}
	if a.Status != StatusCreated {
		return ErrInvalidAlarmState
	}
	if err := x.requireActive(a); err != nil {
		return err
	}
	return x.acknowledge(a)
}

// accounts: alarm, owner, permit
func handleAcknowledgeAttested(x *execution) error {
	ins, err := instruction[AcknowledgeAttested](x)
	if err != nil {
		return err
	}
	a, err := x.loadOwnedAlarm(1)
	if err != nil {
		return err
	}
	if x.account(2) != PermitNonceAddress(x.dep.ProgramID, a.Address, ins.Nonce) {
		return ErrInvalidAccount
	}
	if a.Status != StatusCreated {
		return ErrInvalidAlarmState
	}
	if err := x.requireActive(a); err != nil {
		return err
	}
	if _, err := VerifyPermit(x.ctx, x.accts, x.dep, x.now, a, ins.Permit, x.req.Assertion); err != nil {
		return err
	}
	return x.acknowledge(a)
}

func (x *execution) acknowledge(a *Alarm) error {
	a.Status = StatusAcknowledged
	if err := x.saveAlarm(a); err != nil {
		return err
	}
	x.emit(Event{Kind: EventWakeAcknowledged, Owner: a.Owner, Account: a.Address, AlarmID: a.AlarmID})
	return nil
}

// accounts: alarm, vault, owner
func handleClaim(x *execution) error {
	if _, err := instruction[Claim](x); err != nil {
		return err
	}
	a, err := x.loadOwnedAlarm(2)
	if err != nil {
		return err
	}
	if !a.Status.Open() {
		return ErrInvalidAlarmState
	}
	w, err := WindowsAt(x.params, a, x.now)
	if err != nil {
		return err
	}
	switch {
	case w.Base == WindowRefund:
		return ErrTooEarly
	case w.Base == WindowSlash && !w.ClaimGrace:
		return ErrDeadlinePassed
	}

	v, err := x.loadVault(a, 1)
	if err != nil {
		return err
	}
	t, err := x.custody.Close(x.ctx, v, a.Owner, ReasonClaim)
	if err != nil {
		return err
	}
	returned := a.RemainingAmount
	if err := x.finish(a, StatusClaimed); err != nil {
		return err
	}

	x.emit(Event{Kind: EventAlarmClaimed, Owner: a.Owner, Account: a.Address, AlarmID: a.AlarmID, Amount: returned}, t)
	return nil
}

// accounts: alarm, vault, sink, owner
func handleSnooze(x *execution) error {
	ins, err := instruction[Snooze](x)
	if err != nil {
		return err
	}
	if x.account(2) != BurnSink {
		return ErrInvalidSinkAddress
	}
	a, err := x.loadOwnedAlarm(3)
	if err != nil {
		return err
	}
	if a.Status != StatusCreated {
		return ErrInvalidAlarmState
	}
	if ins.ExpectedSnoozeCount != a.SnoozeCount {
		return ErrSnoozeCountMismatch
	}
	if err := x.requireActive(a); err != nil {
		return err
	}
	if IsMaxSnooze(x.params, a.SnoozeCount) {
		return ErrMaxSnoozesReached
	}

	cost, err := SnoozeCost(x.params, a.RemainingAmount, a.SnoozeCount)
	if err != nil {
		return err
	}
	v, err := x.loadVault(a, 1)
	if err != nil {
		return err
	}
	cost = CapAtFloor(cost, v.Lamports, x.params.VaultFloor)
	if cost == 0 {
		return ErrInsufficientDeposit
	}
	if cost > a.RemainingAmount {
		return ErrOverflow
	}
	alarmTime, deadline, err := SnoozeExtend(a.AlarmTime, a.Deadline, x.params.SnoozeExtension)
	if err != nil {
		return err
	}

	t, err := x.custody.Deduct(x.ctx, v, BurnSink, cost, ReasonSnooze)
	if err != nil {
		return err
	}
	a.RemainingAmount -= cost
	a.AlarmTime, a.Deadline = alarmTime, deadline
	a.SnoozeCount++
	if err := x.saveAlarm(a); err != nil {
		return err
	}

	x.emit(Event{
		Kind:        EventAlarmSnoozed,
		Owner:       a.Owner,
		Account:     a.Address,
		AlarmID:     a.AlarmID,
		Amount:      cost,
		Remaining:   a.RemainingAmount,
		SnoozeCount: a.SnoozeCount,
		AlarmTime:   a.AlarmTime,
		Deadline:    a.Deadline,
	}, t)
	return nil
}

// accounts: alarm, vault, recipient, caller
func handleSlash(x *execution) error {
	if _, err := instruction[Slash](x); err != nil {
		return err
	}
	recipient, caller := x.account(2), x.account(3)
	if x.req.Signer != caller {
		return ErrUnauthorized
	}
	a, err := x.loadAlarm(x.account(0))
	if err != nil {
		return err
	}
	if !a.Status.Open() {
		return ErrInvalidAlarmState
	}
	w, err := WindowsAt(x.params, a, x.now)
	if err != nil {
		return err
	}
	if w.Base != WindowSlash {
		return ErrDeadlineNotPassed
	}
	if w.ClaimGrace {
		return ErrClaimGraceActive
	}
	if w.BuddyOnlySlash && (a.PenaltyDestination == nil || caller != *a.PenaltyDestination) {
		return ErrBuddyOnlySlashWindow
	}
	if err := checkRecipient(a, recipient); err != nil {
		return err
	}

	v, err := x.loadVault(a, 1)
	if err != nil {
		return err
	}
	t, err := x.custody.Close(x.ctx, v, recipient, ReasonSlash)
	if err != nil {
		return err
	}
	slashed := a.RemainingAmount
	if err := x.finish(a, StatusSlashed); err != nil {
		return err
	}

	route := a.PenaltyRoute
	x.emit(Event{
		Kind:      EventAlarmSlashed,
		Owner:     a.Owner,
		Account:   a.Address,
		AlarmID:   a.AlarmID,
		Caller:    addrPtr(caller),
		Recipient: addrPtr(recipient),
		Amount:    slashed,
		Route:     &route,
	}, t)
	return nil
}

func checkRecipient(a *Alarm, recipient Address) error {
	switch a.PenaltyRoute {
	case RouteBurn:
		if recipient != BurnSink {
			return ErrInvalidPenaltyRecipient
		}
	case RouteDonate, RouteBuddy:
		if a.PenaltyDestination == nil || recipient != *a.PenaltyDestination {
			return ErrInvalidPenaltyRecipient
		}
	default:
		return ErrInvalidPenaltyRoute
	}
	return nil
}

// accounts: alarm, vault, sink, owner
func handleEmergencyRefund(x *execution) error {
	if _, err := instruction[EmergencyRefund](x); err != nil {
		return err
	}
	if x.account(2) != BurnSink {
		return ErrInvalidSinkAddress
	}
	a, err := x.loadOwnedAlarm(3)
	if err != nil {
		return err
	}
	if a.Status != StatusCreated {
		return ErrInvalidAlarmState
	}
	if BaseWindow(x.now, a.AlarmTime, a.Deadline) != WindowRefund {
		return ErrTooLateForRefund
	}

	penalty, err := EmergencyPenalty(x.params, a.RemainingAmount)
	if err != nil {
		return err
	}
	v, err := x.loadVault(a, 1)
	if err != nil {
		return err
	}
	penalty = CapAtFloor(penalty, v.Lamports, x.params.VaultFloor)

	var transfers []Transfer
	if penalty > 0 {
		t, err := x.custody.Deduct(x.ctx, v, BurnSink, penalty, ReasonEmergencyPenalty)
		if err != nil {
			return err
		}
		transfers = append(transfers, t)
	}
	t, err := x.custody.Close(x.ctx, v, a.Owner, ReasonRefund)
	if err != nil {
		return err
	}
	transfers = append(transfers, t)

	refunded := a.RemainingAmount - penalty
	if err := x.finish(a, StatusClaimed); err != nil {
		return err
	}

	x.emit(Event{
		Kind:    EventEmergencyRefundExecuted,
		Owner:   a.Owner,
		Account: a.Address,
		AlarmID: a.AlarmID,
		Amount:  refunded,
		Penalty: penalty,
	}, transfers...)
	return nil
}

// accounts: alarm, vault, owner, caller
func handleSweep(x *execution) error {
	if _, err := instruction[Sweep](x); err != nil {
		return err
	}
	owner, caller := x.account(2), x.account(3)
	if x.req.Signer != caller {
		return ErrUnauthorized
	}
	a, err := x.loadAlarm(x.account(0))
	if err != nil {
		return err
	}
	if owner != a.Owner {
		return ErrInvalidAccount
	}
	if a.Status != StatusAcknowledged {
		return ErrInvalidAlarmState
	}
	end, err := ClaimGraceEnd(x.params, a.Deadline)
	if err != nil {
		return err
	}
	if x.now <= end {
		return ErrDeadlineNotPassed
	}

	v, err := x.loadVault(a, 1)
	if err != nil {
		return err
	}
	t, err := x.custody.Close(x.ctx, v, a.Owner, ReasonSweep)
	if err != nil {
		return err
	}
	returned := a.RemainingAmount
	if err := x.finish(a, StatusClaimed); err != nil {
		return err
	}

	x.emit(Event{
		Kind:    EventAlarmSwept,
		Owner:   a.Owner,
		Account: a.Address,
		AlarmID: a.AlarmID,
		Caller:  addrPtr(caller),
		Amount:  returned,
	}, t)
	return nil
}

// finish moves a into a terminal status with nothing left in escrow.
func (x *execution) finish(a *Alarm, s Status) error {
	a.Status = s
	a.RemainingAmount = 0
	return x.saveAlarm(a)
}

// Package escrow implements the wake-up commitment escrow: the state machine
// that owns deposits, enforces the alarm time windows, prices snoozes, routes
// penalties and consumes attestation permits.
//
// The package is pure with respect to its environment. Every operation runs
// against an Accounts view supplied by the caller, with the current time passed
// in explicitly. The caller (see package ledger) is responsible for executing
// each Request atomically and with exclusive access to the accounts it names.
// Handlers never lock, retry or read the clock.
//
// Operations and their account layouts:
//
//	Initialize           profile, owner
//	CreateAlarm          alarm, vault, owner
//	Acknowledge          alarm, owner
//	AcknowledgeAttested  alarm, owner, permit
//	Claim                alarm, vault, owner
//	Snooze               alarm, vault, sink, owner
//	Slash                alarm, vault, recipient, caller
//	EmergencyRefund      alarm, vault, sink, owner
//	Sweep                alarm, vault, owner, caller
package escrow

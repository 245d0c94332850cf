package escrow

import "errors"

// Kind classifies an Error for transports that map failures onto status codes.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindState
	KindTiming
	KindAuthorization
	KindParameter
	KindArithmetic
	KindConcurrency
	KindAttestation
)

var kindNames = [...]string{"unknown", "state", "timing", "authorization", "parameter", "arithmetic", "concurrency", "attestation"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is a rejected operation. Every Error aborts the request with no effects.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var byCode = map[string]*Error{}

func newError(kind Kind, code, msg string) *Error {
	e := &Error{Code: code, Kind: kind, Message: msg}
	byCode[code] = e
	return e
}

// ErrorByCode returns the sentinel with the given code, or nil. Clients use
// it to turn a code received over the wire back into a matchable error.
func ErrorByCode(code string) *Error {
	return byCode[code]
}

var (
	ErrDeadlinePassed    = newError(KindTiming, "DeadlinePassed", "deadline has passed")
	ErrDeadlineNotPassed = newError(KindTiming, "DeadlineNotPassed", "deadline has not passed yet")
	ErrTooEarly          = newError(KindTiming, "TooEarly", "alarm time has not been reached")
	ErrTooLateForRefund  = newError(KindTiming, "TooLateForRefund", "refund window is closed")
	ErrClaimGraceActive  = newError(KindTiming, "ClaimGraceActive", "acknowledged alarm is still inside its claim grace")

	ErrInvalidAlarmState = newError(KindState, "InvalidAlarmState", "operation is not valid for the alarm status")
	ErrAccountNotFound   = newError(KindState, "AccountNotFound", "account does not exist")
	ErrAccountExists     = newError(KindState, "AccountExists", "account already exists")

	ErrUnauthorized            = newError(KindAuthorization, "Unauthorized", "signer is not allowed to perform this operation")
	ErrInvalidAccount          = newError(KindAuthorization, "InvalidAccount", "account does not match its derived address")
	ErrInvalidPenaltyRecipient = newError(KindAuthorization, "InvalidPenaltyRecipient", "recipient does not match the penalty route")
	ErrBuddyOnlySlashWindow    = newError(KindAuthorization, "BuddyOnlySlashWindow", "only the buddy may slash during the buddy-only window")
	ErrInvalidSinkAddress      = newError(KindAuthorization, "InvalidSinkAddress", "sink is not the burn sink")

	ErrInvalidPenaltyRoute        = newError(KindParameter, "InvalidPenaltyRoute", "penalty route is not valid")
	ErrPenaltyDestinationRequired = newError(KindParameter, "PenaltyDestinationRequired", "penalty route requires a destination")
	ErrDepositTooSmall            = newError(KindParameter, "DepositTooSmall", "deposit is below the minimum")
	ErrAlarmTimeInPast            = newError(KindParameter, "AlarmTimeInPast", "alarm time must be in the future")
	ErrInvalidDeadline            = newError(KindParameter, "InvalidDeadline", "deadline must be after alarm time")
	ErrInsufficientFunds          = newError(KindParameter, "InsufficientFunds", "owner balance does not cover deposit and vault floor")
	ErrInvalidInstruction         = newError(KindParameter, "InvalidInstruction", "instruction is not valid")
	ErrInvalidAccountCount        = newError(KindParameter, "InvalidAccountCount", "wrong number of accounts for operation")

	ErrInsufficientDeposit = newError(KindArithmetic, "InsufficientDeposit", "nothing left to deduct above the vault floor")
	ErrMaxSnoozesReached   = newError(KindArithmetic, "MaxSnoozesReached", "maximum snooze count reached")
	ErrOverflow            = newError(KindArithmetic, "Overflow", "arithmetic overflow")
	ErrVaultBelowFloor     = newError(KindArithmetic, "VaultBelowFloor", "deduction would leave the vault below its floor")

	ErrSnoozeCountMismatch = newError(KindConcurrency, "SnoozeCountMismatch", "expected snooze count does not match")

	ErrMissingAttestation        = newError(KindAttestation, "MissingAttestation", "attestation is required")
	ErrAttestationSignerMismatch = newError(KindAttestation, "AttestationSignerMismatch", "attestation is not signed by the trusted key")
	ErrInvalidPermitMessage      = newError(KindAttestation, "InvalidPermitMessage", "attestation message does not match the permit")
	ErrPermitExpired             = newError(KindAttestation, "PermitExpired", "permit has expired")
	ErrPermitNonceUsed           = newError(KindAttestation, "PermitNonceUsed", "permit nonce was already used")
)

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

package escrow

// EventKind names a state change observable outside the machine.
type EventKind string

const (
	EventProfileInitialized      EventKind = "ProfileInitialized"
	EventAlarmCreated            EventKind = "AlarmCreated"
	EventWakeAcknowledged        EventKind = "WakeAcknowledged"
	EventAlarmClaimed            EventKind = "AlarmClaimed"
	EventAlarmSnoozed            EventKind = "AlarmSnoozed"
	EventAlarmSlashed            EventKind = "AlarmSlashed"
	EventEmergencyRefundExecuted EventKind = "EmergencyRefundExecuted"
	EventAlarmSwept              EventKind = "AlarmSwept"
)

// Transfer reasons.
const (
	ReasonDeposit          = "deposit"
	ReasonSnooze           = "snooze"
	ReasonEmergencyPenalty = "emergency_penalty"
	ReasonRefund           = "refund"
	ReasonClaim            = "claim"
	ReasonSlash            = "slash"
	ReasonSweep            = "sweep"
)

// Transfer is one movement of lamports caused by an operation.
type Transfer struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
	Reason string  `json:"reason"`
}

// Event describes one committed operation. Fields that do not apply to the
// kind are left zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp int64     `json:"timestamp"`
	Owner     Address   `json:"owner"`
	Account   Address   `json:"account"`
	AlarmID   uint64    `json:"alarm_id,omitempty"`
	Caller    *Address  `json:"caller,omitempty"`
	Recipient *Address  `json:"recipient,omitempty"`

	Amount      uint64 `json:"amount,omitempty"`
	Penalty     uint64 `json:"penalty,omitempty"`
	Remaining   uint64 `json:"remaining,omitempty"`
	SnoozeCount uint8  `json:"snooze_count,omitempty"`
	AlarmTime   int64  `json:"alarm_time,omitempty"`
	Deadline    int64  `json:"deadline,omitempty"`
	Route       *Route `json:"route,omitempty"`

	Transfers []Transfer `json:"transfers,omitempty"`
}

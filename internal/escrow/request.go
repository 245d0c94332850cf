package escrow

import "fmt"

// Op identifies an operation. Values are part of the wire format.
type Op uint8

const (
	OpInitialize Op = iota
	OpCreateAlarm
	OpAcknowledge
	OpAcknowledgeAttested
	OpClaim
	OpSnooze
	OpSlash
	OpEmergencyRefund
	OpSweep
)

var opNames = [...]string{
	"initialize",
	"create",
	"acknowledge",
	"acknowledge_attested",
	"claim",
	"snooze",
	"slash",
	"emergency_refund",
	"sweep",
}

var opAccounts = [...]int{2, 3, 2, 3, 3, 4, 4, 4, 4}

func (o Op) String() string {
	if o.Valid() {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

func (o Op) Valid() bool {
	return int(o) < len(opNames)
}

// AccountCount is the number of accounts a request for o must name.
func (o Op) AccountCount() int {
	if !o.Valid() {
		return 0
	}
	return opAccounts[o]
}

// Instruction is the parameter set of one operation.
type Instruction interface {
	Op() Op
}

type Initialize struct {
	TagHash *[32]byte
}

type CreateAlarm struct {
	AlarmID     uint64
	AlarmTime   int64
	Deadline    int64
	Deposit     uint64
	Route       uint8
	Destination *Address
}

type Acknowledge struct{}

type AcknowledgeAttested struct {
	Permit
}

type Claim struct{}

type Snooze struct {
	ExpectedSnoozeCount uint8
}

type Slash struct{}

type EmergencyRefund struct{}

type Sweep struct{}

func (Initialize) Op() Op          { return OpInitialize }
func (CreateAlarm) Op() Op         { return OpCreateAlarm }
func (Acknowledge) Op() Op         { return OpAcknowledge }
func (AcknowledgeAttested) Op() Op { return OpAcknowledgeAttested }
func (Claim) Op() Op               { return OpClaim }
func (Snooze) Op() Op              { return OpSnooze }
func (Slash) Op() Op               { return OpSlash }
func (EmergencyRefund) Op() Op     { return OpEmergencyRefund }
func (Sweep) Op() Op               { return OpSweep }

// Request is one signed, decoded submission. Signer has already been
// authenticated by the execution environment, as has Assertion if present.
type Request struct {
	Signer      Address
	Accounts    []Address
	Instruction Instruction
	Assertion   *Assertion
}

// Result is what a successful Execute produced.
type Result struct {
	Op        Op
	Events    []Event
	Transfers []Transfer
}

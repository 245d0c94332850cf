// Package wire defines the byte-exact request payload and the signed
// envelope that carries it. Payload layout (little endian):
//
//	version u8 | op u8 | account_count u8 | accounts [n][32] | params
//
// Params have a fixed layout per operation; short buffers and trailing bytes
// are rejected.
package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/io"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Version is the only payload version this package reads and writes.
const Version = 1

var (
	ErrUnknownVersion = errors.New("unknown payload version")
	ErrTrailingBytes  = errors.New("trailing bytes after params")
)

// Encode serializes an instruction and its accounts.
func Encode(ins escrow.Instruction, accounts []escrow.Address) ([]byte, error) {
	if ins == nil || !ins.Op().Valid() {
		return nil, common.ErrUnsupportedOp
	}
	if len(accounts) != ins.Op().AccountCount() {
		return nil, fmt.Errorf("%s takes %d accounts, got %d", ins.Op(), ins.Op().AccountCount(), len(accounts))
	}

	w := io.NewBufBinWriter()
	w.WriteB(Version)
	w.WriteB(byte(ins.Op()))
	w.WriteB(byte(len(accounts)))
	for _, a := range accounts {
		w.WriteBytes(a[:])
	}

	switch v := ins.(type) {
	case escrow.Initialize:
		writeOptionalAddress(w.BinWriter, (*escrow.Address)(v.TagHash))
	case escrow.CreateAlarm:
		w.WriteU64LE(v.AlarmID)
		w.WriteU64LE(uint64(v.AlarmTime))
		w.WriteU64LE(uint64(v.Deadline))
		w.WriteU64LE(v.Deposit)
		w.WriteB(v.Route)
		writeOptionalAddress(w.BinWriter, v.Destination)
	case escrow.AcknowledgeAttested:
		w.WriteU64LE(v.Nonce)
		w.WriteU64LE(uint64(v.Expiry))
		w.WriteB(v.ProofType)
		w.WriteBytes(v.ProofHash[:])
	case escrow.Snooze:
		w.WriteB(v.ExpectedSnoozeCount)
	case escrow.Acknowledge, escrow.Claim, escrow.Slash, escrow.EmergencyRefund, escrow.Sweep:
	default:
		return nil, common.ErrUnsupportedOp
	}

	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

func writeOptionalAddress(w *io.BinWriter, a *escrow.Address) {
	if a == nil {
		w.WriteB(0)
		w.WriteBytes(make([]byte, escrow.AddressSize))
		return
	}
	w.WriteB(1)
	w.WriteBytes(a[:])
}

func readOptionalAddress(r *io.BinReader) *escrow.Address {
	has := r.ReadB()
	var a escrow.Address
	r.ReadBytes(a[:])
	if r.Err == nil && (has > 1 || (has == 0 && !a.IsZero())) {
		r.Err = fmt.Errorf("invalid optional field (flag %d)", has)
	}
	if has != 1 {
		return nil
	}
	return &a
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (escrow.Instruction, []escrow.Address, error) {
	ins, accounts, err := decode(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrMalformedRequest, err)
	}
	return ins, accounts, nil
}

func decode(payload []byte) (escrow.Instruction, []escrow.Address, error) {
	buf := bytes.NewReader(payload)
	r := io.NewBinReaderFromIO(buf)

	version := r.ReadB()
	op := escrow.Op(r.ReadB())
	n := int(r.ReadB())
	if r.Err != nil {
		return nil, nil, r.Err
	}
	if version != Version {
		return nil, nil, ErrUnknownVersion
	}
	if !op.Valid() {
		return nil, nil, common.ErrUnsupportedOp
	}
	if n != op.AccountCount() {
		return nil, nil, fmt.Errorf("%s takes %d accounts, got %d", op, op.AccountCount(), n)
	}

	accounts := make([]escrow.Address, n)
	for i := range accounts {
		r.ReadBytes(accounts[i][:])
	}

	var ins escrow.Instruction
	switch op {
	case escrow.OpInitialize:
		tag := readOptionalAddress(r)
		ins = escrow.Initialize{TagHash: (*[32]byte)(tag)}
	case escrow.OpCreateAlarm:
		v := escrow.CreateAlarm{}
		v.AlarmID = r.ReadU64LE()
		v.AlarmTime = int64(r.ReadU64LE())
		v.Deadline = int64(r.ReadU64LE())
		v.Deposit = r.ReadU64LE()
		v.Route = r.ReadB()
		v.Destination = readOptionalAddress(r)
		ins = v
	case escrow.OpAcknowledge:
		ins = escrow.Acknowledge{}
	case escrow.OpAcknowledgeAttested:
		v := escrow.AcknowledgeAttested{}
		v.Nonce = r.ReadU64LE()
		v.Expiry = int64(r.ReadU64LE())
		v.ProofType = r.ReadB()
		r.ReadBytes(v.ProofHash[:])
		ins = v
	case escrow.OpClaim:
		ins = escrow.Claim{}
	case escrow.OpSnooze:
		ins = escrow.Snooze{ExpectedSnoozeCount: r.ReadB()}
	case escrow.OpSlash:
		ins = escrow.Slash{}
	case escrow.OpEmergencyRefund:
		ins = escrow.EmergencyRefund{}
	case escrow.OpSweep:
		ins = escrow.Sweep{}
	}

	if r.Err != nil {
		return nil, nil, r.Err
	}
	if buf.Len() != 0 {
		return nil, nil, ErrTrailingBytes
	}
	return ins, accounts, nil
}

package escrow

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wakevault/internal/common"
)

const permitActionAck = "ack"

// Assertion is an attestation whose signature the execution environment has
// already verified: Signer signed exactly Message.
type Assertion struct {
	Signer  Address
	Message []byte
}

// Permit is the attested acknowledgement claim carried by the request.
type Permit struct {
	Nonce     uint64
	Expiry    int64
	ProofType uint8
	ProofHash [32]byte
}

// PermitMessage builds the canonical bytes an attestation service signs:
//
//	domain|ack|cluster|program|alarm|owner|nonce|expiry|proof_type|hex(proof_hash)
func PermitMessage(d Deployment, alarm, owner Address, p Permit) []byte {
	parts := []string{
		d.AttestationDomain,
		permitActionAck,
		d.Cluster,
		d.ProgramID.String(),
		alarm.String(),
		owner.String(),
		strconv.FormatUint(p.Nonce, 10),
		strconv.FormatInt(p.Expiry, 10),
		strconv.FormatUint(uint64(p.ProofType), 10),
		hex.EncodeToString(p.ProofHash[:]),
	}
	return []byte(strings.Join(parts, "|"))
}

// VerifyPermit checks the assertion against the permit and consumes its nonce.
// The nonce record is written before the caller applies the acknowledgement,
// in the same atomic unit.
func VerifyPermit(ctx context.Context, accts Accounts, d Deployment, now int64, alarm *Alarm, p Permit, as *Assertion) (*PermitNonce, error) {
	if as == nil {
		return nil, ErrMissingAttestation
	}
	if now > p.Expiry {
		return nil, ErrPermitExpired
	}
	if as.Signer != d.AttestationKey {
		return nil, ErrAttestationSignerMismatch
	}
	if !bytes.Equal(as.Message, PermitMessage(d, alarm.Address, alarm.Owner, p)) {
		return nil, ErrInvalidPermitMessage
	}

	n := &PermitNonce{
		Address:   PermitNonceAddress(d.ProgramID, alarm.Address, p.Nonce),
		Alarm:     alarm.Address,
		Nonce:     p.Nonce,
		Owner:     alarm.Owner,
		ExpiresAt: p.Expiry,
	}
	if err := accts.InsertPermitNonce(ctx, n); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, ErrPermitNonceUsed
		}
		return nil, fmt.Errorf("insert permit nonce: %w", err)
	}
	return n, nil
}

package wire

import (
	"crypto/ed25519"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/io"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// Envelope is a signed payload as submitted by a client.
type Envelope struct {
	Payload     []byte         `json:"payload"`
	Signer      escrow.Address `json:"signer"`
	Signature   []byte         `json:"signature"`
	Attestation *Attestation   `json:"attestation,omitempty"`
}

// Attestation is a permit signed by an attestation service and forwarded by
// the client together with its request.
type Attestation struct {
	Signer    escrow.Address `json:"signer"`
	Message   []byte         `json:"message"`
	Signature []byte         `json:"signature"`
}

// Sign encodes the instruction and signs the payload with key.
func Sign(key ed25519.PrivateKey, ins escrow.Instruction, accounts []escrow.Address) (*Envelope, error) {
	payload, err := Encode(ins, accounts)
	if err != nil {
		return nil, err
	}
	signer, err := escrow.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Payload:   payload,
		Signer:    signer,
		Signature: ed25519.Sign(key, payload),
	}, nil
}

// Attest signs message with an attestation key.
func Attest(key ed25519.PrivateKey, message []byte) *Attestation {
	signer, _ := escrow.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	return &Attestation{
		Signer:    signer,
		Message:   append([]byte(nil), message...),
		Signature: ed25519.Sign(key, message),
	}
}

// Open verifies the envelope and attestation signatures and decodes the
// payload into a request the escrow machine can execute.
func (e *Envelope) Open() (*escrow.Request, error) {
	if len(e.Signature) != ed25519.SignatureSize || !ed25519.Verify(e.Signer.PublicKey(), e.Payload, e.Signature) {
		return nil, common.ErrInvalidSignature
	}
	ins, accounts, err := Decode(e.Payload)
	if err != nil {
		return nil, err
	}

	req := &escrow.Request{
		Signer:      e.Signer,
		Accounts:    accounts,
		Instruction: ins,
	}
	if e.Attestation != nil {
		a := e.Attestation
		if len(a.Signature) != ed25519.SignatureSize || !ed25519.Verify(a.Signer.PublicKey(), a.Message, a.Signature) {
			return nil, fmt.Errorf("attestation: %w", common.ErrInvalidSignature)
		}
		req.Assertion = &escrow.Assertion{Signer: a.Signer, Message: a.Message}
	}
	return req, nil
}

// maxEnvelopeField bounds every variable-length field of an encoded envelope.
const maxEnvelopeField = 4096

// MarshalBinary encodes e for transport:
//
//	payload varbytes | signer [32] | signature varbytes | has_attestation u8
//	[ | attestation signer [32] | message varbytes | signature varbytes ]
func (e *Envelope) MarshalBinary() ([]byte, error) {
	w := io.NewBufBinWriter()
	w.WriteVarBytes(e.Payload)
	w.WriteBytes(e.Signer[:])
	w.WriteVarBytes(e.Signature)
	if a := e.Attestation; a == nil {
		w.WriteB(0)
	} else {
		w.WriteB(1)
		w.WriteBytes(a.Signer[:])
		w.WriteVarBytes(a.Message)
		w.WriteVarBytes(a.Signature)
	}
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary decodes the form written by MarshalBinary. Signatures are
// not checked here; see Open.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	r := io.NewBinReaderFromBuf(data)

	var out Envelope
	out.Payload = r.ReadVarBytes(maxEnvelopeField)
	r.ReadBytes(out.Signer[:])
	out.Signature = r.ReadVarBytes(maxEnvelopeField)
	has := r.ReadB()
	if r.Err == nil {
		switch has {
		case 0:
		case 1:
			a := &Attestation{}
			r.ReadBytes(a.Signer[:])
			a.Message = r.ReadVarBytes(maxEnvelopeField)
			a.Signature = r.ReadVarBytes(maxEnvelopeField)
			out.Attestation = a
		default:
			r.Err = fmt.Errorf("invalid attestation flag %d", has)
		}
	}

	if r.Err != nil {
		return fmt.Errorf("%w: envelope: %w", common.ErrMalformedRequest, r.Err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: envelope: %w", common.ErrMalformedRequest, ErrTrailingBytes)
	}
	*e = out
	return nil
}

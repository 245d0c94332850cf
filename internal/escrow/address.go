package escrow

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/base58"
)

// AddressSize is the length of an Address in bytes.
const AddressSize = 32

// Address identifies a record or a wallet. Wallet addresses are Ed25519
// public keys; record addresses are derived from seeds with DeriveAddress.
type Address [AddressSize]byte

const pdaDomain = "wakevault/pda"

// BurnSink receives snooze costs, emergency penalties and Burn-route slashes.
// It is the same for every deployment and nobody holds its key.
var BurnSink = Address(sha256.Sum256([]byte("wakevault/burn-sink")))

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the base58check form of a.
func (a Address) String() string {
	return base58.CheckEncode(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes the base58check form produced by String.
func ParseAddress(s string) (Address, error) {
	b, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address %q: %w", s, err)
	}
	return AddressFromBytes(b)
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromPublicKey returns the wallet address of an Ed25519 public key.
func AddressFromPublicKey(pk ed25519.PublicKey) (Address, error) {
	return AddressFromBytes(pk)
}

// PublicKey returns a viewed as an Ed25519 public key.
func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

// DeriveAddress computes a program address from seeds. Each seed is length
// prefixed so that different seed splits never collide.
func DeriveAddress(programID Address, seeds ...[]byte) Address {
	h := sha256.New()
	h.Write([]byte(pdaDomain))
	h.Write(programID[:])
	for _, s := range seeds {
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(len(s)))
		h.Write(l[:])
		h.Write(s)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

func u64Seed(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// ProfileAddress is the address of owner's UserProfile.
func ProfileAddress(programID, owner Address) Address {
	return DeriveAddress(programID, []byte("user-profile"), owner[:])
}

// AlarmAddress is the address of the alarm owner created with alarmID.
func AlarmAddress(programID, owner Address, alarmID uint64) Address {
	return DeriveAddress(programID, []byte("alarm"), owner[:], u64Seed(alarmID))
}

// VaultAddress is the address of the vault backing alarm.
func VaultAddress(programID, alarm Address) Address {
	return DeriveAddress(programID, []byte("vault"), alarm[:])
}

// PermitNonceAddress is the address of the replay guard for (alarm, nonce).
func PermitNonceAddress(programID, alarm Address, nonce uint64) Address {
	return DeriveAddress(programID, []byte("permit"), alarm[:], u64Seed(nonce))
}

package escrow

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_TextRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	parsed, err := ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Equal(t, pub, parsed.PublicKey())

	text, err := a.MarshalText()
	require.NoError(t, err)
	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, a, back)
}

func TestParseAddress_Rejects(t *testing.T) {
	_, err := ParseAddress("not-base58-0OIl")
	assert.Error(t, err)

	a := Address{1, 2, 3}
	s := a.String()
	corrupted := []byte(s)
	if corrupted[5] == '2' {
		corrupted[5] = '3'
	} else {
		corrupted[5] = '2'
	}
	_, err = ParseAddress(string(corrupted))
	assert.Error(t, err, "checksum")

	_, err = AddressFromBytes(make([]byte, 31))
	assert.Error(t, err)
}

func TestDeriveAddress_Distinct(t *testing.T) {
	prog := Address{0xaa}
	owner := Address{0x01}
	other := Address{0x02}

	seen := map[Address]string{}
	add := func(name string, a Address) {
		t.Helper()
		if prev, ok := seen[a]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[a] = name
	}
	add("profile", ProfileAddress(prog, owner))
	add("profile other", ProfileAddress(prog, other))
	add("alarm 1", AlarmAddress(prog, owner, 1))
	add("alarm 2", AlarmAddress(prog, owner, 2))
	add("alarm 1 other", AlarmAddress(prog, other, 1))
	add("alarm 1 other program", AlarmAddress(Address{0xbb}, owner, 1))
	alarm := AlarmAddress(prog, owner, 1)
	add("vault", VaultAddress(prog, alarm))
	add("permit 7", PermitNonceAddress(prog, alarm, 7))
	add("permit 8", PermitNonceAddress(prog, alarm, 8))
	add("burn sink", BurnSink)

	assert.Equal(t, AlarmAddress(prog, owner, 1), alarm, "deterministic")
}

func TestDeriveAddress_SeedSplitMatters(t *testing.T) {
	prog := Address{}
	assert.NotEqual(t,
		DeriveAddress(prog, []byte("ab"), []byte("c")),
		DeriveAddress(prog, []byte("a"), []byte("bc")))
}

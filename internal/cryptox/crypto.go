// Package cryptox keeps the wakectl signing key encrypted at rest. The
// Ed25519 seed is sealed with AES-256-GCM under a key derived from the
// user's passphrase with Argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/filex"
)

const keyFileVersion = 1

var (
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")
	ErrKeyFileExists   = errors.New("key file already exists")
)

// KDFParams are the Argon2id cost parameters stored with each key file so
// that they can be raised later without breaking existing files.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

var DefaultKDF = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// KeyFile is the on-disk form of an encrypted signing key.
type KeyFile struct {
	Version    int            `json:"version"`
	Address    escrow.Address `json:"address"`
	KDF        KDFParams      `json:"kdf"`
	Salt       []byte         `json:"salt"`
	Nonce      []byte         `json:"nonce"`
	Ciphertext []byte         `json:"ciphertext"`
}

func DeriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, 32)
}

// Seal encrypts plaintext with AES-GCM under key. A fresh random nonce is
// generated for every call; aad is authenticated but not encrypted.
func Seal(plaintext, key, aad []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// Open reverses Seal.
func Open(ciphertext, nonce, key, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes", aesgcm.NonceSize())
	}
	return aesgcm.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptKey seals the seed of key under passphrase. The address is bound
// as additional data so a key file cannot be relabeled.
func EncryptKey(key ed25519.PrivateKey, passphrase []byte, p KDFParams) (*KeyFile, error) {
	addr, err := escrow.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	dk := DeriveKey(passphrase, salt, p)
	defer common.WipeByteArray(dk)

	ciphertext, nonce, err := Seal(key.Seed(), dk, addr[:])
	if err != nil {
		return nil, err
	}

	return &KeyFile{
		Version:    keyFileVersion,
		Address:    addr,
		KDF:        p,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt recovers the signing key.
func (kf *KeyFile) Decrypt(passphrase []byte) (ed25519.PrivateKey, error) {
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version %d", kf.Version)
	}

	dk := DeriveKey(passphrase, kf.Salt, kf.KDF)
	defer common.WipeByteArray(dk)

	seed, err := Open(kf.Ciphertext, kf.Nonce, dk, kf.Address[:])
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrWrongPassphrase
	}
	defer common.WipeByteArray(seed)

	key := ed25519.NewKeyFromSeed(seed)
	if addr, _ := escrow.AddressFromPublicKey(key.Public().(ed25519.PublicKey)); addr != kf.Address {
		return nil, ErrWrongPassphrase
	}
	return key, nil
}

// WriteKeyFile stores kf at path with owner-only permissions. An existing
// file is never overwritten.
func WriteKeyFile(path string, kf *KeyFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ReadKeyFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	kf := &KeyFile{}
	if err := json.Unmarshal(data, kf); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	return kf, nil
}

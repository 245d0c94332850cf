package cli

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/cryptox"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

func (a *App) keygen(_ context.Context, fs *flag.FlagSet, args []string) error {
	path := fs.String("o", a.config.KeyFile, "where to write the key file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := GetPassword(a.out, "New passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)
	again, err := GetPassword(a.out, "Repeat passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(pass, again) {
		return errPassphraseMismatch
	}
	if len(pass) == 0 {
		return errors.New("passphrase must not be empty")
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	kf, err := cryptox.EncryptKey(key, pass, a.kdf)
	if err != nil {
		return err
	}
	if err := cryptox.WriteKeyFile(*path, kf); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Key written to %s\nAddress: %s\n", *path, kf.Address)
	return nil
}

func (a *App) address(_ context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	kf, err := cryptox.ReadKeyFile(a.config.KeyFile)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, kf.Address)
	return nil
}

// unlock reads and decrypts a key file, prompting for its passphrase.
func (a *App) unlock(path, prompt string) (ed25519.PrivateKey, error) {
	kf, err := cryptox.ReadKeyFile(path)
	if err != nil {
		return nil, err
	}
	pass, err := GetPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pass)
	return kf.Decrypt(pass)
}

// signer returns the user's key, unlocking it on first use.
func (a *App) signer() (ed25519.PrivateKey, escrow.Address, error) {
	if a.key == nil {
		key, err := a.unlock(a.config.KeyFile, "Passphrase")
		if err != nil {
			return nil, escrow.Address{}, err
		}
		a.key = key
	}
	addr, err := escrow.AddressFromPublicKey(a.key.Public().(ed25519.PublicKey))
	return a.key, addr, err
}

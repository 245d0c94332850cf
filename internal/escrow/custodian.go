package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wakevault/internal/common"
)

// Custodian moves lamports between wallets and vaults and records every
// movement. A vault is never left holding less than the floor: it is either
// reduced with Deduct or emptied and removed with Close.
type Custodian struct {
	accts     Accounts
	floor     uint64
	transfers []Transfer
}

func NewCustodian(accts Accounts, floor uint64) *Custodian {
	return &Custodian{accts: accts, floor: floor}
}

// Transfers returns the movements recorded so far.
func (c *Custodian) Transfers() []Transfer {
	return c.transfers
}

func (c *Custodian) record(from, to Address, amount uint64, reason string) Transfer {
	t := Transfer{From: from, To: to, Amount: amount, Reason: reason}
	c.transfers = append(c.transfers, t)
	return t
}

func (c *Custodian) credit(ctx context.Context, to Address, amount uint64) error {
	bal, err := c.accts.Balance(ctx, to)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if bal+amount < bal {
		return ErrOverflow
	}
	return c.accts.SetBalance(ctx, to, bal+amount)
}

// Open debits amount from the funder's wallet and creates v holding it.
func (c *Custodian) Open(ctx context.Context, v *Vault, from Address, amount uint64) (Transfer, error) {
	bal, err := c.accts.Balance(ctx, from)
	if err != nil {
		return Transfer{}, fmt.Errorf("read balance: %w", err)
	}
	if bal < amount {
		return Transfer{}, ErrInsufficientFunds
	}
	if err := c.accts.SetBalance(ctx, from, bal-amount); err != nil {
		return Transfer{}, err
	}

	v.Lamports = amount
	if err := c.accts.InsertVault(ctx, v); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return Transfer{}, ErrAccountExists
		}
		return Transfer{}, fmt.Errorf("insert vault: %w", err)
	}
	return c.record(from, v.Address, amount, ReasonDeposit), nil
}

// Deduct moves amount out of v while keeping it open.
func (c *Custodian) Deduct(ctx context.Context, v *Vault, to Address, amount uint64, reason string) (Transfer, error) {
	if amount > v.Lamports || v.Lamports-amount < c.floor {
		return Transfer{}, ErrVaultBelowFloor
	}
	v.Lamports -= amount
	if err := c.accts.UpdateVault(ctx, v); err != nil {
		return Transfer{}, fmt.Errorf("update vault: %w", err)
	}
	if err := c.credit(ctx, to, amount); err != nil {
		return Transfer{}, err
	}
	return c.record(v.Address, to, amount, reason), nil
}

// Close pays the whole vault balance, floor included, to one recipient and
// removes the vault.
func (c *Custodian) Close(ctx context.Context, v *Vault, to Address, reason string) (Transfer, error) {
	amount := v.Lamports
	if err := c.accts.DeleteVault(ctx, v.Address); err != nil {
		return Transfer{}, fmt.Errorf("delete vault: %w", err)
	}
	v.Lamports = 0
	if err := c.credit(ctx, to, amount); err != nil {
		return Transfer{}, err
	}
	return c.record(v.Address, to, amount, reason), nil
}

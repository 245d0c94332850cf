// Package common defines shared constants, helpers and sentinel errors used
// across the wakevault server, the execution environment and the CLI.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAccountNotDeclared is returned by a store transaction when a handler
	// touches an account that the request did not list.
	ErrAccountNotDeclared = errors.New("account not declared by request")

	// Envelope / transport errors.
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnsupportedOp    = errors.New("unsupported operation")

	ErrFaucetDisabled = errors.New("faucet disabled")
	ErrInternal       = errors.New("internal error")
)

// Package client contains the CLI's building blocks for talking to a
// wakevault server and keeping a local alarm book.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): Ping, Submit
//     of signed envelopes, reads of alarms, vaults and balances, and the
//     development faucet.
//  2. A gRPC implementation (see GRPCClient) that tags every call with a
//     request id and maps status codes back to sentinel errors. Escrow
//     rejections come back as the matching escrow sentinel, so callers can
//     use errors.Is(err, escrow.ErrTooEarly).
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite alarm book and applying embedded goose migrations.
package client

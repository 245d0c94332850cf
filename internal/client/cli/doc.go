// Package cli implements wakectl, the command-line client of a wakevault
// server.
//
// Each invocation runs one command (see commands) or, with "shell", an
// interactive loop that accepts the same commands line by line. Commands
// that change state sign a request with the user's key, which is kept in an
// encrypted key file and unlocked with a passphrase on demand. Alarms the
// user creates or looks at are cached in a local SQLite book so "list" works
// offline.
package cli

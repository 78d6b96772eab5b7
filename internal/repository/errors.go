// Package repository defines the persistence boundary of the bot: the
// bookings table and the user_stats table, each with a MySQL backed and an
// in-memory implementation.  The sentinel errors below let the ledger tell
// a positional miss apart from an I/O failure.
package repository

import "errors"

// ErrRowOutOfRange is returned by DeleteAt when no row exists at the given
// position.  Positions shift after deletes and are invalidated by a
// rewrite, so callers should re-read before retrying.
var ErrRowOutOfRange = errors.New("row index out of range")

// ErrHeaderMismatch is returned by ClearAndWrite when the supplied header
// does not describe the bookings schema.  Nothing is written in that case.
var ErrHeaderMismatch = errors.New("header does not match bookings schema")

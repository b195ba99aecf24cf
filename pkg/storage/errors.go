package storage

import "errors"

// Common errors returned by storage implementations.
var (
	// ErrCorrupted is returned when persisted markers cannot be decoded. The
	// storage is left untouched so the operator can inspect it.
	ErrCorrupted = errors.New("corrupted marker storage")
	// ErrAlreadyInTx is returned when a transaction is started from a handle
	// that is already bound to one.
	ErrAlreadyInTx = errors.New("already in tx")
	// ErrNotInTx is returned when Commit or Rollback is called on a handle
	// that is not bound to a transaction.
	ErrNotInTx = errors.New("not in tx")
)

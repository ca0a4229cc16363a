package ledger

import "errors"

var (
	// ErrLoad indicates the persisted chain could not be restored into
	// a structurally valid ledger.
	ErrLoad = errors.New("persisted ledger is malformed")

	// ErrPersistence indicates the durable write of an append failed.
	// The in-memory chain has been rolled back.
	ErrPersistence = errors.New("ledger persistence failed")

	// ErrChainBroken indicates the hash chain failed an integrity check.
	ErrChainBroken = errors.New("hash chain is broken")
)

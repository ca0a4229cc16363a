package ledger

import "context"

// Store is the durable storage adapter consumed by the chain. The
// chain treats each call as synchronous and all-or-nothing: Persist
// either durably writes the full sequence or fails without effect.
//
// The adapter's responsibility is raw bytes; structural and semantic
// validation of what it loads belongs to the chain.
type Store interface {
	// Load returns the persisted entries in sequence order, or
	// found=false when nothing has been persisted yet.
	Load(ctx context.Context) (entries []Entry, found bool, err error)

	// Persist durably writes the full entry sequence.
	Persist(ctx context.Context, entries []Entry) error
}

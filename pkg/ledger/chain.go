// Package ledger implements the tamper-evident append-only event log
// backing the procurement workflow. Each entry is hash-chained to its
// predecessor; entries are immutable once appended, and every append is
// synchronously persisted through a storage adapter before it is
// considered committed.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/openprocure/tenderchain/pkg/events"
)

// GenesisDigest is the previous-digest sentinel of the first entry.
const GenesisDigest = "0"

// Entry is an immutable, hash-chained record. Digest covers every other
// field; Nonce is reserved for future proof-of-work and is always zero.
type Entry struct {
	Sequence       uint64          `json:"sequence"`
	CreatedAt      time.Time       `json:"created_at"`
	Payload        events.Envelope `json:"payload"`
	PreviousDigest string          `json:"previous_digest"`
	Nonce          uint64          `json:"nonce"`
	Digest         string          `json:"digest"`
}

// computeDigest hashes the entry's fields (except Digest itself) over
// their RFC 8785 canonical JSON form, so the digest does not depend on
// serialization ordering.
func computeDigest(e Entry) (string, error) {
	hashable := struct {
		Sequence       uint64          `json:"sequence"`
		CreatedAt      time.Time       `json:"created_at"`
		Payload        events.Envelope `json:"payload"`
		PreviousDigest string          `json:"previous_digest"`
		Nonce          uint64          `json:"nonce"`
	}{e.Sequence, e.CreatedAt, e.Payload, e.PreviousDigest, e.Nonce}

	raw, err := json.Marshal(hashable)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry for hashing: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize entry: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Chain is the append-only, hash-chained event log. A single lock
// serializes appends (including their durable write), so readers
// observe either the pre- or post-append chain, never a partial one.
type Chain struct {
	mu      sync.RWMutex
	entries []Entry
	store   Store
	clock   func() time.Time
}

// Open restores the chain from the storage adapter, or bootstraps a new
// one with a genesis entry if nothing is persisted. A persisted chain
// that fails structural or integrity checks yields ErrLoad.
func Open(ctx context.Context, store Store) (*Chain, error) {
	return OpenWithClock(ctx, store, time.Now)
}

// OpenWithClock is Open with an injectable clock for testing.
func OpenWithClock(ctx context.Context, store Store, clock func() time.Time) (*Chain, error) {
	c := &Chain{store: store, clock: clock}

	entries, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if !found {
		if err := c.bootstrap(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: persisted chain is empty", ErrLoad)
	}
	if entries[0].Payload.Kind != events.KindGenesis {
		return nil, fmt.Errorf("%w: first entry is not genesis", ErrLoad)
	}
	c.entries = entries

	// Recompute every digest rather than trusting the stored ones; a
	// hand-edited file must be caught here, not silently accepted.
	if res := c.Validate(); !res.Valid {
		return nil, fmt.Errorf("%w: entry %d: %s", ErrLoad, res.FailureIndex, res.Reason)
	}
	return c, nil
}

func (c *Chain) bootstrap(ctx context.Context) error {
	env, err := events.NewEnvelope(events.KindGenesis, "", events.Genesis{Message: "genesis"})
	if err != nil {
		return err
	}
	if _, err := c.Append(ctx, env); err != nil {
		return err
	}
	return nil
}

// Append commits a new entry carrying env and synchronously persists
// the updated chain. The append is all-or-nothing: if the durable write
// fails, the in-memory chain is rolled back and ErrPersistence returned.
func (c *Chain) Append(ctx context.Context, env events.Envelope) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := GenesisDigest
	if n := len(c.entries); n > 0 {
		prev = c.entries[n-1].Digest
	}

	entry := Entry{
		Sequence:       uint64(len(c.entries)),
		CreatedAt:      c.clock().UTC(),
		Payload:        env,
		PreviousDigest: prev,
	}
	digest, err := computeDigest(entry)
	if err != nil {
		return Entry{}, err
	}
	entry.Digest = digest

	c.entries = append(c.entries, entry)
	if err := c.store.Persist(ctx, c.entries); err != nil {
		c.entries = c.entries[:len(c.entries)-1]
		return Entry{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return entry, nil
}

// ValidationResult reports the outcome of a full-chain integrity check.
// FailureIndex is -1 when the chain is valid.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	FailureIndex int    `json:"failure_index"`
	Reason       string `json:"reason,omitempty"`
}

// Validate walks the whole chain, recomputing each entry's digest and
// checking previous-digest linkage. It is an O(n) audit operation, not
// a hot path.
func (c *Chain) Validate() ValidationResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i, entry := range c.entries {
		if i == 0 {
			if entry.PreviousDigest != GenesisDigest {
				return invalid(i, fmt.Sprintf("genesis previous digest is %q, want %q", entry.PreviousDigest, GenesisDigest))
			}
		} else if entry.PreviousDigest != c.entries[i-1].Digest {
			return invalid(i, fmt.Sprintf("previous digest mismatch: have %s, want %s", entry.PreviousDigest, c.entries[i-1].Digest))
		}
		if entry.Sequence != uint64(i) {
			return invalid(i, fmt.Sprintf("sequence gap: have %d, want %d", entry.Sequence, i))
		}
		computed, err := computeDigest(entry)
		if err != nil {
			return invalid(i, fmt.Sprintf("digest computation failed: %v", err))
		}
		if computed != entry.Digest {
			return invalid(i, fmt.Sprintf("digest mismatch: computed %s, stored %s", computed, entry.Digest))
		}
	}
	return ValidationResult{Valid: true, FailureIndex: -1}
}

func invalid(index int, reason string) ValidationResult {
	return ValidationResult{Valid: false, FailureIndex: index, Reason: reason}
}

// EntriesFor yields every entry whose payload references tenderID, in
// append order. The sequence is finite and re-iterable; it iterates
// over a snapshot taken atomically at call time.
func (c *Chain) EntriesFor(tenderID string) iter.Seq[Entry] {
	c.mu.RLock()
	matched := make([]Entry, 0)
	for _, e := range c.entries {
		if e.Payload.TenderID == tenderID {
			matched = append(matched, e)
		}
	}
	c.mu.RUnlock()

	return func(yield func(Entry) bool) {
		for _, e := range matched {
			if !yield(e) {
				return
			}
		}
	}
}

// Entries returns a copy of the whole chain (raw audit view).
func (c *Chain) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Length returns the number of entries, including genesis.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Head returns the digest of the latest entry.
func (c *Chain) Head() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return GenesisDigest
	}
	return c.entries[len(c.entries)-1].Digest
}

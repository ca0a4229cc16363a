package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openprocure/tenderchain/pkg/events"
)

// SQLStore persists the chain through database/sql. It supports both
// Postgres and SQLite via standard drivers; entries are append-only, so
// Persist only inserts the rows not yet present.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	sequence BIGINT PRIMARY KEY,
	created_at TEXT NOT NULL,
	payload TEXT NOT NULL,
	previous_digest TEXT NOT NULL,
	nonce BIGINT NOT NULL DEFAULT 0,
	digest TEXT NOT NULL
);
`

// Init creates the entries table if absent.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Load(ctx context.Context) ([]Entry, bool, error) {
	query := `SELECT sequence, created_at, payload, previous_digest, nonce, digest
		FROM ledger_entries ORDER BY sequence`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			createdAt string
			payload   string
		)
		if err := rows.Scan(&entry.Sequence, &createdAt, &payload, &entry.PreviousDigest, &entry.Nonce, &entry.Digest); err != nil {
			return nil, false, err
		}
		entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, false, fmt.Errorf("entry %d has invalid created_at: %w", entry.Sequence, err)
		}
		var env events.Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, false, fmt.Errorf("entry %d has invalid payload: %w", entry.Sequence, err)
		}
		entry.Payload = env
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return entries, len(entries) > 0, nil
}

func (s *SQLStore) Persist(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&count); err != nil {
		return err
	}
	if count > len(entries) {
		return fmt.Errorf("persisted chain has %d entries but caller supplied %d", count, len(entries))
	}

	insert := `INSERT INTO ledger_entries (sequence, created_at, payload, previous_digest, nonce, digest)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, entry := range entries[count:] {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to serialize entry %d payload: %w", entry.Sequence, err)
		}
		_, err = tx.ExecContext(ctx, insert,
			entry.Sequence,
			entry.CreatedAt.UTC().Format(time.RFC3339Nano),
			string(payload),
			entry.PreviousDigest,
			entry.Nonce,
			entry.Digest,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", entry.Sequence, err)
		}
	}
	return tx.Commit()
}

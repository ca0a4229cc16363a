package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprocure/tenderchain/pkg/events"
)

func TestFileStoreAbsent(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "chain.json"))
	require.NoError(t, err)

	_, found, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "chain.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	chain, err := Open(ctx, store)
	require.NoError(t, err)
	_, err = chain.Append(ctx, testEnvelope(t, events.KindTenderCreated, "t-1", map[string]string{"title": "bridge"}))
	require.NoError(t, err)
	_, err = chain.Append(ctx, testEnvelope(t, events.KindBidPlaced, "t-1", map[string]any{"amount": 500}))
	require.NoError(t, err)

	reloaded, err := Open(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Length())
	assert.Equal(t, chain.Head(), reloaded.Head())
	assert.True(t, reloaded.Validate().Valid)
}

func TestFileStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = store.Load(context.Background())
	assert.Error(t, err)

	_, err = Open(context.Background(), store)
	require.ErrorIs(t, err, ErrLoad)
}

func TestFileStoreIgnoresUnknownFields(t *testing.T) {
	// Forward compatibility: entries written by a newer version may
	// carry extra fields.
	path := filepath.Join(t.TempDir(), "chain.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	chain, err := Open(ctx, store)
	require.NoError(t, err)
	head := chain.Head()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	generic[0]["future_field"] = "ignored"
	patched, err := json.Marshal(generic)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, patched, 0600))

	reloaded, err := Open(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, head, reloaded.Head())
}

package idempotency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/idempotency"
)

func TestMemoryStoreWriteOnce(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ctx := context.Background()

	_, seen, err := store.Seen(ctx, "O1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Record(ctx, "O1", "RESERVED"))

	rec, seen, err := store.Seen(ctx, "O1")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, "RESERVED", rec.Outcome)

	// the second writer loses, regardless of outcome
	err = store.Record(ctx, "O1", "REJECTED")
	assert.ErrorIs(t, err, idempotency.ErrDuplicateKey)

	rec, _, _ = store.Seen(ctx, "O1")
	assert.Equal(t, "RESERVED", rec.Outcome)
}

package ledger

import (
	"context"
	"testing"

	"github.com/broomate/roomie/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingStore struct {
	store.Store
	getErr error
	setErr error
}

func (f failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func TestAcknowledgeAndRevoke(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	l := New(mem, zaptest.NewLogger(t))

	assert.Empty(t, l.GetAcknowledged(ctx, "alice"))

	require.NoError(t, l.Acknowledge(ctx, "alice", "conv-2"))
	require.NoError(t, l.Acknowledge(ctx, "alice", "conv-1"))
	require.NoError(t, l.Acknowledge(ctx, "alice", "conv-1"))
	assert.Equal(t, []string{"conv-1", "conv-2"}, l.GetAcknowledged(ctx, "alice").Sorted())

	raw, err := mem.Get(ctx, "readConversations_alice")
	require.NoError(t, err)
	assert.JSONEq(t, `["conv-1","conv-2"]`, string(raw))

	require.NoError(t, l.Revoke(ctx, "alice", "conv-1"))
	require.NoError(t, l.Revoke(ctx, "alice", "conv-404"))
	assert.Equal(t, []string{"conv-2"}, l.GetAcknowledged(ctx, "alice").Sorted())
}

func TestPerUserIsolation(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), zaptest.NewLogger(t))

	require.NoError(t, l.Acknowledge(ctx, "alice", "conv-1"))

	assert.True(t, l.GetAcknowledged(ctx, "alice").Has("conv-1"))
	assert.False(t, l.GetAcknowledged(ctx, "bob").Has("conv-1"))
}

func TestSetAcknowledgedOverwrites(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), zaptest.NewLogger(t))

	require.NoError(t, l.Acknowledge(ctx, "alice", "old"))
	require.NoError(t, l.SetAcknowledged(ctx, "alice", NewSet("a", "b")))
	assert.Equal(t, []string{"a", "b"}, l.GetAcknowledged(ctx, "alice").Sorted())
}

func TestCorruptedEntryFailsOpen(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, Key("alice"), []byte(`{not json`)))

	l := New(mem, zaptest.NewLogger(t))
	assert.Empty(t, l.GetAcknowledged(ctx, "alice"))

	// Writing repairs the entry.
	require.NoError(t, l.Acknowledge(ctx, "alice", "conv-1"))
	assert.True(t, l.GetAcknowledged(ctx, "alice").Has("conv-1"))
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	broken := failingStore{Store: store.NewMemory(), getErr: errors.New("disk gone"), setErr: errors.New("disk gone")}
	l := New(broken, zaptest.NewLogger(t))

	assert.Empty(t, l.GetAcknowledged(ctx, "alice"))
	assert.Error(t, l.Acknowledge(ctx, "alice", "conv-1"))
}

func TestEmptyUser(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), zaptest.NewLogger(t))

	assert.Empty(t, l.GetAcknowledged(ctx, ""))
	assert.True(t, errors.Is(l.Acknowledge(ctx, "", "conv-1"), ErrNoUser))
	assert.True(t, errors.Is(l.SetAcknowledged(ctx, "", NewSet()), ErrNoUser))
}

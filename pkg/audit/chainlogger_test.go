package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainLoggerLinksEntries(t *testing.T) {
	logger := NewChainLogger()

	e1, err := logger.Append("op=deposit account=478758")
	require.NoError(t, err)
	e2, err := logger.Append("op=withdraw account=478758")
	require.NoError(t, err)
	e3, err := logger.Append("op=transfer source=478758 dest=225487")
	require.NoError(t, err)

	assert.Equal(t, genesisHash, e1.PreviousHash)
	assert.Equal(t, e1.Hash, e2.PreviousHash)
	assert.Equal(t, e2.Hash, e3.PreviousHash)
	assert.Equal(t, int64(3), e3.Sequence)
	assert.Equal(t, e3.Hash, logger.Head())

	assert.True(t, VerifyChain([]*LogEntry{e1, e2, e3}))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	logger := NewChainLogger()
	e1, _ := logger.Append("a")
	e2, _ := logger.Append("b")
	e3, _ := logger.Append("c")
	chain := []*LogEntry{e1, e2, e3}

	original := e2.Payload
	e2.Payload = "tampered"
	assert.False(t, VerifyChain(chain), "payload edit should break the chain")
	e2.Payload = original

	originalHash := e2.Hash
	e2.Hash = "deadbeef"
	assert.False(t, VerifyChain(chain), "hash edit should break the chain")
	e2.Hash = originalHash

	e3.PreviousHash = "deadbeef"
	assert.False(t, VerifyChain(chain), "broken link should fail verification")
}

func TestVerifyChainEmpty(t *testing.T) {
	assert.True(t, VerifyChain(nil))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	logger := NewChainLoggerWithSink(store, "", 0)
	for _, payload := range []string{"first", "second", "third"} {
		_, err := logger.Append(payload)
		require.NoError(t, err)
	}

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, VerifyChain(entries))

	head, sequence, err := store.Head()
	require.NoError(t, err)
	assert.Equal(t, logger.Head(), head)
	assert.Equal(t, int64(3), sequence)
}

func TestChainLoggerResumesFromStoredHead(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	first := NewChainLoggerWithSink(store, "", 0)
	_, err = first.Append("before restart")
	require.NoError(t, err)

	head, sequence, err := store.Head()
	require.NoError(t, err)

	second := NewChainLoggerWithSink(store, head, sequence)
	entry, err := second.Append("after restart")
	require.NoError(t, err)

	assert.Equal(t, head, entry.PreviousHash)
	assert.Equal(t, sequence+1, entry.Sequence)

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.True(t, VerifyChain(entries))
}

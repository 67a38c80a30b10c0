package shuffle

import (
	"fmt"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityHasher maps a decimal-ASCII key directly to a HashedKey,
// so tests can pick exact hash values instead of depending on a real
// digest function.
type identityHasher struct{}

func (identityHasher) HashKey(key []byte) (HashedKey, error) {
	var n uint64
	for _, c := range key {
		n = n*10 + uint64(c-'0')
	}
	return HashedKeyFromUint64(n), nil
}

// spreadHasher maps a decimal-ASCII key n (n < 2048) to a HashedKey
// whose high 64 bits are n<<53, so bucketIndex places it in bucket
// floor(n*1000/2048): small keys spread over many buckets while keeping
// their relative order.
type spreadHasher struct{}

func (spreadHasher) HashKey(key []byte) (HashedKey, error) {
	k, _ := identityHasher{}.HashKey(key)
	return HashedKey{hi: k.lo << 53}, nil
}

func collect(t *testing.T, it *Iterator) []Record {
	t.Helper()
	var out []Record
	for it.Scan() {
		out = append(out, it.Record())
	}
	require.NoError(t, it.Err())
	return out
}

func TestShufflerInMemoryOrdering(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)

	keys := []string{"30", "10", "20"}
	for _, k := range keys {
		require.NoError(t, s.Add([]byte(k), []byte("payload-"+k)))
	}

	recs := collect(t, s.Iterate())
	require.Len(t, recs, 3)
	assert.Equal(t, "payload-10", string(recs[0].Payload))
	assert.Equal(t, "payload-20", string(recs[1].Payload))
	assert.Equal(t, "payload-30", string(recs[2].Payload))
}

func TestShufflerEmpty(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	recs := collect(t, s.Iterate())
	assert.Empty(t, recs)
}

func TestShufflerRejectsNilPayload(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	assert.Error(t, s.Add([]byte("1"), nil))
}

func TestShufflerAcceptsZeroLengthPayload(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	require.NoError(t, s.Add([]byte("1"), []byte{}))
	recs := collect(t, s.Iterate())
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Payload)
}

func TestShufflerAddAfterIterateFails(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	require.NoError(t, s.Add([]byte("1"), []byte("x")))
	s.Iterate()
	assert.Error(t, s.Add([]byte("2"), []byte("y")))
}

func TestShufflerDuplicateKeyErrorCarriesBothPayloads(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	require.NoError(t, s.Add([]byte("5"), []byte("first")))
	require.NoError(t, s.Add([]byte("5"), []byte("second")))

	it := s.Iterate()
	for it.Scan() {
	}
	dup, ok := it.Err().(*DuplicateKeysError)
	require.True(t, ok)
	assert.Equal(t, "first", string(dup.First))
	assert.Equal(t, "second", string(dup.Second))
}

func TestShufflerDisableShufflingPreservesInsertionOrder(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, nil, true)
	require.NoError(t, err)
	keys := []string{"30", "10", "20"}
	for _, k := range keys {
		require.NoError(t, s.Add([]byte(k), []byte("payload-"+k)))
	}

	recs := collect(t, s.Iterate())
	require.Len(t, recs, 3)
	assert.Equal(t, "payload-30", string(recs[0].Payload))
	assert.Equal(t, "payload-10", string(recs[1].Payload))
	assert.Equal(t, "payload-20", string(recs[2].Payload))
}

func TestShufflerSpillsAcrossManyBuckets(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, spreadHasher{}, false)
	require.NoError(t, err)

	const n = 1100 // exceeds BucketsNumber, so some buckets hold >1 record.
	for i := n - 1; i >= 0; i-- {
		key := fmt.Sprintf("%d", i)
		require.NoError(t, s.Add([]byte(key), []byte(key)))
	}
	// Force the spill transition directly rather than writing a
	// gigabyte of filler to cross MaxMemBufferSize organically.
	require.NoError(t, s.spill())
	assert.Equal(t, writingSpilled, s.phase)

	recs := collect(t, s.Iterate())
	require.Len(t, recs, n)
	for i, r := range recs {
		assert.Equal(t, fmt.Sprintf("%d", i), string(r.Payload))
	}
}

func TestShufflerSpillPreservesPayloadMultiset(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)

	const n = 500
	want := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%d", i)
		payload := fmt.Sprintf("p%d", i)
		want[payload]++
		require.NoError(t, s.Add([]byte(key), []byte(payload)))
	}
	assert.Equal(t, sumPayloadBytes(want), s.Size())
	require.NoError(t, s.spill())

	recs := collect(t, s.Iterate())
	got := make(map[string]int, n)
	for _, r := range recs {
		got[string(r.Payload)]++
	}
	assert.Equal(t, want, got)
}

func sumPayloadBytes(m map[string]int) int64 {
	var total int64
	for p, c := range m {
		total += int64(len(p) * c)
	}
	return total
}

func TestTwoShufflersInSameDirDoNotCollide(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s1, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)
	s2, err := New(dir, identityHasher{}, false)
	require.NoError(t, err)

	require.NoError(t, s1.Add([]byte("1"), []byte("one-from-s1")))
	require.NoError(t, s2.Add([]byte("1"), []byte("one-from-s2")))
	// Spill both so each writes its record to a bucket file in dir.
	require.NoError(t, s1.spill())
	require.NoError(t, s2.spill())

	recs1 := collect(t, s1.Iterate())
	recs2 := collect(t, s2.Iterate())
	require.Len(t, recs1, 1)
	require.Len(t, recs2, 1)
	assert.Equal(t, "one-from-s1", string(recs1[0].Payload))
	assert.Equal(t, "one-from-s2", string(recs2[0].Payload))
}

package shuffle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	b := newBucket(filepath.Join(dir, "bucket_test_000.tmp"))
	want := []record{
		{HashedKeyFromUint64(3), []byte("three")},
		{HashedKeyFromUint64(1), []byte{}}, // empty payload must round-trip too.
		{HashedKeyFromUint64(2), make([]byte, 5<<20)},
	}
	for _, r := range want {
		require.NoError(t, b.add(r.hkey, r.payload))
	}

	got, err := b.readValues()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].hkey.Equal(got[i].hkey))
		assert.Equal(t, len(want[i].payload), len(got[i].payload))
		assert.Equal(t, want[i].payload, got[i].payload)
	}
}

func TestBucketNeverWrittenHasNoFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	b := newBucket(filepath.Join(dir, "bucket_test_001.tmp"))
	got, err := b.readValues()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, statErr := os.Stat(b.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBucketDeleteIsIdempotent(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	b := newBucket(filepath.Join(dir, "bucket_test_002.tmp"))
	require.NoError(t, b.add(HashedKeyFromUint64(1), []byte("x")))
	_, err := b.readValues()
	require.NoError(t, err)

	require.NoError(t, b.delete())
	require.NoError(t, b.delete())
}

func TestBucketLenAndSize(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	b := newBucket(filepath.Join(dir, "bucket_test_003.tmp"))
	require.NoError(t, b.add(HashedKeyFromUint64(1), []byte("abc")))
	require.NoError(t, b.add(HashedKeyFromUint64(2), []byte("de")))
	assert.Equal(t, 2, b.len)
	assert.Equal(t, int64(5), b.size)
}

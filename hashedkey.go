package shuffle

import (
	"encoding/binary"
	"math/big"

	"github.com/grailbio/base/errors"
)

// HkeySizeBytes is the width, in bytes, of an encoded HashedKey.
const HkeySizeBytes = 16

// HashedKey is a 128-bit unsigned integer: either the hashed result of
// a caller's key, or the caller's key verbatim when shuffling is
// disabled. It is the sole ordering criterion for a Shuffler's output.
type HashedKey struct {
	hi, lo uint64
}

// HashedKeyFromUint64 builds a HashedKey from a plain uint64, for
// callers that hash into a narrower space or use small integer keys
// directly with shuffling disabled.
func HashedKeyFromUint64(v uint64) HashedKey {
	return HashedKey{hi: 0, lo: v}
}

// HashedKeyFromBigInt builds a HashedKey from a non-negative big.Int
// that fits in 128 bits. It fails (per spec.md's open question on the
// admissible integer range) rather than silently wrapping or
// truncating an out-of-range value.
func HashedKeyFromBigInt(v *big.Int) (HashedKey, error) {
	if v.Sign() < 0 {
		return HashedKey{}, errors.E("shuffle: hkey must be non-negative, got", v.String())
	}
	if v.BitLen() > 128 {
		return HashedKey{}, errors.E("shuffle: hkey does not fit in 128 bits:", v.String())
	}
	bytes := make([]byte, 16)
	v.FillBytes(bytes)
	return decodeHashedKey(bytes), nil
}

// HashedKeyFromBytes builds a HashedKey from its canonical 16-byte
// big-endian form, as produced by a Hasher (see package hashing) or
// read back from a bucket shard. b must be exactly HkeySizeBytes long.
func HashedKeyFromBytes(b []byte) HashedKey {
	return decodeHashedKey(b)
}

// Less reports whether k is strictly less than other.
func (k HashedKey) Less(other HashedKey) bool {
	if k.hi != other.hi {
		return k.hi < other.hi
	}
	return k.lo < other.lo
}

// Equal reports whether k and other encode the same 128-bit value.
func (k HashedKey) Equal(other HashedKey) bool {
	return k.hi == other.hi && k.lo == other.lo
}

// bigInt returns k as a *big.Int, used only by bucketIndex's
// multiply-then-divide arithmetic, which overflows 128 bits.
func (k HashedKey) bigInt() *big.Int {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(k.hi), 64)
	return v.Or(v, new(big.Int).SetUint64(k.lo))
}

// encode writes the canonical 16-byte representation of k: the high
// 64 bits first, the low 64 bits second, each big-endian. The byte
// order is fixed (not host-native) so temporary files are bit-for-bit
// reproducible regardless of platform; it is never interpreted
// outside this process, so the choice of endianness has no
// compatibility consequences.
func (k HashedKey) encode(dst []byte) {
	binary.BigEndian.PutUint64(dst[0:8], k.hi)
	binary.BigEndian.PutUint64(dst[8:16], k.lo)
}

// decodeHashedKey reads a HashedKey from its canonical 16-byte form.
// The caller must ensure len(b) >= HkeySizeBytes.
func decodeHashedKey(b []byte) HashedKey {
	return HashedKey{
		hi: binary.BigEndian.Uint64(b[0:8]),
		lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

// putUint64Size writes n as a fixed 8-byte big-endian length prefix.
func putUint64Size(dst []byte, n uint64) {
	binary.BigEndian.PutUint64(dst, n)
}

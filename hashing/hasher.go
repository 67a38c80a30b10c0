// Package hashing implements the salted 128-bit key hash the shuffle
// package's Shuffler uses to turn arbitrary caller keys into ordering
// keys. spec.md treats this hashing primitive as an external
// collaborator; this package is the concrete implementation this repo
// ships so the module builds and runs end to end.
package hashing

import (
	"crypto/sha256"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/shuffle"
	"github.com/minio/highwayhash"
)

// Hasher computes a deterministic, salt-dependent 128-bit hash of a
// byte-string key, implementing shuffle.Hasher.
//
// Grounded on fusion/postprocess.go's use of minio/highwayhash (a
// direct teacher dependency) for a fixed-width, collision-resistant
// digest; unlike that call site (which uses the 256-bit digest to key
// a Go map), this one uses Sum128, since a 128-bit digest maps
// directly onto shuffle.HashedKey with no truncation or
// concatenation.
type Hasher struct {
	key [highwayhash.Size256]byte
}

// New builds a Hasher from an arbitrary-length salt. The salt is
// stretched to HighwayHash's required 32-byte key via SHA-256: no
// dependency in this repo's pack performs key derivation, and this is
// a small, well-defined use of the standard library for it.
func New(salt []byte) *Hasher {
	return &Hasher{key: sha256.Sum256(salt)}
}

// HashKey returns the 128-bit HighwayHash digest of key under this
// Hasher's salt.
func (h *Hasher) HashKey(key []byte) (shuffle.HashedKey, error) {
	sum, err := highwayhash.Sum128(key, h.key[:])
	if err != nil {
		return shuffle.HashedKey{}, errors.E(err, "hashing: HighwayHash-128")
	}
	return shuffle.HashedKeyFromBytes(sum[:]), nil
}

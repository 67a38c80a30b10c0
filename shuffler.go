package shuffle

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// MaxMemBufferSize is the cumulative payload-byte threshold at which
// a Shuffler spills its in-memory buffer to bucket shards. Crossing
// it is a one-way transition; a Shuffler never returns to the
// in-memory fast path.
const MaxMemBufferSize = 1 << 30 // 1 GiB

// phase is the Shuffler's position in its one-way state machine:
// writingInMemory -> writingSpilled -> readOnly, or
// writingInMemory -> readOnly directly if it never spills.
type phase int

const (
	writingInMemory phase = iota
	writingSpilled
	readOnly
)

// DuplicateKeysError is raised while iterating a Shuffler if two
// records share the same hashed key. It carries both colliding
// payloads so the caller can decide how to report or resolve them.
type DuplicateKeysError struct {
	First, Second []byte
}

func (e *DuplicateKeysError) Error() string {
	return fmt.Sprintf("shuffle: duplicate hashed key: %d and %d byte payloads collide", len(e.First), len(e.Second))
}

// Hasher computes a deterministic, salted 128-bit hash of a byte-string
// key. It is the external collaborator spec.md describes; see package
// hashing for the concrete implementation this repo ships.
type Hasher interface {
	HashKey(key []byte) (HashedKey, error)
}

// entry is a single buffered (hkey, payload) record held in memory
// before it is either streamed directly (fast path) or drained into
// buckets (spill path).
type entry struct {
	hkey    HashedKey
	payload []byte
}

// Shuffler is a stable, external-memory shuffler: see the package doc
// comment for the full contract. It is constructed with New, fed
// records with Add, and consumed exactly once with Iterate.
//
// Grounded on encoding/bampair's DistantMateTable (the
// mem-shard/disk-shard duality and its mateShard interface) fused with
// original_source's Shuffler class for the exact spill threshold and
// state machine.
type Shuffler struct {
	hasher           Hasher
	disableShuffling bool

	phase      phase
	totalBytes int64

	memBuffer []entry
	buckets   []*bucket
}

// New constructs a Shuffler that spills to dirpath, hashing keys with
// the salt hasher was built from. disableShuffling, when true, skips
// hashing entirely: Add's key argument is then interpreted directly as
// a non-negative integer hkey (see Add).
//
// New allocates BucketsNumber bucket shards with filenames of the form
// bucket_<group>_<NNN>.tmp, where <group> is a fresh random identifier
// unique to this Shuffler instance, so that two Shufflers sharing
// dirpath never collide on temp files. The group identifier is
// generated with crypto/rand rather than a UUID library: no dependency
// in this repo's pack supplies one, and the requirement here is
// exactly N random bytes rendered as hex, which crypto/rand is the
// correct stdlib primitive for (this is a collision-avoidance
// mechanism, not merely cosmetic, so it must not be predictable).
func New(dirpath string, hasher Hasher, disableShuffling bool) (*Shuffler, error) {
	group, err := randomGroupID()
	if err != nil {
		return nil, errors.E(err, "shuffle: generate group id")
	}
	s := &Shuffler{
		hasher:           hasher,
		disableShuffling: disableShuffling,
		phase:            writingInMemory,
		buckets:          make([]*bucket, BucketsNumber),
	}
	for i := 0; i < BucketsNumber; i++ {
		name := fmt.Sprintf("bucket_%s_%03d.tmp", group, i)
		s.buckets[i] = newBucket(filepath.Join(dirpath, name))
	}
	return s, nil
}

func randomGroupID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Size returns the total number of payload bytes accepted so far (key
// bytes are not counted).
func (s *Shuffler) Size() int64 {
	return s.totalBytes
}

// BucketLengths returns, in Writing-InMemory phase, a single-element
// slice equal to the in-memory buffer's length; otherwise the
// per-bucket record counts, in bucket-index order.
func (s *Shuffler) BucketLengths() []int {
	if s.phase == writingInMemory {
		return []int{len(s.memBuffer)}
	}
	lengths := make([]int, len(s.buckets))
	for i, b := range s.buckets {
		lengths[i] = b.len
	}
	return lengths
}

// Add accepts one (key, payload) record.
//
// It fails if iteration has already begun, if payload is nil (the Go
// analogue of "not a byte string"), or — when disableShuffling is
// true — if key does not fit in a non-negative 128-bit integer.
// Otherwise the key is hashed (or, with shuffling disabled, used
// directly as the hkey) and the record is appended to the in-memory
// buffer or, once MaxMemBufferSize has been crossed, to the
// appropriate bucket shard.
func (s *Shuffler) Add(key []byte, payload []byte) error {
	if s.phase == readOnly {
		return errors.New("shuffle: Add called after iteration began")
	}
	if payload == nil {
		return errors.New("shuffle: payload must be a non-nil byte string")
	}

	hkey, err := s.computeHashedKey(key)
	if err != nil {
		return err
	}

	s.totalBytes += int64(len(payload))

	switch s.phase {
	case writingInMemory:
		s.memBuffer = append(s.memBuffer, entry{hkey, payload})
		if s.totalBytes > MaxMemBufferSize {
			if err := s.spill(); err != nil {
				return err
			}
		}
	case writingSpilled:
		idx := bucketIndex(hkey, len(s.buckets))
		if err := s.buckets[idx].add(hkey, payload); err != nil {
			return err
		}
	}
	return nil
}

// computeHashedKey derives the HashedKey for a raw Add key, per
// spec.md §4.5: hashed via the Hasher collaborator, or used verbatim
// as a non-negative 128-bit integer when shuffling is disabled.
func (s *Shuffler) computeHashedKey(key []byte) (HashedKey, error) {
	if !s.disableShuffling {
		return s.hasher.HashKey(key)
	}
	v := new(big.Int).SetBytes(key)
	return HashedKeyFromBigInt(v)
}

// spill drains the entire in-memory buffer into bucket shards, one
// bucket.add per record, and transitions to writingSpilled. This is a
// one-way transition: it is only ever called once, from Add, the
// first time totalBytes crosses MaxMemBufferSize.
func (s *Shuffler) spill() error {
	for _, e := range s.memBuffer {
		idx := bucketIndex(e.hkey, len(s.buckets))
		if err := s.buckets[idx].add(e.hkey, e.payload); err != nil {
			return err
		}
	}
	s.memBuffer = nil
	s.phase = writingSpilled
	return nil
}

// Record is a single (hkey, payload) pair yielded by Iterate.
type Record struct {
	HashedKey HashedKey
	Payload   []byte
}

// Iterate atomically transitions the Shuffler to its read-only phase
// and returns an Iterator over every accepted record, exactly once.
// With shuffling enabled the output is ordered strictly ascending by
// hashed key.
//
// If shuffling is enabled, records are sorted before emission: the
// full in-memory buffer at once if the Shuffler never spilled, or
// each bucket's contents independently (since concatenating buckets
// in index order is already globally sorted by construction, per
// bucketIndex's monotonicity — only the within-bucket order needs
// sorting, and by design each bucket's contents fit comfortably in
// memory). If shuffling is disabled, no sort runs: records are emitted
// in insertion order if the Shuffler never spilled, or otherwise
// bucket by bucket in index order, in insertion order within each
// bucket.
//
// Grounded on the Scan/Record/Err iterator shape used throughout this
// repo's bam, pam, and bamprovider readers (e.g.
// encoding/bamprovider's Iterator interface), rather than
// materializing the whole shuffled dataset into a slice, which would
// defeat the external-memory design this package exists for.
func (s *Shuffler) Iterate() *Iterator {
	wasInMemory := s.phase == writingInMemory
	s.phase = readOnly

	if wasInMemory {
		entries := s.memBuffer
		s.memBuffer = nil
		if !s.disableShuffling {
			sort.Slice(entries, func(i, j int) bool { return entries[i].hkey.Less(entries[j].hkey) })
		}
		return &Iterator{memEntries: entries, disableShuffling: s.disableShuffling}
	}
	return &Iterator{buckets: s.buckets, disableShuffling: s.disableShuffling}
}

// Iterator is a single-use, lazy stream of Shuffler output, obtained
// from Shuffler.Iterate. Use it like a bufio.Scanner:
//
//	it := s.Iterate()
//	for it.Scan() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	disableShuffling bool

	// in-memory source.
	memEntries []entry
	memPos     int

	// spilled source.
	buckets       []*bucket
	bucketIdx     int
	bucketRecords []record
	bucketPos     int

	rec  Record
	prev *HashedKey
	err  error
	done bool
}

// Record returns the most recent record read by Scan.
//
// REQUIRES: the last call to Scan returned true.
func (it *Iterator) Record() Record { return it.rec }

// Err returns the first error encountered during iteration, if any.
// Once a *DuplicateKeysError has occurred, Err keeps returning it and
// Scan returns false forever afterward.
func (it *Iterator) Err() error { return it.err }

// Scan advances the iterator to the next record, returning false at
// end of stream or on error (including a duplicate-key error, which
// Err then reports).
func (it *Iterator) Scan() bool {
	if it.done || it.err != nil {
		return false
	}
	var hkey HashedKey
	var payload []byte
	var ok bool
	if it.buckets == nil {
		hkey, payload, ok = it.nextMem()
	} else {
		hkey, payload, ok = it.nextBucket()
	}
	if !ok {
		it.done = true
		return false
	}
	if it.prev != nil && it.prev.Equal(hkey) {
		it.err = &DuplicateKeysError{First: it.rec.Payload, Second: payload}
		it.done = true
		return false
	}
	it.rec = Record{HashedKey: hkey, Payload: payload}
	k := hkey
	it.prev = &k
	return true
}

func (it *Iterator) nextMem() (HashedKey, []byte, bool) {
	if it.memPos >= len(it.memEntries) {
		return HashedKey{}, nil, false
	}
	e := it.memEntries[it.memPos]
	it.memPos++
	return e.hkey, e.payload, true
}

// nextBucket advances through buckets in index order, reading and
// sorting one bucket's entire contents at a time (never the whole
// dataset at once), and deleting each bucket's file as soon as its
// stream is exhausted.
func (it *Iterator) nextBucket() (HashedKey, []byte, bool) {
	for {
		if it.bucketPos < len(it.bucketRecords) {
			r := it.bucketRecords[it.bucketPos]
			it.bucketPos++
			return r.hkey, r.payload, true
		}
		if it.bucketRecords != nil {
			// Current bucket exhausted; delete it before moving on, per
			// spec.md's deferred-deletion rule.
			if err := it.buckets[it.bucketIdx-1].delete(); err != nil {
				log.Error.Printf("shuffle: delete bucket %v: %v (continuing, caller owns directory cleanup)", it.buckets[it.bucketIdx-1].path, err)
			}
			it.bucketRecords = nil
		}
		if it.bucketIdx >= len(it.buckets) {
			return HashedKey{}, nil, false
		}
		b := it.buckets[it.bucketIdx]
		it.bucketIdx++
		records, err := b.readValues()
		if err != nil {
			it.err = err
			return HashedKey{}, nil, false
		}
		if !it.disableShuffling {
			sort.Slice(records, func(i, j int) bool { return records[i].hkey.Less(records[j].hkey) })
		}
		it.bucketRecords = records
		it.bucketPos = 0
	}
}

package shuffle

import (
	"encoding/binary"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/shuffle/fdlimit"
)

// bucket is an append-only on-disk shard of (hkey, payload) records.
// It is created lazily on the first add, written sequentially, and
// read back exactly once as an ordered stream of frames:
//
//	hkey (16 bytes) | size (8 bytes) | payload (size bytes)   (repeated)
//
// There is no file header, trailer, or record count prefix; EOF
// terminates the stream, and a partial trailing frame is a read
// error. A bucket with no records has no backing file at all.
//
// Grounded on encoding/bampair's diskMateShard, adapted from a
// snappy-framed, map-backed random-access structure to the spec's
// literal sequential frame format, since this repo's bucket files are
// read back exactly once, in order, and never looked up by key.
type bucket struct {
	path string
	f    *os.File
	len  int
	size int64
}

func newBucket(path string) *bucket {
	return &bucket{path: path}
}

// add appends (hkey, payload) to the bucket, opening (and creating
// the containing directory for) the backing file on the first call.
//
// If the write fails because the process has run out of file
// descriptors, add asks fdlimit to raise the soft limit and retries
// the write exactly once; any other error is returned unchanged.
func (b *bucket) add(hkey HashedKey, payload []byte) error {
	if b.f == nil {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return errors.E(err, "shuffle: create bucket dir for", b.path)
		}
		f, err := os.Create(b.path)
		if err != nil {
			if isTooManyOpenFiles(err) {
				fdlimit.Raise()
				f, err = os.Create(b.path)
			}
			if err != nil {
				return errors.E(err, "shuffle: create bucket", b.path)
			}
		}
		b.f = f
	}

	frame := make([]byte, HkeySizeBytes+8+len(payload))
	hkey.encode(frame[:HkeySizeBytes])
	putUint64Size(frame[HkeySizeBytes:HkeySizeBytes+8], uint64(len(payload)))
	copy(frame[HkeySizeBytes+8:], payload)

	if _, err := b.f.Write(frame); err != nil {
		if isTooManyOpenFiles(err) {
			fdlimit.Raise()
			if _, err = b.f.Write(frame); err != nil {
				return errors.E(err, "shuffle: write bucket", b.path)
			}
		} else {
			return errors.E(err, "shuffle: write bucket", b.path)
		}
	}
	b.len++
	b.size += int64(len(payload))
	return nil
}

// isTooManyOpenFiles reports whether err (or one wrapped inside it)
// indicates file-descriptor exhaustion, as opposed to any other I/O
// failure. Only this class of error is retried; everything else
// propagates unchanged, per spec.md's error taxonomy.
func isTooManyOpenFiles(err error) bool {
	return stderrors.Is(err, syscall.EMFILE) || stderrors.Is(err, syscall.ENFILE)
}

// close flushes and closes the write handle, if one was ever opened.
func (b *bucket) close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// record is a single (hkey, payload) pair read back from a bucket.
type record struct {
	hkey    HashedKey
	payload []byte
}

// readValues flushes and closes any open write handle, then returns
// every record stored in the bucket, in the order they were written.
// If the bucket's file was never created, it returns an empty slice,
// not an error.
func (b *bucket) readValues() ([]record, error) {
	if err := b.close(); err != nil {
		return nil, errors.E(err, "shuffle: close bucket writer", b.path)
	}
	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.E(err, "shuffle: open bucket for read", b.path)
	}
	defer f.Close()

	var records []record
	header := make([]byte, HkeySizeBytes+8)
	for {
		_, err := io.ReadFull(f, header)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "shuffle: truncated bucket frame in", b.path)
		}
		hkey := decodeHashedKey(header[:HkeySizeBytes])
		size := binary.BigEndian.Uint64(header[HkeySizeBytes:])
		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, errors.E(err, "shuffle: truncated bucket payload in", b.path)
		}
		records = append(records, record{hkey, payload})
	}
	return records, nil
}

// delete removes the bucket's backing file, if any. It is called
// immediately after a bucket's stream is exhausted during iteration,
// so that disk usage decreases monotonically and a later bucket's
// read-ahead never depends on an earlier bucket still existing.
func (b *bucket) delete() error {
	err := os.Remove(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

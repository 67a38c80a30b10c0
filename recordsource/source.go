// Package recordsource reads the small newline-delimited record
// format this repo's CLI feeds into a Shuffler: one "key<TAB>payload"
// line per record, payload base64-encoded so it may contain arbitrary
// bytes.
//
// This is deliberately not a real dataset format — spec.md scopes
// "dataset download/parsing logic" out of the core as an external
// collaborator, and this package respects that boundary by staying a
// minimal CLI convenience, not a dataset builder. It reads through
// github.com/grailbio/base/file, the same abstraction
// cmd/bio-bam-sort/main.go and markduplicates/mark_duplicates.go use,
// which transparently supports both local paths and s3:// URIs.
package recordsource

import (
	"bufio"
	"encoding/base64"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// Record is a single (key, payload) pair read from a source file.
type Record struct {
	Key     string
	Payload []byte
}

// Reader reads Records from a single source file, in order.
//
// Grounded on cmd/bio-bam-sort/main.go's openInput, which opens via
// file.Open and wraps the result in a format-specific reader.
type Reader struct {
	closer func() error
	scan   *bufio.Scanner
	record Record
	err    error
}

// Open opens path (local or s3://) for reading. If path ends in ".sz",
// the stream is transparently unwrapped with snappy, matching
// encoding/bampair/disk_mate_shard.go's use of snappy framing for
// scratch record files.
func Open(path string) (*Reader, error) {
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "recordsource: open", path)
	}
	var raw = f.Reader(ctx)
	if strings.HasSuffix(path, ".sz") {
		raw = snappy.NewReader(raw)
	}
	return &Reader{
		closer: func() error { return f.Close(ctx) },
		scan:   bufio.NewScanner(raw),
	}, nil
}

// Scan advances to the next record. It returns false at end of file
// or on a malformed line, in which case Err reports the cause.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	if !r.scan.Scan() {
		r.err = r.scan.Err()
		return false
	}
	line := r.scan.Text()
	if line == "" {
		return r.Scan()
	}
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		r.err = errors.E("recordsource: malformed line, missing tab:", line)
		return false
	}
	payload, err := base64.StdEncoding.DecodeString(line[tab+1:])
	if err != nil {
		r.err = errors.E(err, "recordsource: malformed base64 payload")
		return false
	}
	r.record = Record{Key: line[:tab], Payload: payload}
	return true
}

// Record returns the most recently scanned record.
//
// REQUIRES: the last call to Scan returned true.
func (r *Reader) Record() Record { return r.record }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

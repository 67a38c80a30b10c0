package main

// dataset-shuffle is the final staging stage of a dataset preparation
// pipeline: it reads (key, payload) records from an input file, feeds
// them through a stable external-memory shuffler, and writes the
// payloads back out in deterministic, key-ordered (but
// insertion-order-independent) sequence.
//
// Usage: dataset-shuffle -salt mysalt input.records output.records

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/shuffle"
	"github.com/grailbio/shuffle/hashing"
	"github.com/grailbio/shuffle/keysim"
	"github.com/grailbio/shuffle/manifest"
	"github.com/grailbio/shuffle/recordsource"
)

var (
	saltFlag             = flag.String("salt", "", "Salt used to hash record keys")
	disableShufflingFlag = flag.Bool("disable-shuffling", false, "Skip hashing and sorting: emit records in insertion order; keys must be base-10 non-negative integers")
	tempDirFlag          = flag.String("tempdir", "", "Directory for spilled bucket files; defaults to the output file's directory")
	manifestFlag         = flag.String("manifest", "", "Optional path to write a JSON run summary to")
	warnNearDupKeysFlag  = flag.Bool("warn-near-duplicate-keys", true, "Best-effort warn (not an error) about textually similar string keys during ingestion")
)

// decimalKeyBytes parses key as a base-10 non-negative integer and
// returns its minimal big-endian byte encoding — the raw
// representation shuffle.Shuffler.Add expects for a caller key when
// shuffling is disabled (computeHashedKey round-trips it through
// big.Int.SetBytes). A key that isn't a valid non-negative integer is
// the "non-integer hkey when shuffling is disabled" misuse case
// spec.md §7 calls for, so it is rejected here rather than silently
// reinterpreted as arbitrary bytes.
func decimalKeyBytes(key string) ([]byte, error) {
	n, ok := new(big.Int).SetString(key, 10)
	if !ok || n.Sign() < 0 {
		return nil, errors.New(fmt.Sprintf("dataset-shuffle: key %q is not a base-10 non-negative integer", key))
	}
	return n.Bytes(), nil
}

func run(inPath, outPath string) error {
	tempDir := *tempDirFlag
	if tempDir == "" {
		tempDir = filepath.Dir(outPath)
	}

	var hasher shuffle.Hasher
	if !*disableShufflingFlag {
		hasher = hashing.New([]byte(*saltFlag))
	}
	s, err := shuffle.New(tempDir, hasher, *disableShufflingFlag)
	if err != nil {
		return errors.E(err, "dataset-shuffle: construct shuffler")
	}

	in, err := recordsource.Open(inPath)
	if err != nil {
		return errors.E(err, "dataset-shuffle: open input")
	}
	defer in.Close()

	var advisor *keysim.Advisor
	if *warnNearDupKeysFlag {
		advisor = keysim.New(0, 0)
	}

	nRecords := 0
	for in.Scan() {
		rec := in.Record()
		if advisor != nil {
			advisor.Observe(rec.Key)
		}
		keyBytes := []byte(rec.Key)
		if *disableShufflingFlag {
			var err error
			keyBytes, err = decimalKeyBytes(rec.Key)
			if err != nil {
				return errors.E(err, fmt.Sprintf("dataset-shuffle: record %d", nRecords))
			}
		}
		if err := s.Add(keyBytes, rec.Payload); err != nil {
			return errors.E(err, fmt.Sprintf("dataset-shuffle: add record %d", nRecords))
		}
		nRecords++
	}
	if err := in.Err(); err != nil {
		return errors.E(err, "dataset-shuffle: read input")
	}
	log.Printf("dataset-shuffle: ingested %d records, %d bytes", nRecords, s.Size())

	ctx := vcontext.Background()
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, "dataset-shuffle: create output", outPath)
	}
	writer := out.Writer(ctx)

	bucketLengths := s.BucketLengths()
	it := s.Iterate()
	nOut := 0
	for it.Scan() {
		if _, err := writer.Write(it.Record().Payload); err != nil {
			out.Close(ctx)
			return errors.E(err, "dataset-shuffle: write output", outPath)
		}
		if _, err := writer.Write([]byte{'\n'}); err != nil {
			out.Close(ctx)
			return errors.E(err, "dataset-shuffle: write output", outPath)
		}
		nOut++
	}
	if err := out.Close(ctx); err != nil {
		return errors.E(err, "dataset-shuffle: close output", outPath)
	}
	if err := it.Err(); err != nil {
		if dup, ok := err.(*shuffle.DuplicateKeysError); ok {
			return errors.E(fmt.Sprintf(
				"dataset-shuffle: duplicate key after emitting %d records; colliding payload sizes %d and %d",
				nOut, len(dup.First), len(dup.Second)))
		}
		return errors.E(err, "dataset-shuffle: iterate")
	}
	log.Printf("dataset-shuffle: emitted %d records", nOut)

	if *manifestFlag != "" {
		m := manifest.Manifest{RecordCount: nOut, TotalBytes: s.Size(), BucketOccupancy: bucketLengths}
		if err := manifest.Write(*manifestFlag, m); err != nil {
			return errors.E(err, "dataset-shuffle: write manifest")
		}
	}
	return nil
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  dataset-shuffle [flags] <input> <output>

Reads newline-delimited "key<TAB>base64(payload)" records from <input>
(a local path or s3:// URI), shuffles them deterministically by
-salt, and writes the shuffled payloads, one per line, to <output>.
`)
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(args[0], args[1]); err != nil {
		log.Panicf("dataset-shuffle: %v", err)
	}
}

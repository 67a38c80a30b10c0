// Package manifest writes a small post-run JSON summary of a shuffle:
// record count, total byte size, and per-bucket occupancy. This is
// pure observability, not part of the core's correctness contract
// (spec.md's invariants are all enforced inside package shuffle
// itself, independent of whether a manifest is ever written).
package manifest

import (
	"encoding/json"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

// Manifest summarizes one completed Shuffler run.
type Manifest struct {
	RecordCount     int   `json:"record_count"`
	TotalBytes      int64 `json:"total_bytes"`
	BucketOccupancy []int `json:"bucket_occupancy"`
}

// Write marshals m as JSON to path, using
// github.com/grailbio/base/file so the manifest can land next to a
// local or s3:// output path. Marshaling uses stdlib encoding/json:
// no library in this repo's pack offers anything over stdlib JSON for
// a small, flat summary struct, so reaching for one would add a
// dependency with no payoff.
func Write(path string, m Manifest) error {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "manifest: create", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil {
			log.Error.Printf("manifest: close %s: %v", path, cerr)
		}
	}()

	enc := json.NewEncoder(out.Writer(ctx))
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return errors.E(err, "manifest: encode", path)
	}
	return nil
}

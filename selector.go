package shuffle

import "math/big"

// BucketsNumber is the number of bucket shards a Shuffler partitions
// spilled data into (spec.md's B).
const BucketsNumber = 1000

// bucketIndex maps hkey to a bucket index in [0, numBuckets), using
// floor(hkey * numBuckets / 2^128), clamped to numBuckets-1.
//
// This is deliberately not a modulo: the multiply-then-divide form is
// monotonic non-decreasing in hkey, so for any h1 < h2,
// bucketIndex(h1) <= bucketIndex(h2). That lets the Shuffler
// concatenate buckets in index order and only sort within each one to
// obtain a globally sorted stream, instead of running an external
// merge pass across all buckets.
//
// Grounded on encoding/bampair/distant_mate_table.go's getShardEntry,
// which computes the analogous (shardIdx*numMateShards)/inputShards,
// and on original_source's get_bucket_number.
func bucketIndex(hkey HashedKey, numBuckets int) int {
	product := new(big.Int).Mul(hkey.bigInt(), big.NewInt(int64(numBuckets)))
	idx := new(big.Int).Quo(product, hkeySpace)
	if idx.Cmp(big.NewInt(int64(numBuckets-1))) > 0 {
		return numBuckets - 1
	}
	return int(idx.Int64())
}

// hkeySpace is 2^128, the size of the HashedKey domain.
var hkeySpace = new(big.Int).Lsh(big.NewInt(1), 128)

// Package fdlimit raises the current process's open-file-descriptor
// soft limit, best effort.
//
// Raise is idempotent and never fails loudly: on platforms without a
// native rlimit mechanism it logs a warning and returns. Grounded on
// peak-s5cmd's parallel/fdlimit package, generalized to the
// soft-limit math spec.md describes (raise by BucketsNumber, clamped
// to the hard limit) and split across build-tagged files the way the
// teacher's own fdlimit_unix.go implies a non-unix counterpart should
// exist.
package fdlimit

// BucketsNumber is the number of additional file descriptors Raise
// asks for, mirroring shuffle.BucketsNumber: in the worst case a
// Shuffler holds one write handle open per bucket.
const BucketsNumber = 1000

// +build !windows

package fdlimit

import (
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// Raise queries the current soft and hard limits on open file
// descriptors and, if the soft limit is below the hard limit, raises
// it by BucketsNumber (clamped to the hard limit) and logs the
// change. If soft already equals hard, it logs an error and returns
// without raising. Raise never returns an error to the caller: a
// failure here should never abort a bucket write, which is the
// operation that triggered the call.
func Raise() {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		log.Error.Printf("fdlimit: getrlimit failed: %v", err)
		return
	}
	if limit.Cur >= limit.Max {
		log.Error.Printf("fdlimit: soft limit (%d) already equals hard limit", limit.Cur)
		return
	}
	newSoft := limit.Cur + BucketsNumber
	if newSoft > limit.Max {
		newSoft = limit.Max
	}
	oldSoft := limit.Cur
	limit.Cur = newSoft
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		log.Error.Printf("fdlimit: setrlimit failed: %v", err)
		return
	}
	log.Printf("fdlimit: raised soft limit for open file descriptors from %d to %d", oldSoft, newSoft)
}

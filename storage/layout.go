package storage

import (
	"fmt"
	"strings"

	"github.com/taigrr/colorhash"
)

// BucketCount is the number of top-level directories a LocalStore spreads
// upload prefixes across. Keeps directory sizes well under ext3 limits.
const BucketCount = 1000

// BucketForPrefix returns the bucket directory name for an upload prefix.
// The bucket is derived from a color hash of the prefix mod BucketCount.
func BucketForPrefix(prefix string) string {
	hInt := colorhash.HashString(prefix)
	if hInt < 0 {
		hInt = -hInt
	}
	return fmt.Sprintf("%03d", hInt%BucketCount)
}

// TopSegment returns the first path segment of key, which for uploads is the
// fingerprint-bearing prefix.
func TopSegment(key string) string {
	top, _, _ := strings.Cut(key, "/")
	return top
}

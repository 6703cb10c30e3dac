package numberutil

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const BucketDuration int64 = 1000 * 60 * 60 * 24 * 10 // 10 days

// BucketOf returns the time bucket of a snowflake id. A zero id maps to the
// current bucket.
func BucketOf(id int64) int64 {
	if id != 0 {
		return snowflake.ParseInt64(id).Time() / BucketDuration
	}

	return time.Now().UnixMilli() / BucketDuration
}

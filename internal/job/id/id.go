// Package id generates identifiers for extraction jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate returns a new identifier of the form <prefix>-<unix time>-<random hex>,
// for example job-1701432000-a1b2c3d4e5f6. The result is safe to use as a
// directory name and as an S3 key prefix.
func Generate(prefix string) string {
	ts := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("%s-%d-%d", prefix, ts, time.Now().UnixNano()%1e9)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, ts, hex.EncodeToString(random))
}

package api

import (
	"crypto/rand"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTimestampID returns a collision-resistant identifier combining the
// current time in base-36 millis with a short random suffix, e.g.
// "m1x2abcd-k3f9q0". Run submissions are tagged with one before the
// server assigns a durable ID.
func NewTimestampID() string {
	suffix := make([]byte, 6)
	rand.Read(suffix)
	for i, b := range suffix {
		suffix[i] = base36[int(b)%len(base36)]
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + string(suffix)
}

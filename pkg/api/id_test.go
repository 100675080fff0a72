package api

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTimestampIDFormat(t *testing.T) {
	id := NewTimestampID()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]+-[0-9a-z]{6}$`), id)
}

func TestNewTimestampIDDistinct(t *testing.T) {
	// Two calls in immediate succession share the millisecond timestamp;
	// the random suffix must still keep them apart.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTimestampID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

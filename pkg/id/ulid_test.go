package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.Generate()
	}

	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		assert.Len(t, v, 26)
		assert.True(t, Valid(v), v)
		_, dup := seen[v]
		assert.False(t, dup, "duplicate ID: %s", v)
		seen[v] = struct{}{}
	}

	assert.True(t, sort.StringsAreSorted(ids), "ULIDs must be monotonic")
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(New()))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("dengue", "Health"), HashKey("dengue", "Health"))
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
	assert.Len(t, HashKey("x"), 64)
}

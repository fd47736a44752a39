package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	unbounded := newTailBuffer(0)
	unbounded.Write([]byte("abc"))
	unbounded.Write([]byte("def"))
	assert.Equal(t, "abcdef", unbounded.String())

	bounded := newTailBuffer(4)
	n, err := bounded.Write([]byte("abcdef"))
	assert.NoError(t, err)
	assert.Equal(t, 6, n, "writes always report the full length")
	assert.Equal(t, "cdef", bounded.String())

	bounded.Write([]byte("gh"))
	assert.Equal(t, "efgh", bounded.String())
	assert.Equal(t, 4, bounded.Len())
}

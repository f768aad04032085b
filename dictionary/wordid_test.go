package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordID(t *testing.T) {
	id := NewWordID(3, 12345)
	assert.Equal(t, 3, id.DictionaryID())
	assert.Equal(t, 12345, id.LocalID())
	assert.Equal(t, "3:12345", id.String())

	last := NewWordID(MaxDictionaries-1, localIDMask-1)
	assert.Equal(t, MaxDictionaries-1, last.DictionaryID())
	assert.Equal(t, localIDMask-1, last.LocalID())
	assert.NotEqual(t, OOVWordID, NewWordID(0, 0))
	assert.Equal(t, "oov", OOVWordID.String())
}

package engine

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestVariantFromVersion(t *testing.T) {
	v, err := VariantFromVersion(0x11)
	assert.NoError(t, err)
	assert.Equal(t, Saturn, v)
	assert.Equal(t, uint32(0x80000), v.MemorySize())
	assert.Equal(t, "saturn", v.String())

	v, err = VariantFromVersion(0x12)
	assert.NoError(t, err)
	assert.Equal(t, Dreamcast, v)
	assert.Equal(t, uint32(0x800000), v.MemorySize())

	_, err = VariantFromVersion(0x01)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

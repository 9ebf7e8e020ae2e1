package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func segment(base uint32, payload ...byte) []byte {
	b := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(b, base)
	return append(b, payload...)
}

func TestMergeFirstSegmentVerbatim(t *testing.T) {
	img := New()
	seg := segment(0x1000, 1, 2, 3)
	assert.NoError(t, img.Merge(seg))
	assert.True(t, bytes.Equal(seg, img.Bytes()))
	assert.Equal(t, uint32(0x1000), img.Base())
}

func TestMergeTooShort(t *testing.T) {
	img := New()
	assert.Error(t, img.Merge([]byte{1, 2}))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		segments [][]byte
		base     uint32
		payload  []byte
	}{
		{
			name:     "extend tail",
			segments: [][]byte{segment(0x10, 1, 2), segment(0x14, 5, 6)},
			base:     0x10,
			payload:  []byte{1, 2, 0, 0, 5, 6},
		},
		{
			name:     "prepend with gap",
			segments: [][]byte{segment(0x10, 1, 2), segment(0x0C, 7)},
			base:     0x0C,
			payload:  []byte{7, 0, 0, 0, 1, 2},
		},
		{
			name:     "overlap last writer wins",
			segments: [][]byte{segment(0x10, 1, 2, 3, 4), segment(0x11, 9, 9)},
			base:     0x10,
			payload:  []byte{1, 9, 9, 4},
		},
		{
			name:     "overlap across both ends",
			segments: [][]byte{segment(0x10, 1, 2), segment(0x0F, 8, 8, 8, 8)},
			base:     0x0F,
			payload:  []byte{8, 8, 8, 8},
		},
		{
			name:     "base is masked",
			segments: [][]byte{segment(0x10, 1), segment(0xFF800011, 2)},
			base:     0x10,
			payload:  []byte{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := New()
			for _, seg := range tt.segments {
				assert.NoError(t, img.Merge(seg))
			}
			assert.Equal(t, tt.base, img.Base())
			assert.True(t, bytes.Equal(tt.payload, img.Payload()))
		})
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	segs := [][]byte{
		segment(0x100, 1, 2, 3, 4),
		segment(0x080, 5, 6),
		segment(0x200, 7, 8, 9),
	}
	orders := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	var reference []byte
	for _, order := range orders {
		img := New()
		for _, i := range order {
			assert.NoError(t, img.Merge(segs[i]))
		}
		if reference == nil {
			reference = img.Bytes()
			continue
		}
		assert.True(t, bytes.Equal(reference, img.Bytes()), fmt.Sprintf("order %v", order))
	}

	assert.Equal(t, HeaderSize+0x203-0x80, len(reference))
}

func TestClip(t *testing.T) {
	img := New()
	assert.NoError(t, img.Merge(segment(0x7FFFC, 1, 2, 3, 4, 5, 6, 7, 8)))

	data, err := img.Clip(0x80000)
	assert.NoError(t, err)
	assert.Equal(t, HeaderSize+4, len(data))

	data, err = img.Clip(0x800000)
	assert.NoError(t, err)
	assert.Equal(t, HeaderSize+8, len(data))

	_, err = img.Clip(0x1000)
	assert.Error(t, err)

	_, err = New().Clip(0x1000)
	assert.Error(t, err)
}

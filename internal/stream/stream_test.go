package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type countingSource struct {
	frames int
	next   int16
}

func (c *countingSource) Read(buf []int16, maxFrames int) int {
	if c.frames == 0 {
		return -1
	}
	n := min(maxFrames, c.frames, len(buf)/2)
	for i := range n * 2 {
		buf[i] = c.next
		c.next++
	}
	c.frames -= n
	return n
}

func TestReader(t *testing.T) {
	src := &countingSource{frames: 10, next: -2}
	r := NewReader(context.Background(), src, 3)

	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Len(t, data, 10*FrameSize)
	assert.Equal(t, int64(10), r.Frames())
	assert.Equal(t, int16(-2), int16(binary.LittleEndian.Uint16(data)))
	assert.Equal(t, int16(17), int16(binary.LittleEndian.Uint16(data[len(data)-2:])))

	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderSmallReads(t *testing.T) {
	src := &countingSource{frames: 2}
	r := NewReader(context.Background(), src, 2)

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = r.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = r.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReaderCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReader(ctx, &countingSource{frames: 2}, 2)
	_, err := r.Read(make([]byte, 8))
	assert.True(t, errors.Is(err, context.Canceled))
}

// Package stream adapts a player to an io.Reader of signed 16 bit little
// endian interleaved stereo PCM.
package stream

import (
	"context"
	"encoding/binary"
	"io"
	"sync/atomic"
)

// FrameSize is the number of bytes per stereo frame.
const FrameSize = 4

// Source produces decoded frames.
type Source interface {
	Read(buf []int16, maxFrames int) int
}

// Reader reads PCM bytes from a source.
type Reader struct {
	ctx     context.Context
	src     Source
	samples []int16
	pending []byte // converted bytes not returned yet
	buf     []byte
	eof     bool
	frames  atomic.Int64
}

// NewReader returns a reader decoding blocks of blockFrames frames.
func NewReader(ctx context.Context, src Source, blockFrames int) *Reader {
	return &Reader{
		ctx:     ctx,
		src:     src,
		samples: make([]int16, blockFrames*2),
		buf:     make([]byte, blockFrames*FrameSize),
	}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}

		n := r.src.Read(r.samples, len(r.samples)/2)
		if n < 0 {
			r.eof = true
			return 0, io.EOF
		}
		for i, s := range r.samples[:n*2] {
			binary.LittleEndian.PutUint16(r.buf[i*2:], uint16(s))
		}
		r.pending = r.buf[:n*FrameSize]
		r.frames.Add(int64(n))
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Frames returns the number of frames decoded so far. It is safe to call
// while another goroutine reads.
func (r *Reader) Frames() int64 {
	return r.frames.Load()
}

// Package silence detects silent passages in the decoded stream. The ring
// buffer delays the output by the configured trailing silence threshold so
// that a completely silent buffer can end the stream before the silence is
// handed to the consumer.
package silence

// Ring is a fixed capacity ring buffer of interleaved stereo samples that
// keeps track of how many of the buffered samples are zero.
// It is not safe for concurrent use.
type Ring struct {
	buf      []int16
	readPos  int
	writePos int
	count    int
	silent   int // number of zero samples currently buffered
}

// NewRing creates a ring buffer for the given number of int16 samples.
func NewRing(capacity int) *Ring {
	r := &Ring{}
	r.Resize(capacity)
	return r
}

// Resize reallocates the buffer and discards all content.
func (r *Ring) Resize(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	r.buf = make([]int16, capacity)
	r.Reset()
}

// Reset discards all buffered samples.
func (r *Ring) Reset() {
	r.readPos = 0
	r.writePos = 0
	r.count = 0
	r.silent = 0
}

// Cap returns the capacity in samples.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Available returns the number of buffered samples.
func (r *Ring) Available() int {
	return r.count
}

// Free returns the number of samples that can still be written.
func (r *Ring) Free() int {
	return len(r.buf) - r.count
}

// WriteSpace returns the contiguous free region starting at the write
// position. Samples placed there become visible after Commit.
func (r *Ring) WriteSpace() []int16 {
	n := len(r.buf) - r.writePos
	if free := r.Free(); n > free {
		n = free
	}
	return r.buf[r.writePos : r.writePos+n]
}

// Commit marks n samples of the region returned by WriteSpace as written.
// It returns false if n exceeds the region.
func (r *Ring) Commit(n int) bool {
	if n < 0 || n > len(r.WriteSpace()) {
		return false
	}
	if n == 0 {
		return true
	}
	r.silent += countSilent(r.buf[r.writePos : r.writePos+n])
	r.count += n
	r.writePos = (r.writePos + n) % len(r.buf)
	return true
}

// Write copies as many samples of src as fit into the buffer and returns
// the number of samples written.
func (r *Ring) Write(src []int16) int {
	done := 0
	for done < len(src) {
		space := r.WriteSpace()
		if len(space) == 0 {
			break
		}
		n := copy(space, src[done:])
		r.Commit(n)
		done += n
	}
	return done
}

// Read moves up to len(dst) samples into dst and returns the number of
// samples read.
func (r *Ring) Read(dst []int16) int {
	done := 0
	for done < len(dst) && r.count > 0 {
		n := len(r.buf) - r.readPos
		if n > r.count {
			n = r.count
		}
		if n > len(dst)-done {
			n = len(dst) - done
		}
		chunk := r.buf[r.readPos : r.readPos+n]
		r.silent -= countSilent(chunk)
		copy(dst[done:], chunk)
		done += n
		r.count -= n
		r.readPos = (r.readPos + n) % len(r.buf)
	}
	return done
}

// IsSilent returns true if the buffer is completely filled and every
// buffered sample is zero.
func (r *Ring) IsSilent() bool {
	return len(r.buf) > 0 && r.silent == len(r.buf)
}

func countSilent(samples []int16) int {
	n := 0
	for _, s := range samples {
		if s == 0 {
			n++
		}
	}
	return n
}

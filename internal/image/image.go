// Package image assembles the program image that gets uploaded into the
// sound engine from the chain of program segments of a track.
package image

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the little endian base offset that prefixes
	// every segment and the assembled image.
	HeaderSize = 4

	// AddressMask limits base offsets to the 8 MiB engine address window.
	AddressMask = 0x7FFFFF

	// MaxPayload is the largest payload accepted from a single segment.
	MaxPayload = 0x800000
)

var (
	// ErrSegmentTooShort is returned for segments without a complete header.
	ErrSegmentTooShort = errors.New("program segment shorter than header")
	// ErrEmpty is returned when an image without any segment is requested.
	ErrEmpty = errors.New("program image is empty")
	// ErrBaseOutOfRange is returned when the image base lies outside the engine memory.
	ErrBaseOutOfRange = errors.New("program image base outside of engine memory")
)

// Image is a growable program image. The first 4 bytes hold the base offset
// into the engine address space, followed by the payload that is loaded at
// that offset.
type Image struct {
	data []byte
}

// New returns an empty image.
func New() *Image {
	return &Image{}
}

// Bytes returns the raw image including the header.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the image size including the header.
func (img *Image) Len() int {
	return len(img.data)
}

// Base returns the masked base offset of the image.
func (img *Image) Base() uint32 {
	if len(img.data) < HeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(img.data) & AddressMask
}

// Payload returns the bytes following the header.
func (img *Image) Payload() []byte {
	if len(img.data) < HeaderSize {
		return nil
	}
	return img.data[HeaderSize:]
}

// Merge adds a segment to the image. The first segment is copied verbatim,
// every following segment is placed at its own base offset. The image grows
// to cover the union of all segment address ranges, gaps are zero filled and
// bytes of later segments replace earlier ones where the ranges overlap.
func (img *Image) Merge(segment []byte) error {
	if len(segment) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrSegmentTooShort, len(segment))
	}

	if len(img.data) < HeaderSize {
		img.data = append(img.data[:0], segment...)
		return nil
	}

	dstStart := img.Base()
	srcStart := binary.LittleEndian.Uint32(segment) & AddressMask
	dstLen := clampPayload(uint32(len(img.data) - HeaderSize))
	srcLen := clampPayload(uint32(len(segment) - HeaderSize))
	img.data = img.data[:HeaderSize+dstLen]

	if srcStart < dstStart {
		diff := dstStart - srcStart
		grown := make([]byte, HeaderSize+diff+dstLen)
		copy(grown[HeaderSize+diff:], img.data[HeaderSize:])
		img.data = grown
		dstLen += diff
		dstStart = srcStart
		binary.LittleEndian.PutUint32(img.data, dstStart)
	}

	if srcStart+srcLen > dstStart+dstLen {
		diff := (srcStart + srcLen) - (dstStart + dstLen)
		img.data = append(img.data, make([]byte, diff)...)
		dstLen += diff
	}

	offset := HeaderSize + (srcStart - dstStart)
	copy(img.data[offset:offset+srcLen], segment[HeaderSize:HeaderSize+srcLen])
	return nil
}

// Clip returns the image bytes to upload into an engine whose memory ends at
// limit. The payload is truncated so that it does not extend past the limit.
func (img *Image) Clip(limit uint32) ([]byte, error) {
	if len(img.data) < HeaderSize {
		return nil, ErrEmpty
	}

	start := img.Base()
	if start >= limit {
		return nil, fmt.Errorf("%w: base 0x%06X, limit 0x%06X", ErrBaseOutOfRange, start, limit)
	}

	length := uint32(len(img.data))
	if start+(length-HeaderSize) > limit {
		length = limit - start + HeaderSize
	}
	return img.data[:length], nil
}

func clampPayload(n uint32) uint32 {
	if n > MaxPayload {
		return MaxPayload
	}
	return n
}

package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Build encodes a PSF container with a zlib compressed program and an
// optional tag block.
func Build(version byte, program []byte, tags []Tag) ([]byte, error) {
	var compressed bytes.Buffer
	if len(program) > 0 {
		w, err := zlib.NewWriterLevel(&compressed, zlib.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("creating zlib writer: %w", err)
		}
		if _, err := w.Write(program); err != nil {
			return nil, fmt.Errorf("compressing program: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compressing program: %w", err)
		}
	}

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	copy(header, signature)
	header[3] = version
	binary.LittleEndian.PutUint32(header[8:], uint32(compressed.Len()))
	binary.LittleEndian.PutUint32(header[12:], crc32.ChecksumIEEE(compressed.Bytes()))
	buf.Write(header)
	buf.Write(compressed.Bytes())

	if len(tags) > 0 {
		buf.WriteString(tagMarker)
		for _, tag := range tags {
			for line := range strings.SplitSeq(tag.Value, "\n") {
				fmt.Fprintf(&buf, "%s=%s\n", tag.Key, line)
			}
		}
	}
	return buf.Bytes(), nil
}

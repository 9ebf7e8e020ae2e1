package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// segment returns a program segment loading payload at base.
func segment(base uint32, payload ...byte) []byte {
	b := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(b, base)
	return append(b, payload...)
}

func writePSF(t *testing.T, mem afero.Fs, name string, version byte, program []byte, tags ...Tag) {
	t.Helper()
	data, err := Build(version, program, tags)
	assert.NoError(t, err)
	assert.NoError(t, afero.WriteFile(mem, name, data, 0o644))
}

func newTestLoader(t *testing.T, mem afero.Fs) *Loader {
	t.Helper()
	fsys, err := hostfs.New(log.NewTestLogger(t), mem, 8)
	assert.NoError(t, err)
	return New(log.NewTestLogger(t), fsys)
}

//nolint:funlen // test functions can be long
func TestParse(t *testing.T) {
	mem := afero.NewMemMapFs()
	writePSF(t, mem, "/music/track.minissf", 0x11, segment(0x1000, 1, 2, 3),
		Tag{Key: "title", Value: "Opening"},
		Tag{Key: "comment", Value: "line one\nline two"},
		Tag{Key: "  length ", Value: " 1:02.5\r"},
	)
	l := newTestLoader(t, mem)

	t.Run("version", func(t *testing.T) {
		version, err := l.Version("/music/track.minissf", 0)
		assert.NoError(t, err)
		assert.Equal(t, 0x11, version)

		_, err = l.Version("/music/track.minissf", 0x12)
		assert.True(t, errors.Is(err, ErrVersionMismatch))
	})

	t.Run("tags in file order", func(t *testing.T) {
		var tags []Tag
		err := l.Tags("/music/track.minissf", func(key, value string) error {
			tags = append(tags, Tag{Key: key, Value: value})
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, []Tag{
			{Key: "title", Value: "Opening"},
			{Key: "comment", Value: "line one\nline two"},
			{Key: "length", Value: "1:02.5"},
		}, tags)
	})

	t.Run("tag callback error", func(t *testing.T) {
		errStop := errors.New("stop")
		err := l.Tags("/music/track.minissf", func(string, string) error {
			return errStop
		})
		assert.True(t, errors.Is(err, errStop))
	})

	t.Run("program", func(t *testing.T) {
		var sections [][]byte
		err := l.Sections("/music/track.minissf", 0x11, func(data []byte) error {
			sections = append(sections, data)
			return nil
		})
		assert.NoError(t, err)
		assert.Len(t, sections, 1)
		assert.Equal(t, segment(0x1000, 1, 2, 3), sections[0])
	})

	t.Run("invalid signature", func(t *testing.T) {
		assert.NoError(t, afero.WriteFile(mem, "/music/bad.minissf", []byte("RIFF0000000000000000"), 0o644))
		_, err := l.Version("/music/bad.minissf", 0)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Version("/music/none.minissf", 0)
		assert.Error(t, err)
	})
}

func TestParseCorrupt(t *testing.T) {
	data, err := Build(0x11, segment(0, 1, 2, 3, 4), nil)
	assert.NoError(t, err)

	corrupt := append([]byte{}, data...)
	corrupt[headerSize] ^= 0xFF
	_, err = Parse(bytesReader(corrupt))
	assert.True(t, errors.Is(err, ErrChecksum))

	_, err = Parse(bytesReader(data[:len(data)-1]))
	assert.True(t, errors.Is(err, ErrTruncated))

	file, err := Parse(bytesReader(data))
	assert.NoError(t, err)
	assert.Equal(t, byte(0x11), file.Version)
	assert.Empty(t, file.Tags)
}

func TestSectionsLibraryOrder(t *testing.T) {
	mem := afero.NewMemMapFs()
	writePSF(t, mem, "/set/base.ssflib", 0x11, segment(0, 0xA0), Tag{Key: "_lib", Value: "core.ssflib"})
	writePSF(t, mem, "/set/core.ssflib", 0x11, segment(0, 0xC0))
	writePSF(t, mem, "/set/extra.ssflib", 0x11, segment(0, 0xB2))
	writePSF(t, mem, "/set/more.ssflib", 0x11, segment(0, 0xB3))
	writePSF(t, mem, "/set/song.minissf", 0x11, segment(0, 0x01),
		Tag{Key: "_lib", Value: "BASE.SSFLIB"},
		Tag{Key: "_lib2", Value: "extra.ssflib"},
		Tag{Key: "_lib3", Value: "more.ssflib"},
		Tag{Key: "_lib5", Value: "ignored.ssflib"},
	)
	l := newTestLoader(t, mem)

	var order []byte
	err := l.Sections("/set/song.minissf", 0x11, func(data []byte) error {
		order = append(order, data[4])
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0xA0, 0x01, 0xB2, 0xB3}, order)
}

func TestSectionsErrors(t *testing.T) {
	mem := afero.NewMemMapFs()
	writePSF(t, mem, "/set/dc.dsflib", 0x12, segment(0, 1))
	writePSF(t, mem, "/set/song.minissf", 0x11, segment(0, 1), Tag{Key: "_lib", Value: "dc.dsflib"})
	writePSF(t, mem, "/set/loop.minissf", 0x11, segment(0, 1), Tag{Key: "_lib", Value: "loop.minissf"})
	l := newTestLoader(t, mem)

	noop := func([]byte) error { return nil }

	err := l.Sections("/set/song.minissf", 0x11, noop)
	assert.True(t, errors.Is(err, ErrVersionMismatch))

	err = l.Sections("/set/loop.minissf", 0x11, noop)
	assert.True(t, errors.Is(err, ErrRecursion))
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/a/b/lib.ssflib", ResolvePath("/a/b/song.minissf", "lib.ssflib"))
	assert.Equal(t, "C:\\music\\lib.ssflib", ResolvePath("C:\\music\\song.minissf", "lib.ssflib"))
	assert.Equal(t, "lib.ssflib", ResolvePath("song.minissf", "lib.ssflib"))
}

func bytesReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}

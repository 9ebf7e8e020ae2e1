// Package loader handles PSF container loading: header, compressed program,
// tag block and the library chain.
package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/retrogolib/log"
)

const (
	signature   = "PSF"
	headerSize  = 16
	tagMarker   = "[TAG]"
	maxTagSize  = 50000
	maxDepth    = 10
	maxProgram  = 64 << 20
	maxReserved = 16 << 20
)

var (
	// ErrInvalidSignature is returned for files that are not PSF containers.
	ErrInvalidSignature = errors.New("invalid PSF signature")
	// ErrVersionMismatch is returned when a file has an unexpected version.
	ErrVersionMismatch = errors.New("PSF version mismatch")
	// ErrChecksum is returned when the program CRC does not match.
	ErrChecksum = errors.New("program checksum mismatch")
	// ErrTruncated is returned when the file is shorter than its header claims.
	ErrTruncated = errors.New("truncated PSF file")
	// ErrRecursion is returned when the library chain is nested too deep.
	ErrRecursion = errors.New("library chain too deep")
)

// Tag is a key value pair of the tag block.
type Tag struct {
	Key   string
	Value string
}

// File is a parsed PSF container.
type File struct {
	Version  byte
	Reserved []byte
	CRC      uint32
	Tags     []Tag

	compressed []byte
}

// Program decompresses the program of the file.
func (f *File) Program() ([]byte, error) {
	if len(f.compressed) == 0 {
		return nil, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(f.compressed))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(io.LimitReader(r, maxProgram+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing program: %w", err)
	}
	if len(data) > maxProgram {
		return nil, fmt.Errorf("decompressed program exceeds %d bytes", maxProgram)
	}
	return data, nil
}

// Tag returns the value of the first tag matching key case insensitively.
func (f *File) Tag(key string) (string, bool) {
	for _, tag := range f.Tags {
		if strings.EqualFold(tag.Key, key) {
			return tag.Value, true
		}
	}
	return "", false
}

// Loader reads PSF containers through a host file provider.
type Loader struct {
	logger   *log.Logger
	provider hostfs.Provider
}

// New creates a new PSF loader.
func New(logger *log.Logger, provider hostfs.Provider) *Loader {
	return &Loader{
		logger:   logger,
		provider: provider,
	}
}

// Load reads and parses the named file.
func (l *Loader) Load(name string) (*File, error) {
	f, err := l.provider.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file '%s': %w", name, err)
	}
	defer func() { _ = f.Close() }()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing file '%s': %w", name, err)
	}
	return file, nil
}

// Version returns the version of the named file. A non zero hint requires
// the file to have that version.
func (l *Loader) Version(name string, hint int) (int, error) {
	file, err := l.Load(name)
	if err != nil {
		return 0, err
	}
	if hint != 0 && int(file.Version) != hint {
		return 0, fmt.Errorf("%w: file has 0x%02X, expected 0x%02X", ErrVersionMismatch, file.Version, hint)
	}
	return int(file.Version), nil
}

// Tags calls fn for every tag of the named file in file order. Tags of
// libraries are not reported.
func (l *Loader) Tags(name string, fn func(key, value string) error) error {
	file, err := l.Load(name)
	if err != nil {
		return err
	}
	for _, tag := range file.Tags {
		if err := fn(tag.Key, tag.Value); err != nil {
			return err
		}
	}
	return nil
}

// Sections calls fn for every decompressed program of the library chain in
// load order: the _lib file first, then the program of the file itself,
// then _lib2, _lib3 and so on until the first missing index.
func (l *Loader) Sections(name string, version int, fn func(data []byte) error) error {
	return l.sections(name, version, fn, 0)
}

func (l *Loader) sections(name string, version int, fn func(data []byte) error, depth int) error {
	if depth >= maxDepth {
		return fmt.Errorf("%w: '%s'", ErrRecursion, name)
	}

	file, err := l.Load(name)
	if err != nil {
		return err
	}
	if int(file.Version) != version {
		return fmt.Errorf("%w: '%s' has 0x%02X, expected 0x%02X", ErrVersionMismatch, name, file.Version, version)
	}

	if lib, ok := file.Tag("_lib"); ok && lib != "" {
		if err := l.sections(ResolvePath(name, lib), version, fn, depth+1); err != nil {
			return err
		}
	}

	program, err := file.Program()
	if err != nil {
		return fmt.Errorf("loading program of '%s': %w", name, err)
	}
	if len(program) > 0 {
		l.logger.Debug("Loaded program section", log.String("file", name), log.Int("size", len(program)))
		if err := fn(program); err != nil {
			return err
		}
	}

	for i := 2; ; i++ {
		lib, ok := file.Tag(fmt.Sprintf("_lib%d", i))
		if !ok || lib == "" {
			return nil
		}
		if err := l.sections(ResolvePath(name, lib), version, fn, depth+1); err != nil {
			return err
		}
	}
}

// ResolvePath returns name relative to the directory of the referencing
// file. Both slash and backslash separate directories.
func ResolvePath(referrer, name string) string {
	idx := strings.LastIndexAny(referrer, "/\\")
	if idx < 0 {
		return name
	}
	return referrer[:idx+1] + name
}

// Parse reads a PSF container.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if len(data) < headerSize || string(data[:3]) != signature {
		return nil, ErrInvalidSignature
	}

	file := &File{
		Version: data[3],
		CRC:     binary.LittleEndian.Uint32(data[12:]),
	}
	reservedSize := binary.LittleEndian.Uint32(data[4:])
	programSize := binary.LittleEndian.Uint32(data[8:])
	if reservedSize > maxReserved || programSize > maxProgram {
		return nil, fmt.Errorf("%w: reserved %d, program %d bytes", ErrTruncated, reservedSize, programSize)
	}

	offset := uint64(headerSize)
	end := offset + uint64(reservedSize) + uint64(programSize)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, end, len(data))
	}

	file.Reserved = data[offset : offset+uint64(reservedSize)]
	offset += uint64(reservedSize)
	file.compressed = data[offset:end]

	if programSize > 0 && crc32.ChecksumIEEE(file.compressed) != file.CRC {
		return nil, ErrChecksum
	}

	rest := data[end:]
	if bytes.HasPrefix(rest, []byte(tagMarker)) {
		text := rest[len(tagMarker):]
		if len(text) > maxTagSize {
			text = text[:maxTagSize]
		}
		file.Tags = parseTags(string(text))
	}
	return file, nil
}

// parseTags splits the tag block into key value lines. Keys and values are
// trimmed of whitespace and control characters, values of repeated keys are
// joined with a newline.
func parseTags(text string) []Tag {
	var tags []Tag
	index := map[string]int{}

	for line := range strings.SplitSeq(text, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = trimControl(key)
		value = trimControl(value)
		if key == "" {
			continue
		}

		lower := strings.ToLower(key)
		if i, ok := index[lower]; ok {
			tags[i].Value += "\n" + value
			continue
		}
		index[lower] = len(tags)
		tags = append(tags, Tag{Key: key, Value: value})
	}
	return tags
}

func trimControl(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r <= 0x20
	})
}

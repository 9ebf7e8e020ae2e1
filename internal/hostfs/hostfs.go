// Package hostfs provides the host file access used by the loader and the
// dependency check. Files are served from an afero file system with case
// insensitive name matching and an LRU content cache.
package hostfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// DefaultCacheEntries is the number of file contents kept in memory.
const DefaultCacheEntries = 32

// ErrNotReady signals that a file is known but has not been fetched yet.
var ErrNotReady = errors.New("file not ready")

// File is an open host file.
type File interface {
	io.ReadSeekCloser

	// Tell returns the current read position.
	Tell() (int64, error)
	// Length returns the total size of the file.
	Length() (int64, error)
}

// Provider opens files by name.
type Provider interface {
	Open(name string) (File, error)
}

// Requester checks that a file is available. It returns ErrNotReady when the
// file is being fetched and an error wrapping fs.ErrNotExist when the file
// does not exist.
type Requester interface {
	RequestFile(name string) error
}

var (
	_ Provider  = (*FS)(nil)
	_ Requester = (*FS)(nil)
)

// FS serves files from an afero file system.
type FS struct {
	logger *log.Logger
	fs     afero.Fs
	cache  *lru.Cache[string, []byte]
}

// New returns a file system wrapper around fsys caching the content of up to
// cacheEntries files.
func New(logger *log.Logger, fsys afero.Fs, cacheEntries int) (*FS, error) {
	if cacheEntries <= 0 {
		cacheEntries = DefaultCacheEntries
	}
	cache, err := lru.New[string, []byte](cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating file cache: %w", err)
	}

	return &FS{
		logger: logger,
		fs:     fsys,
		cache:  cache,
	}, nil
}

// NewOS returns a file system wrapper for the operating system file system.
func NewOS(logger *log.Logger) (*FS, error) {
	return New(logger, afero.NewOsFs(), DefaultCacheEntries)
}

// Open returns a reader for the whole content of the named file.
func (f *FS) Open(name string) (File, error) {
	data, err := f.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &memFile{Reader: bytes.NewReader(data)}, nil
}

// ReadFile returns the content of the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	resolved, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}

	if data, ok := f.cache.Get(resolved); ok {
		return data, nil
	}

	data, err := afero.ReadFile(f.fs, resolved)
	if err != nil {
		return nil, fmt.Errorf("reading file '%s': %w", resolved, err)
	}
	f.cache.Add(resolved, data)
	f.logger.Debug("Loaded file", log.String("name", resolved), log.Int("size", len(data)))
	return data, nil
}

// RequestFile checks that the named file exists.
func (f *FS) RequestFile(name string) error {
	_, err := f.Resolve(name)
	return err
}

// Resolve returns the actual name of the file matching name. The exact name
// is preferred, otherwise every path element is matched case insensitively.
func (f *FS) Resolve(name string) (string, error) {
	return f.lookup(normalize(name), false)
}

func (f *FS) lookup(name string, wantDir bool) (string, error) {
	if info, err := f.fs.Stat(name); err == nil && info.IsDir() == wantDir {
		return name, nil
	}

	parent, base := splitPath(name)
	if parent != "" && parent != "/" {
		resolved, err := f.lookup(parent, true)
		if err != nil {
			return "", err
		}
		parent = resolved
	}

	listDir := parent
	if listDir == "" {
		listDir = "."
	}
	entries, err := afero.ReadDir(f.fs, listDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	for _, entry := range entries {
		if entry.IsDir() == wantDir && strings.EqualFold(entry.Name(), base) {
			return path.Join(parent, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", fs.ErrNotExist, name)
}

// splitPath splits a cleaned path into its directory and base name, the
// directory keeps a lone root slash.
func splitPath(p string) (string, string) {
	dir, base := path.Split(p)
	if len(dir) > 1 {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, base
}

// normalize converts Windows separators used in tags to slashes.
func normalize(name string) string {
	return path.Clean(strings.ReplaceAll(name, "\\", "/"))
}

type memFile struct {
	*bytes.Reader
}

func (m *memFile) Close() error {
	return nil
}

func (m *memFile) Tell() (int64, error) {
	return m.Seek(0, io.SeekCurrent)
}

func (m *memFile) Length() (int64, error) {
	return m.Size(), nil
}

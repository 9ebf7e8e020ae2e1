package hostfs

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

var (
	_ Provider  = (*Deferred)(nil)
	_ Requester = (*Deferred)(nil)
)

type fetchState int

const (
	fetchPending fetchState = iota + 1
	fetchFailed
)

// Deferred models a host that fetches missing files on demand. The first
// request of a missing file marks it as pending and returns ErrNotReady, the
// fetcher then delivers it with Complete or gives up with Fail.
type Deferred struct {
	logger *log.Logger
	fs     *FS

	mu      sync.Mutex
	fetches map[string]fetchState
}

// NewDeferred returns a deferred requester serving files from fsys.
func NewDeferred(logger *log.Logger, fsys *FS) *Deferred {
	return &Deferred{
		logger:  logger,
		fs:      fsys,
		fetches: map[string]fetchState{},
	}
}

// Open opens a file that is already available.
func (d *Deferred) Open(name string) (File, error) {
	return d.fs.Open(name)
}

// RequestFile returns nil for available files and ErrNotReady for files
// that are being fetched.
func (d *Deferred) RequestFile(name string) error {
	err := d.fs.RequestFile(name)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	key := fetchKey(name)
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fetches[key] == fetchFailed {
		return err
	}
	if _, ok := d.fetches[key]; !ok {
		d.logger.Debug("Requested file fetch", log.String("name", name))
	}
	d.fetches[key] = fetchPending
	return fmt.Errorf("%w: %s", ErrNotReady, name)
}

// Pending returns the names of all files waiting to be fetched.
func (d *Deferred) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var names []string
	for name, state := range d.fetches {
		if state == fetchPending {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Complete stores the fetched content of a pending file.
func (d *Deferred) Complete(name string, data []byte) error {
	name = normalize(name)
	if dir, _ := splitPath(name); dir != "" {
		if err := d.fs.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory '%s': %w", dir, err)
		}
	}
	if err := afero.WriteFile(d.fs.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("writing file '%s': %w", name, err)
	}

	d.fs.cache.Remove(name)

	d.mu.Lock()
	delete(d.fetches, fetchKey(name))
	d.mu.Unlock()
	return nil
}

// Fail marks a pending file as not existing.
func (d *Deferred) Fail(name string) {
	d.mu.Lock()
	d.fetches[fetchKey(name)] = fetchFailed
	d.mu.Unlock()
}

// FetchFrom serves all pending files from src. Files that src does not have
// are marked as failed. It returns the number of completed fetches.
func (d *Deferred) FetchFrom(src *FS) (int, error) {
	completed := 0
	for _, name := range d.Pending() {
		data, err := src.ReadFile(name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return completed, fmt.Errorf("fetching '%s': %w", name, err)
			}
			d.logger.Debug("File not found at source", log.String("name", name))
			d.Fail(name)
			continue
		}

		if err := d.Complete(name, data); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

func fetchKey(name string) string {
	return strings.ToLower(path.Clean(normalize(name)))
}

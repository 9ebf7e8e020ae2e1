// Package deps checks that the library files referenced by a track are
// available before any emulation state is allocated.
package deps

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/segaxsf/internal/loader"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

var (
	// ErrNotReady signals that at least one library is still being fetched.
	ErrNotReady = errors.New("dependencies not ready")
	// ErrMissing is returned when a library does not exist.
	ErrMissing = errors.New("missing dependency")
)

// Loader requests library files from the host.
type Loader struct {
	logger    *log.Logger
	requester hostfs.Requester
}

// New returns a dependency loader using requester.
func New(logger *log.Logger, requester hostfs.Requester) *Loader {
	return &Loader{
		logger:    logger,
		requester: requester,
	}
}

// Resolve returns the paths of the libraries relative to the directory of
// the main file.
func Resolve(mainPath string, libs []string) []string {
	paths := make([]string, 0, len(libs))
	for _, lib := range libs {
		paths = append(paths, loader.ResolvePath(mainPath, lib))
	}
	return paths
}

// Check requests every library of the main file. It returns ErrNotReady if
// any library is still being fetched, all libraries are requested in any
// case so that the host can fetch them in parallel.
func (l *Loader) Check(mainPath string, libs []string) error {
	requested := set.New[string]()
	notReady := 0

	for _, path := range Resolve(mainPath, libs) {
		key := strings.ToLower(path)
		if requested.Contains(key) {
			continue
		}
		requested.Add(key)

		err := l.requester.RequestFile(path)
		switch {
		case err == nil:
		case errors.Is(err, hostfs.ErrNotReady):
			l.logger.Debug("Dependency not ready", log.String("file", path))
			notReady++
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %s", ErrMissing, path)
		default:
			return fmt.Errorf("requesting dependency '%s': %w", path, err)
		}
	}

	if notReady > 0 {
		return fmt.Errorf("%w: %d pending", ErrNotReady, notReady)
	}
	return nil
}

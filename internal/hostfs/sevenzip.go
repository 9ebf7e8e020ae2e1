package hostfs

import (
	"fmt"
	"io"
	"path"

	"github.com/bodgit/sevenzip"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// MountSevenZip extracts all files of a 7z archive into a memory file
// system. It returns the file system and the absolute names of the
// extracted files in archive order.
func MountSevenZip(logger *log.Logger, src afero.Fs, archive string) (afero.Fs, []string, error) {
	f, err := src.Open(archive)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive '%s': %w", archive, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("getting archive size: %w", err)
	}

	r, err := sevenzip.NewReader(f, info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive '%s': %w", archive, err)
	}

	dst := afero.NewMemMapFs()
	var names []string
	for _, file := range r.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := normalize("/" + file.Name)
		if err := extract(dst, file, name); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
	}

	logger.Debug("Mounted archive", log.String("archive", archive), log.Int("files", len(names)))
	return dst, names, nil
}

func extract(dst afero.Fs, file *sevenzip.File, name string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry '%s': %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("extracting archive entry '%s': %w", name, err)
	}

	if dir := path.Dir(name); dir != "/" {
		if err := dst.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory '%s': %w", dir, err)
		}
	}
	if err := afero.WriteFile(dst, name, data, 0o644); err != nil {
		return fmt.Errorf("writing entry '%s': %w", name, err)
	}
	return nil
}

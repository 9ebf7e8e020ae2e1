// Package detector handles container format detection.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/retrogolib/log"
)

// Kind of an input file.
type Kind int

const (
	// Unknown is any file without a known extension, the container
	// header decides.
	Unknown Kind = iota
	// Track is a playable SSF/DSF or mini file.
	Track
	// Library is a library container referenced by mini files.
	Library
	// Archive is a 7z set of tracks.
	Archive
)

// Detection is the result of detecting a file by its name.
type Detection struct {
	Kind    Kind
	Version byte // version hint, 0 if unknown
}

// Detector handles format detection from file extensions.
type Detector struct {
	logger *log.Logger
}

// New creates a new format detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the container kind and version hint from the file name.
func (d *Detector) Detect(filename string) Detection {
	det := detectFromFile(filename)
	d.logger.Debug("Auto-detected format",
		log.Int("kind", int(det.Kind)),
		log.Hex("version", det.Version),
		log.String("file", filename))
	return det
}

// IsPlayable returns whether the file name is a track that can be played.
func IsPlayable(filename string) bool {
	det := detectFromFile(filename)
	return det.Kind == Track
}

// detectFromFile determines the format based on file extension.
func detectFromFile(filename string) Detection {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ssf", ".minissf":
		return Detection{Kind: Track, Version: engine.VersionSaturn}
	case ".dsf", ".minidsf":
		return Detection{Kind: Track, Version: engine.VersionDreamcast}
	case ".ssflib":
		return Detection{Kind: Library, Version: engine.VersionSaturn}
	case ".dsflib":
		return Detection{Kind: Library, Version: engine.VersionDreamcast}
	case ".7z":
		return Detection{Kind: Archive}
	default:
		return Detection{}
	}
}

// Package config handles application configuration and setup
package config

import (
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/retrogolib/log"
)

// Playback defaults for tracks without length tag.
const (
	DefaultLengthMs          = 170000
	DefaultFadeMs            = 10000
	DefaultEndSilenceSeconds = 5
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// DefaultPlayback returns the default decode session options. Opening
// silence is only skipped when requested explicitly.
func DefaultPlayback() options.Playback {
	return options.Playback{
		DefaultLengthMs:    DefaultLengthMs,
		DefaultFadeMs:      DefaultFadeMs,
		SkipOpeningSilence: false,
		SuppressEndSilence: true,
		EndSilenceSeconds:  DefaultEndSilenceSeconds,
		Charset:            tags.CharsetWindows1252,
		Dry:                true,
		DSP:                true,
		DSPDynarec:         false,
	}
}

// Package sega contains the built-in sound engine for the Sega sound formats.
//
// The Saturn variant executes the program image on a 68000 core and mixes the
// PCM slots of a reduced SCSP model. The Dreamcast variant needs an ARM7
// core which is not part of this engine, allocating it fails with
// engine.ErrVariantUnavailable so that hosts can plug in their own engine.
package sega

import (
	"fmt"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/retrogolib/log"
)

// SampleRate is the output rate of the sound chips.
const SampleRate = 44100

var _ engine.Engine = (*Engine)(nil)

// Engine allocates Saturn sound system states.
type Engine struct {
	logger *log.Logger
}

// New returns a new engine.
func New(logger *log.Logger) *Engine {
	return &Engine{
		logger: logger,
	}
}

// AllocateState creates a new emulation state for the variant.
func (e *Engine) AllocateState(variant engine.Variant, opts engine.Options) (engine.State, error) {
	switch variant {
	case engine.Saturn:
		if opts.DSPDynarec {
			e.logger.Debug("DSP recompiler not available, using the interpreter")
		}
		return newSaturn(e.logger, opts), nil
	case engine.Dreamcast:
		return nil, fmt.Errorf("%w: %s requires an ARM7 core", engine.ErrVariantUnavailable, variant)
	default:
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownVariant, variant)
	}
}

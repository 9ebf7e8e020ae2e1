// Package engine defines the boundary to the sound hardware emulation that
// executes a program image and produces interleaved stereo samples.
package engine

import (
	"errors"
	"fmt"
)

// Versions of the PSF container that identify the supported sound systems.
const (
	VersionSaturn    = 0x11
	VersionDreamcast = 0x12
)

// MaxCycles is the cycle budget passed to Execute when the number of
// requested frames is the only limit.
const MaxCycles = 0x7FFFFFFF

var (
	// ErrUnknownVariant is returned for container versions that no variant handles.
	ErrUnknownVariant = errors.New("unknown sound system variant")
	// ErrVariantUnavailable is returned by engines that can not emulate a variant.
	ErrVariantUnavailable = errors.New("sound system variant not available")
	// ErrExecution is returned when the emulated system halts with an error.
	ErrExecution = errors.New("execution halted with an error")
)

// Variant is one of the supported sound chip families.
type Variant int

const (
	// Saturn is the Sega Saturn SCSP with its 68000 sound CPU.
	Saturn Variant = iota + 1
	// Dreamcast is the Sega Dreamcast AICA with its ARM7 sound CPU.
	Dreamcast
)

// VariantFromVersion maps a container version to the variant.
func VariantFromVersion(version int) (Variant, error) {
	switch version {
	case VersionSaturn:
		return Saturn, nil
	case VersionDreamcast:
		return Dreamcast, nil
	default:
		return 0, fmt.Errorf("%w: version 0x%02X", ErrUnknownVariant, version)
	}
}

// String returns the system name of the variant.
func (v Variant) String() string {
	switch v {
	case Saturn:
		return "saturn"
	case Dreamcast:
		return "dreamcast"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// MemorySize returns the size of the sound memory of the variant, which is
// the upper limit for uploaded program images.
func (v Variant) MemorySize() uint32 {
	if v == Dreamcast {
		return 0x800000
	}
	return 0x80000
}

// Options configure the output stages of an allocated state.
type Options struct {
	Dry        bool // output the direct sound path
	DSP        bool // output the effect DSP path
	DSPDynarec bool // use a recompiler for the effect DSP if the engine has one
}

// Engine allocates emulation states.
type Engine interface {
	// AllocateState creates a new state for the variant.
	AllocateState(variant Variant, opts Options) (State, error)
}

// State is an allocated emulation of one sound system.
type State interface {
	// Clear resets the emulated hardware to power on state.
	Clear()
	// Upload loads a program image. The first 4 bytes of the image are the
	// little endian load address, followed by the data.
	Upload(image []byte) error
	// Execute runs the emulation until frames stereo frames have been
	// generated or maxCycles have elapsed. Samples are written to out which
	// may be nil to discard them. It returns the number of frames generated.
	Execute(maxCycles int, out []int16, frames int) (int, error)
	// Release frees resources held by the state.
	Release()
}

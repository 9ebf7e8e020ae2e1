package sega

import (
	"encoding/binary"
	"fmt"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/image"
	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/go-chip-m68k"
)

const (
	soundRAMSize    = 0x80000
	soundRAMMask    = soundRAMSize - 1
	cpuClockHz      = 11289600
	cyclesPerSample = cpuClockHz / SampleRate // 256

	scspBase = 0x100000
	scspEnd  = 0x101000
)

var _ engine.State = (*saturn)(nil)

// saturn is the Saturn sound subsystem: 512 KiB sound RAM shared by the
// 68000 and the SCSP.
//
// Address map (68000 view):
//
//	0x000000-0x0FFFFF  sound RAM (512 KiB, mirrored)
//	0x100000-0x100FFF  SCSP registers
type saturn struct {
	logger *log.Logger
	opts   engine.Options

	ram  []byte
	scsp *scsp
	cpu  *m68k.CPU

	lastLevel uint8
}

func newSaturn(logger *log.Logger, opts engine.Options) *saturn {
	s := &saturn{
		logger: logger,
		opts:   opts,
		ram:    make([]byte, soundRAMSize),
	}
	s.scsp = newSCSP(s.ram)
	return s
}

// Clear resets RAM and sound chip, the CPU is recreated by Upload.
func (s *saturn) Clear() {
	clear(s.ram)
	s.scsp.reset()
	s.cpu = nil
	s.lastLevel = 0
}

// Upload copies the program into sound RAM at its load address and resets
// the CPU, which fetches its stack pointer and program counter from the
// vector table at address 0.
func (s *saturn) Upload(data []byte) error {
	if len(data) < image.HeaderSize {
		return fmt.Errorf("%w: %d bytes", image.ErrSegmentTooShort, len(data))
	}
	start := binary.LittleEndian.Uint32(data) & image.AddressMask
	if start >= soundRAMSize {
		return fmt.Errorf("%w: 0x%06X", image.ErrBaseOutOfRange, start)
	}

	n := copy(s.ram[start:], data[image.HeaderSize:])
	s.logger.Debug("Uploaded program",
		log.Hex("address", start),
		log.Int("size", n))

	s.cpu = m68k.New(s)
	return nil
}

// Execute runs the CPU for 256 cycles per generated frame and mixes the
// SCSP output.
func (s *saturn) Execute(maxCycles int, out []int16, frames int) (int, error) {
	if out != nil && len(out) < frames*2 {
		frames = len(out) / 2
	}

	cycles := 0
	n := 0
	for ; n < frames && cycles < maxCycles; n++ {
		if err := s.runCPU(cyclesPerSample); err != nil {
			return n, err
		}

		l, r := s.scsp.sample(s.opts.Dry)
		if out != nil {
			out[n*2] = l
			out[n*2+1] = r
		}
		cycles += cyclesPerSample
	}
	return n, nil
}

// Release drops the references to the emulated hardware.
func (s *saturn) Release() {
	s.cpu = nil
}

func (s *saturn) runCPU(budget int) error {
	if s.cpu == nil {
		return nil
	}

	for budget > 0 {
		consumed := s.cpu.StepCycles(budget)
		if consumed == 0 {
			return fmt.Errorf("%w: 68000 halted", engine.ErrExecution)
		}
		budget -= consumed
	}

	level := s.scsp.interruptLevel()
	if level > 0 && level != s.lastLevel {
		s.cpu.RequestInterrupt(level, nil)
	}
	s.lastLevel = level
	return nil
}

// Read implements m68k.Bus.
func (s *saturn) Read(size m68k.Size, addr uint32) uint32 {
	addr &= 0xFFFFFF

	switch {
	case addr < scspBase:
		return s.readRAM(size, addr)
	case addr < scspEnd:
		return s.readSCSP(size, addr)
	default:
		return 0
	}
}

// Write implements m68k.Bus.
func (s *saturn) Write(size m68k.Size, addr uint32, value uint32) {
	addr &= 0xFFFFFF

	switch {
	case addr < scspBase:
		s.writeRAM(size, addr, value)
	case addr < scspEnd:
		s.writeSCSP(size, addr, value)
	}
}

// Reset implements m68k.Bus. The RESET instruction only resets the sound
// chip, sound RAM keeps its content.
func (s *saturn) Reset() {
	s.scsp.reset()
}

func (s *saturn) readRAM(size m68k.Size, addr uint32) uint32 {
	idx := addr & soundRAMMask
	switch size {
	case m68k.Byte:
		return uint32(s.ram[idx])
	case m68k.Word:
		return uint32(s.ram[idx])<<8 | uint32(s.ram[(idx+1)&soundRAMMask])
	case m68k.Long:
		return uint32(s.ram[idx])<<24 | uint32(s.ram[(idx+1)&soundRAMMask])<<16 |
			uint32(s.ram[(idx+2)&soundRAMMask])<<8 | uint32(s.ram[(idx+3)&soundRAMMask])
	}
	return 0
}

func (s *saturn) writeRAM(size m68k.Size, addr uint32, value uint32) {
	idx := addr & soundRAMMask
	switch size {
	case m68k.Byte:
		s.ram[idx] = byte(value)
	case m68k.Word:
		s.ram[idx] = byte(value >> 8)
		s.ram[(idx+1)&soundRAMMask] = byte(value)
	case m68k.Long:
		s.ram[idx] = byte(value >> 24)
		s.ram[(idx+1)&soundRAMMask] = byte(value >> 16)
		s.ram[(idx+2)&soundRAMMask] = byte(value >> 8)
		s.ram[(idx+3)&soundRAMMask] = byte(value)
	}
}

func (s *saturn) readSCSP(size m68k.Size, addr uint32) uint32 {
	offset := addr - scspBase
	switch size {
	case m68k.Byte:
		word := s.scsp.read(offset &^ 1)
		if offset&1 == 0 {
			return uint32(word >> 8)
		}
		return uint32(word & 0xFF)
	case m68k.Word:
		return uint32(s.scsp.read(offset))
	case m68k.Long:
		return uint32(s.scsp.read(offset))<<16 | uint32(s.scsp.read(offset+2))
	}
	return 0
}

func (s *saturn) writeSCSP(size m68k.Size, addr uint32, value uint32) {
	offset := addr - scspBase
	switch size {
	case m68k.Byte:
		if offset&1 == 0 {
			s.scsp.write(offset&^1, uint16(value)<<8, 0xFF00)
		} else {
			s.scsp.write(offset&^1, uint16(value)&0xFF, 0x00FF)
		}
	case m68k.Word:
		s.scsp.write(offset, uint16(value), 0xFFFF)
	case m68k.Long:
		s.scsp.write(offset, uint16(value>>16), 0xFFFF)
		s.scsp.write(offset+2, uint16(value), 0xFFFF)
	}
}

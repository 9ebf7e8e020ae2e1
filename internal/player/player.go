// Package player exposes a session through the simple host player API:
// open with a status, read blocks of frames and seek by sample position.
package player

import (
	"errors"

	"github.com/retroenv/segaxsf/internal/session"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/retrogolib/log"
)

// DefaultBlockFrames is the size of the scratch buffer used while priming.
const DefaultBlockFrames = 1024

// Status is the result of opening a file.
type Status int

const (
	StatusOK Status = iota
	StatusRetry
	StatusUnsupported
	StatusCorrupt
)

// Message returns the user facing description of the status.
func (s Status) Message() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRetry:
		return "cannot play this file yet"
	case StatusUnsupported:
		return "cannot play this file"
	case StatusCorrupt:
		return "corrupt file"
	default:
		return "unknown status"
	}
}

func (s Status) String() string {
	return s.Message()
}

// Player plays one track at a time.
type Player struct {
	logger  *log.Logger
	session *session.Session
	scratch []int16
	err     error
}

// New returns a player creating its session from manager. sink receives
// the tags of opened tracks and may be nil.
func New(logger *log.Logger, manager *session.Manager, sink tags.MetaSink, blockFrames int) *Player {
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}
	return &Player{
		logger:  logger,
		session: manager.NewSession(sink),
		scratch: make([]int16, blockFrames*2),
	}
}

// Open opens and primes a track. StatusRetry means that a library is still
// being fetched and Open has to be called again.
func (p *Player) Open(path string) Status {
	p.err = nil

	result, err := p.session.Open(path)
	switch {
	case errors.Is(err, session.ErrUnsupportedFormat):
		p.err = err
		p.logger.Debug("Unsupported file", log.String("file", path), log.Err(err))
		return StatusUnsupported
	case err != nil:
		p.err = err
		p.logger.Debug("Corrupt file", log.String("file", path), log.Err(err))
		return StatusCorrupt
	case result == session.OpenRetry:
		return StatusRetry
	}

	if err := p.session.Initialize(p.scratch); err != nil {
		p.err = err
		p.logger.Debug("Initializing track failed", log.String("file", path), log.Err(err))
		return StatusCorrupt
	}
	return StatusOK
}

// SampleRate returns the output sample rate.
func (p *Player) SampleRate() int {
	return p.session.SampleRate()
}

// TotalSamplesToPlay returns the length of the track including the fade in
// frames.
func (p *Player) TotalSamplesToPlay() int64 {
	return p.session.TotalSamples()
}

// SamplesPlayed returns the number of frames read so far.
func (p *Player) SamplesPlayed() int64 {
	return p.session.SamplesPlayed()
}

// Read fills buf with up to maxFrames interleaved stereo frames. It returns
// the number of frames or -1 at the end of the track. Decode errors also end
// the track, Err returns them.
func (p *Player) Read(buf []int16, maxFrames int) int {
	frames := max(0, min(maxFrames, len(buf)/2))
	n, err := p.session.Decode(buf[:frames*2])
	if err != nil {
		if !errors.Is(err, session.ErrEndOfStream) {
			p.err = err
			p.logger.Debug("Decoding stopped", log.Err(err))
		}
		return -1
	}
	return n
}

// SeekSample moves playback to the given frame position.
func (p *Player) SeekSample(samples int64) error {
	return p.session.SeekFrame(samples)
}

// Err returns the error that stopped opening or decoding.
func (p *Player) Err() error {
	return p.err
}

// Session returns the underlying session.
func (p *Player) Session() *session.Session {
	return p.session
}

// Close releases the emulation state.
func (p *Player) Close() {
	p.session.Close()
}

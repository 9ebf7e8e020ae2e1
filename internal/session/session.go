// Package session implements the decode session: open a track, prime the
// engine with the merged program image and stream fixed duration PCM with
// fade out, trailing silence detection and seeking.
package session

import (
	"errors"
	"fmt"

	"github.com/retroenv/segaxsf/internal/deps"
	"github.com/retroenv/segaxsf/internal/duration"
	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/image"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/silence"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/retrogolib/log"
)

// SampleRate is the output rate of both engine variants.
const SampleRate = 44100

// seekChunk is the number of frames generated per engine call while
// fast forwarding.
const seekChunk = 1024

var (
	// ErrUnsupportedFormat is returned by Open for files that are not SSF or DSF.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrData is returned for corrupt files, tag errors and engine failures.
	ErrData = errors.New("data error")
	// ErrEndOfStream is returned by Decode once the track has ended.
	ErrEndOfStream = errors.New("end of stream")
	// ErrNotInitialized is returned when decoding before a successful
	// open and initialize.
	ErrNotInitialized = errors.New("session not initialized")
)

// OpenResult is the outcome of a successful Open call.
type OpenResult int

const (
	// OpenReady means the track was opened and can be initialized.
	OpenReady OpenResult = iota + 1
	// OpenRetry means a library is still being fetched, Open has to be
	// called again later.
	OpenRetry
)

func (r OpenResult) String() string {
	switch r {
	case OpenReady:
		return "ready"
	case OpenRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// ContainerLoader reads versions, tags and program sections of a track.
type ContainerLoader interface {
	Version(path string, hint int) (int, error)
	Tags(path string, fn func(key, value string) error) error
	Sections(path string, version int, fn func(data []byte) error) error
}

// DependencyChecker checks the availability of the libraries of a track.
type DependencyChecker interface {
	Check(mainPath string, libs []string) error
}

// Session is the decode state of one track. It is not safe for concurrent
// use.
type Session struct {
	logger  *log.Logger
	cfg     options.Playback
	manager *Manager
	sink    tags.MetaSink

	path    string
	version int
	variant engine.Variant
	tags    *tags.State
	status  State

	sampleRate int
	duration   duration.Model

	state engine.State
	ring  *silence.Ring
	held  []int16 // decoded samples not yet handed out

	dataWritten        int64
	startSilence       int64
	silence            int64
	suppressEndSilence bool
	eof                bool
	err                error

	seekBuf []int16
}

// Open parses the container and its tags and checks the libraries. It
// returns OpenRetry when a library is not available yet, no engine state is
// allocated in that case.
func (s *Session) Open(path string) (OpenResult, error) {
	s.Close()
	s.path = path
	s.err = nil
	s.eof = false

	version, err := s.manager.loader.Version(path, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	variant, err := engine.VariantFromVersion(version)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	s.version = version
	s.variant = variant
	s.manager.countOpen(variant)

	state := tags.NewState()
	if err := s.manager.loader.Tags(path, state.Consume); err != nil {
		return 0, fmt.Errorf("%w: loading tags: %w", ErrData, err)
	}
	if err := state.Finish(s.cfg.Charset, s.sink); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrData, err)
	}
	s.tags = state

	s.duration = duration.Model{NoLoop: true}
	s.duration.SetTags(state.SongMs, state.FadeMs, s.cfg.DefaultLengthMs, s.cfg.DefaultFadeMs)
	s.duration.Recompute(s.sampleRate)

	if err := s.manager.deps.Check(path, state.Libs); err != nil {
		if errors.Is(err, deps.ErrNotReady) {
			s.logger.Debug("Track dependencies not ready", log.String("file", path), log.Err(err))
			return OpenRetry, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrData, err)
	}

	s.status = StateOpened
	s.logger.Debug("Opened track",
		log.String("file", path),
		log.String("variant", variant.String()),
		log.Int("libraries", len(state.Libs)))
	return OpenReady, nil
}

// Initialize allocates a new engine state, uploads the merged program image
// and resets all counters. scratch is used as work buffer for the opening
// silence skip, a nil scratch uses an internal buffer.
func (s *Session) Initialize(scratch []int16) error {
	if s.status == StateUnopened {
		return ErrNotInitialized
	}
	s.releaseState()
	s.err = nil

	if err := s.prime(); err != nil {
		s.err = err
		return err
	}

	s.startSilence = 0
	s.silence = 0
	s.eof = false
	s.dataWritten = 0
	s.held = nil
	s.duration.NoLoop = true
	s.duration.Recompute(s.sampleRate)

	s.suppressEndSilence = s.cfg.SuppressEndSilence
	skipMax := int64(s.cfg.EndSilenceSeconds) * int64(s.sampleRate)

	if s.cfg.SkipOpeningSilence && skipMax > 0 {
		if err := s.skipOpeningSilence(scratch, skipMax); err != nil {
			s.err = err
			return err
		}
	}

	if s.suppressEndSilence {
		capacity := silence.Capacity(s.cfg.EndSilenceSeconds, s.sampleRate)
		if capacity == 0 {
			s.logger.Warn("Trailing silence detection disabled, threshold is zero")
			s.suppressEndSilence = false
		} else {
			if s.ring == nil {
				s.ring = silence.NewRing(capacity)
			} else {
				s.ring.Resize(capacity)
			}
			s.ring.Write(s.held)
			s.held = nil
			s.logger.Debug("Trailing silence detection enabled", log.Int("capacity", s.ring.Cap()))
		}
	}

	s.status = StatePrimed
	return nil
}

// prime allocates and clears the engine state and uploads the program.
func (s *Session) prime() error {
	st, err := s.manager.engine.AllocateState(s.variant, engine.Options{
		Dry:        s.cfg.Dry || !s.cfg.DSP,
		DSP:        s.cfg.DSP,
		DSPDynarec: s.cfg.DSPDynarec,
	})
	if err != nil {
		return fmt.Errorf("%w: allocating engine state: %w", ErrData, err)
	}
	st.Clear()

	img := image.New()
	if err := s.manager.loader.Sections(s.path, s.version, img.Merge); err != nil {
		st.Release()
		return fmt.Errorf("%w: loading program: %w", ErrData, err)
	}

	program, err := img.Clip(s.variant.MemorySize())
	if err != nil {
		st.Release()
		return fmt.Errorf("%w: %w", ErrData, err)
	}
	if err := st.Upload(program); err != nil {
		st.Release()
		return fmt.Errorf("%w: uploading program: %w", ErrData, err)
	}

	s.state = st
	s.logger.Debug("Uploaded program image",
		log.Hex("base", img.Base()),
		log.Int("merged", len(img.Payload())),
		log.Int("size", len(program)-image.HeaderSize))
	return nil
}

// skipOpeningSilence runs the engine until the first non silent frame. The
// sound following the silence is kept for the next decode call.
func (s *Session) skipOpeningSilence(scratch []int16, skipMax int64) error {
	if len(scratch) < 2 {
		scratch = s.seekBuffer()
	}
	frames := int64(len(scratch) / 2)

	for {
		todo := min(skipMax-s.silence, frames)
		n, err := s.state.Execute(engine.MaxCycles, scratch[:todo*2], int(todo))
		if err != nil {
			return fmt.Errorf("%w: skipping opening silence: %w", ErrData, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: engine produced no output", ErrData)
		}

		i := silence.LeadingSilence(scratch[:n*2])
		s.silence += int64(i)
		if i < n {
			s.held = append([]int16(nil), scratch[i*2:n*2]...)
			break
		}
		if s.silence >= skipMax {
			s.eof = true
			break
		}
	}

	s.logger.Debug("Skipped opening silence", log.Int("frames", int(s.silence)))
	s.startSilence += s.silence
	s.silence = 0
	return nil
}

// Decode fills out with up to len(out)/2 interleaved stereo frames and
// returns the number of frames written. It returns ErrEndOfStream once the
// track ended and keeps returning it until the next seek.
func (s *Session) Decode(out []int16) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.eof {
		return 0, ErrEndOfStream
	}
	if s.state == nil {
		return 0, ErrNotInitialized
	}

	size := int64(len(out) / 2)
	if s.duration.Limited() {
		if s.duration.Reached(s.dataWritten) {
			s.eof = true
			return 0, ErrEndOfStream
		}
		size = min(size, s.duration.Total()-s.dataWritten)
	}
	if size == 0 {
		return 0, nil
	}
	s.status = StateStreaming

	var written int
	var err error
	if s.suppressEndSilence {
		written, err = s.decodeBuffered(out, int(size))
	} else {
		written, err = s.decodeDirect(out, int(size))
	}
	if err != nil {
		return 0, err
	}

	s.duration.Recompute(s.sampleRate)
	s.duration.Apply(out[:written*2], s.dataWritten)
	s.dataWritten += int64(written)
	return written, nil
}

// decodeBuffered fills the silence ring and hands out its oldest content.
// The ring is never filled beyond the end of the track.
func (s *Session) decodeBuffered(out []int16, size int) (int, error) {
	count := int64(s.ring.Free() / 2)
	if s.duration.Limited() {
		remaining := s.duration.Total() - s.dataWritten - int64(s.ring.Available()/2)
		count = min(count, max(remaining, 0))
	}

	for count > 0 {
		space := s.ring.WriteSpace()
		todo := min(int64(size), count, int64(len(space)/2))
		if todo == 0 {
			break
		}

		n, err := s.state.Execute(engine.MaxCycles, space[:todo*2], int(todo))
		if err != nil {
			return 0, s.fail(fmt.Errorf("%w: execution halted: %w", ErrData, err))
		}
		if n == 0 {
			return 0, s.fail(fmt.Errorf("%w: engine produced no output", ErrData))
		}
		s.ring.Commit(n * 2)
		count -= int64(n)
	}

	if s.ring.IsSilent() {
		s.logger.Debug("Trailing silence reached", log.Int("position", int(s.dataWritten)))
		s.eof = true
		return 0, ErrEndOfStream
	}

	written := min(s.ring.Available()/2, size)
	return s.ring.Read(out[:written*2]) / 2, nil
}

// decodeDirect hands out held samples first, otherwise runs the engine once.
func (s *Session) decodeDirect(out []int16, size int) (int, error) {
	if len(s.held) > 0 {
		n := copy(out[:size*2], s.held) / 2
		s.held = s.held[n*2:]
		return n, nil
	}

	n, err := s.state.Execute(engine.MaxCycles, out[:size*2], size)
	if err != nil {
		return 0, s.fail(fmt.Errorf("%w: execution halted: %w", ErrData, err))
	}
	if n == 0 {
		return 0, s.fail(fmt.Errorf("%w: engine produced no output", ErrData))
	}
	return n, nil
}

// SeekFrame moves the stream to the absolute frame position. Seeking backwards
// restarts the session, seeking forwards runs the engine and discards the
// output.
func (s *Session) SeekFrame(frame int64) error {
	if s.err != nil {
		return s.err
	}
	if s.state == nil {
		return ErrNotInitialized
	}
	frame = max(frame, 0)
	s.eof = false

	pos := s.dataWritten + int64(len(s.takeBuffered())/2)
	s.dataWritten = pos

	if frame < pos {
		s.logger.Debug("Restarting track for seek", log.Int("target", int(frame)))
		if err := s.Initialize(s.seekBuffer()); err != nil {
			return err
		}

		buffered := s.takeBuffered()
		if frame < int64(len(buffered)/2) {
			s.held = buffered[frame*2:]
			s.dataWritten = frame
			s.storeHeld()
			return nil
		}
		pos = int64(len(buffered) / 2)
		s.dataWritten = pos
		if s.eof {
			return nil
		}
	}

	remaining := frame - pos
	buf := s.seekBuffer()
	for remaining > 0 {
		n, err := s.state.Execute(engine.MaxCycles, buf, seekChunk)
		if err != nil || n == 0 {
			s.logger.Debug("Seek ran past available content", log.Err(err))
			s.eof = true
			return nil
		}

		if int64(n) > remaining {
			s.held = append([]int16(nil), buf[remaining*2:n*2]...)
			s.dataWritten += remaining
			break
		}
		s.dataWritten += int64(n)
		remaining -= int64(n)
	}

	s.storeHeld()
	return nil
}

// takeBuffered removes and returns all decoded samples not handed out yet.
func (s *Session) takeBuffered() []int16 {
	buffered := s.held
	s.held = nil
	if s.suppressEndSilence && s.ring != nil && s.ring.Available() > 0 {
		ring := make([]int16, s.ring.Available())
		s.ring.Read(ring)
		buffered = append(buffered, ring...)
	}
	if s.ring != nil {
		s.ring.Reset()
	}
	return buffered
}

// storeHeld moves held samples into the silence ring when it is active.
func (s *Session) storeHeld() {
	if s.suppressEndSilence && len(s.held) > 0 {
		s.ring.Write(s.held)
		s.held = nil
	}
}

func (s *Session) seekBuffer() []int16 {
	if s.seekBuf == nil {
		s.seekBuf = make([]int16, seekChunk*2)
	}
	return s.seekBuf
}

func (s *Session) fail(err error) error {
	s.err = err
	return err
}

func (s *Session) releaseState() {
	if s.state != nil {
		s.state.Release()
		s.state = nil
	}
}

// Close releases the engine state.
func (s *Session) Close() {
	s.releaseState()
	s.held = nil
	s.status = StateUnopened
}

// SampleRate returns the output sample rate.
func (s *Session) SampleRate() int {
	return s.sampleRate
}

// TotalSamples returns the number of frames of the track including the fade.
func (s *Session) TotalSamples() int64 {
	return s.duration.Total()
}

// SamplesPlayed returns the number of frames handed out since the start of
// the stream.
func (s *Session) SamplesPlayed() int64 {
	return s.dataWritten
}

// StartSilence returns the number of skipped opening silence frames.
func (s *Session) StartSilence() int64 {
	return s.startSilence
}

// Version returns the container version of the open track.
func (s *Session) Version() int {
	return s.version
}

// Variant returns the engine variant of the open track.
func (s *Session) Variant() engine.Variant {
	return s.variant
}

// Path returns the path of the open track.
func (s *Session) Path() string {
	return s.path
}

// Info returns the metadata of the open track.
func (s *Session) Info() tags.Info {
	if s.tags == nil {
		return tags.Info{}
	}
	info := s.tags.Info(s.path)
	info.SongMs = s.duration.SongMs
	info.FadeMs = s.duration.FadeMs
	return info
}

// Metadata returns all metadata tags of the open track in file order.
func (s *Session) Metadata() []tags.Pair {
	if s.tags == nil {
		return nil
	}
	return s.tags.Meta()
}

// Libraries returns the library names referenced by the open track.
func (s *Session) Libraries() []string {
	if s.tags == nil {
		return nil
	}
	return s.tags.Libs
}

// ReplayGain returns the replay gain tags of the open track sorted by key.
func (s *Session) ReplayGain() []tags.Pair {
	if s.tags == nil {
		return nil
	}
	return s.tags.ReplayGain()
}

// State returns the current state of the session.
func (s *Session) State() State {
	switch {
	case s.err != nil:
		return StateError
	case s.eof && s.status >= StatePrimed:
		return StateEOF
	default:
		return s.status
	}
}

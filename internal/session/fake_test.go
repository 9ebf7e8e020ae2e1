package session

import (
	"encoding/binary"
	"errors"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/tags"
)

var errHalted = errors.New("halted")

type fakeLoader struct {
	version    int
	versionErr error
	tags       []tags.Pair
	sections   [][]byte
}

func (f *fakeLoader) Version(string, int) (int, error) {
	return f.version, f.versionErr
}

func (f *fakeLoader) Tags(_ string, fn func(key, value string) error) error {
	for _, tag := range f.tags {
		if err := fn(tag.Key, tag.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLoader) Sections(_ string, _ int, fn func(data []byte) error) error {
	for _, section := range f.sections {
		if err := fn(section); err != nil {
			return err
		}
	}
	return nil
}

type fakeDeps struct {
	err error
}

func (f *fakeDeps) Check(string, []string) error {
	return f.err
}

// fakeEngine produces frames whose value is computed from the absolute
// frame index of the state.
type fakeEngine struct {
	signal      func(frame int64) int16
	failAt      int64
	zeroOutput  bool
	allocations int
	last        *fakeState
}

func newFakeEngine(signal func(frame int64) int16) *fakeEngine {
	return &fakeEngine{signal: signal, failAt: -1}
}

func (e *fakeEngine) AllocateState(engine.Variant, engine.Options) (engine.State, error) {
	e.allocations++
	e.last = &fakeState{engine: e}
	return e.last, nil
}

type fakeState struct {
	engine   *fakeEngine
	uploaded []byte
	frame    int64
	released bool
}

func (s *fakeState) Clear() {
	s.frame = 0
}

func (s *fakeState) Upload(data []byte) error {
	s.uploaded = append([]byte(nil), data...)
	return nil
}

func (s *fakeState) Execute(_ int, out []int16, frames int) (int, error) {
	if s.engine.failAt >= 0 && s.frame+int64(frames) > s.engine.failAt {
		return 0, errHalted
	}
	if s.engine.zeroOutput {
		return 0, nil
	}
	for i := range frames {
		v := s.engine.signal(s.frame)
		if out != nil {
			out[i*2] = v
			out[i*2+1] = v
		}
		s.frame++
	}
	return frames, nil
}

func (s *fakeState) Release() {
	s.released = true
}

// ramp returns a non zero value identifying the frame.
func ramp(frame int64) int16 {
	return int16(frame%30000 + 1)
}

func constant(value int16) func(int64) int16 {
	return func(int64) int16 { return value }
}

func segment(base uint32, payload ...byte) []byte {
	b := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(b, base)
	return append(b, payload...)
}

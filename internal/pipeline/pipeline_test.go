package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/loader"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// idleProgram returns a Saturn program that loops forever at 0x400.
func idleProgram() []byte {
	mem := make([]byte, 4+0x402)
	binary.LittleEndian.PutUint32(mem, 0)
	binary.BigEndian.PutUint32(mem[4:], 0x7F000)
	binary.BigEndian.PutUint32(mem[8:], 0x400)
	mem[4+0x400] = 0x60 // BRA.S *
	mem[4+0x401] = 0xFE
	return mem
}

// patch returns a program section placing a NOP at 0x500.
func patch() []byte {
	mem := make([]byte, 4+2)
	binary.LittleEndian.PutUint32(mem, 0x500)
	binary.BigEndian.PutUint16(mem[4:], 0x4E71)
	return mem
}

func build(t *testing.T, program []byte, tagList ...loader.Tag) []byte {
	t.Helper()
	data, err := loader.Build(engine.VersionSaturn, program, tagList)
	assert.NoError(t, err)
	return data
}

func testConfig() options.Playback {
	return options.Playback{
		DefaultLengthMs:    170000,
		DefaultFadeMs:      10000,
		SuppressEndSilence: true,
		EndSilenceSeconds:  5,
		Dry:                true,
		DSP:                true,
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, afero.Fs) {
	t.Helper()
	source := afero.NewMemMapFs()
	files := map[string][]byte{
		"/music/Game.ssflib": build(t, idleProgram()),
		"/music/01.minissf": build(t, patch(),
			loader.Tag{Key: "_lib", Value: "game.ssflib"},
			loader.Tag{Key: "title", Value: "Opening"},
			loader.Tag{Key: "length", Value: "0.05"},
			loader.Tag{Key: "fade", Value: "0.05"}),
		"/music/02.minissf": build(t, patch(),
			loader.Tag{Key: "_lib", Value: "missing.ssflib"}),
		"/music/notes.minissf": []byte("not a track"),
	}
	for name, data := range files {
		assert.NoError(t, afero.WriteFile(source, name, data, 0o644))
	}

	out := afero.NewMemMapFs()
	p, err := New(log.NewTestLogger(t), testConfig(), source, out)
	assert.NoError(t, err)
	return p, out
}

func TestNew(t *testing.T) {
	p, _ := newTestPipeline(t)

	assert.NotNil(t, p.logger)
	assert.NotNil(t, p.detector)
	assert.NotNil(t, p.host)
	assert.NotNil(t, p.Manager())
}

func TestExecuteRender(t *testing.T) {
	p, out := newTestPipeline(t)

	opts := options.Program{
		Parameters: options.Parameters{Input: "/music/01.minissf", Output: "/out/01.wav"},
		Flags:      options.Flags{Verify: true, Quiet: true},
	}
	result, err := p.Execute(context.Background(), opts)
	assert.NoError(t, err)
	assert.Equal(t, int64(4410), result.Total)
	assert.Equal(t, int64(4410), result.Frames)
	assert.Equal(t, int64(0), result.StartFrame)

	exists, err := afero.Exists(out, "/out/01.wav")
	assert.NoError(t, err)
	assert.True(t, exists)

	counts := p.Manager().Counts()
	assert.Equal(t, 3, counts[engine.Saturn]) // retry, open, verification open
}

func TestExecuteSeek(t *testing.T) {
	p, _ := newTestPipeline(t)

	opts := options.Program{
		Parameters: options.Parameters{Input: "/music/01.minissf", Output: "/out/01.wav"},
		Flags:      options.Flags{Seek: "0.025", Verify: true, Quiet: true},
	}
	result, err := p.Execute(context.Background(), opts)
	assert.NoError(t, err)
	assert.Equal(t, int64(1102), result.StartFrame)
	assert.Equal(t, int64(4410-1102), result.Frames)
}

func TestExecuteErrors(t *testing.T) {
	p, _ := newTestPipeline(t)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "library", input: "/music/Game.ssflib", want: ErrNotPlayable},
		{name: "archive", input: "/music/set.7z", want: ErrNotPlayable},
		{name: "missing track", input: "/music/none.minissf"},
		{name: "missing library", input: "/music/02.minissf"},
		{name: "not a track", input: "/music/notes.minissf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options.Program{
				Parameters: options.Parameters{Input: tt.input, Output: "/out/x.wav"},
				Flags:      options.Flags{Quiet: true},
			}
			_, err := p.Execute(context.Background(), opts)
			assert.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
		})
	}
}

func TestExecuteCanceled(t *testing.T) {
	p, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := options.Program{
		Parameters: options.Parameters{Input: "/music/01.minissf", Output: "/out/01.wav"},
		Flags:      options.Flags{Quiet: true},
	}
	_, err := p.Execute(ctx, opts)
	assert.True(t, errors.Is(err, context.Canceled))
}

package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/retroenv/segaxsf/internal/deps"
	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/segaxsf/internal/loader"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/sega"
	"github.com/retroenv/segaxsf/internal/session"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00.000", FormatDuration(0, 44100))
	assert.Equal(t, "2:50.000", FormatDuration(170000, 1000))
	assert.Equal(t, "0:01.500", FormatDuration(66150, 44100))
	assert.Equal(t, "0:00.000", FormatDuration(-1, 44100))
}

func TestDump(t *testing.T) {
	logger := log.NewTestLogger(t)
	mem := afero.NewMemMapFs()
	data, err := loader.Build(engine.VersionSaturn, []byte{0, 0, 0, 0}, []loader.Tag{
		{Key: "title", Value: "Opening"},
		{Key: "game", Value: "Test Game"},
		{Key: "length", Value: "1:00"},
		{Key: "replaygain_track_gain", Value: "-3.5 dB"},
	})
	assert.NoError(t, err)
	assert.NoError(t, afero.WriteFile(mem, "/a.minissf", data, 0o644))

	fsys, err := hostfs.New(logger, mem, 4)
	assert.NoError(t, err)
	cfg := options.Playback{DefaultLengthMs: 170000, DefaultFadeMs: 10000, EndSilenceSeconds: 5}
	m := session.NewManager(logger, cfg, loader.New(logger, fsys), deps.New(logger, fsys), sega.New(logger))
	sess := m.NewSession(nil)
	result, err := sess.Open("/a.minissf")
	assert.NoError(t, err)
	assert.Equal(t, session.OpenReady, result)

	PrintInfo(logger, options.Program{Parameters: options.Parameters{Input: "/a.minissf"}}, sess)

	var buf bytes.Buffer
	Dump(&buf, sess)
	out := buf.String()
	assert.True(t, strings.Contains(out, "Opening"))
	assert.True(t, strings.Contains(out, "Test Game"))
	assert.True(t, strings.Contains(out, "/a.minissf"))
	assert.True(t, strings.Contains(out, "replaygain_track_gain"))
	assert.True(t, strings.Contains(out, "-3.5 dB"))
	assert.Equal(t, []tags.Pair{{Key: "replaygain_track_gain", Value: "-3.5 dB"}}, sess.ReplayGain())
}

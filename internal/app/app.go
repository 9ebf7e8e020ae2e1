// Package app provides the main application helper for the player.
package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/session"
	"github.com/retroenv/retrogolib/log"
)

// PrintInfo prints the information about the input file and the opened track.
func PrintInfo(logger *log.Logger, opts options.Program, sess *session.Session) {
	if opts.Quiet {
		return
	}

	info := sess.Info()
	logger.Info("Processing track",
		log.String("file", opts.Input),
		log.Stringer("system", sess.Variant()),
		log.String("title", info.Title),
		log.String("game", info.Game),
		log.String("artist", info.Artist),
		log.String("length", formatMs(info.SongMs)),
		log.String("fade", formatMs(info.FadeMs)),
	)

	if libs := sess.Libraries(); len(libs) > 0 {
		logger.Debug("Track libraries", log.String("libraries", strings.Join(libs, ", ")))
	}
	for _, gain := range sess.ReplayGain() {
		logger.Debug("Replay gain", log.String("key", gain.Key), log.String("value", gain.Value))
	}
	if skipped := sess.StartSilence(); skipped > 0 {
		logger.Debug("Skipped opening silence", log.Int("frames", int(skipped)))
	}
}

// trackDump is the information written by Dump.
type trackDump struct {
	Path       string
	Version    int
	Variant    string
	Info       any
	Metadata   any
	ReplayGain any
	Libraries  []string
	Total      int64
	SampleRate int
}

// Dump writes all parsed information of the opened track to w.
func Dump(w io.Writer, sess *session.Session) {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	cfg.Fdump(w, trackDump{
		Path:       sess.Path(),
		Version:    sess.Version(),
		Variant:    sess.Variant().String(),
		Info:       sess.Info(),
		Metadata:   sess.Metadata(),
		ReplayGain: sess.ReplayGain(),
		Libraries:  sess.Libraries(),
		Total:      sess.TotalSamples(),
		SampleRate: sess.SampleRate(),
	})
}

// formatMs formats a duration in milliseconds as m:ss.fff.
func formatMs(ms uint32) string {
	return FormatDuration(int64(ms), 1000)
}

// FormatDuration formats a position given in units of rate per second as
// m:ss.fff.
func FormatDuration(units int64, rate int) string {
	if rate <= 0 || units < 0 {
		return "0:00.000"
	}
	ms := units * 1000 / int64(rate)
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

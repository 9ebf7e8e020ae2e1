// Package cli handles command line interface logic
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/segaxsf/internal/config"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/segaxsf/internal/timecode"
	"github.com/spf13/pflag"
)

// ParseFlags parses command line flags and returns program and playback options
func ParseFlags() (options.Program, options.Playback, error) {
	return parseArgs(os.Args)
}

func parseArgs(osArgs []string) (options.Program, options.Playback, error) {
	flags := pflag.NewFlagSet(osArgs[0], pflag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(osArgs[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Input == "" && opts.Batch == "") {
		return opts, options.Playback{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Playback{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Playback{}, err
	}

	if opts.Batch == "" && len(args) > 0 {
		opts.Input = args[0]
	}

	playback, err := createPlaybackOptions(opts)
	if err != nil {
		return opts, options.Playback{}, err
	}
	return opts, playback, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *pflag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: segaxsf [options] <file to render or play>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg != "" && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after input file, please pass the input file as last argument", arg),
			}
		}
	}
	if len(args) > 1 {
		return &UsageError{msg: "only one input file can be given, use -batch for multiple files"}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Charset = strings.ToLower(opts.Charset)
	if _, err := tags.Decoder(opts.Charset); err != nil {
		return fmt.Errorf("%w. Valid options: %s", err,
			strings.Join([]string{tags.CharsetWindows1252, tags.CharsetShiftJIS, tags.CharsetUTF8}, ", "))
	}

	if opts.Jobs < 1 {
		return fmt.Errorf("invalid number of jobs: %d", opts.Jobs)
	}
	if opts.SilenceSeconds < 1 {
		return fmt.Errorf("invalid silence threshold: %d seconds", opts.SilenceSeconds)
	}
	if opts.Play && opts.Batch != "" {
		return fmt.Errorf("-play can not be combined with -batch")
	}
	if opts.Play && opts.Verify {
		return fmt.Errorf("-verify needs a rendered WAV file and can not be combined with -play")
	}
	if opts.Seek != "" {
		if _, ok := timecode.Parse(opts.Seek); !ok {
			return fmt.Errorf("invalid seek time code: %s", opts.Seek)
		}
	}
	return nil
}

// createPlaybackOptions creates decode session options based on program options
func createPlaybackOptions(opts options.Program) (options.Playback, error) {
	playback := config.DefaultPlayback()

	length, ok := timecode.Parse(opts.Length)
	if !ok {
		return playback, fmt.Errorf("invalid length time code: %s", opts.Length)
	}
	fade, ok := timecode.Parse(opts.Fade)
	if !ok {
		return playback, fmt.Errorf("invalid fade time code: %s", opts.Fade)
	}

	playback.DefaultLengthMs = length
	playback.DefaultFadeMs = fade
	playback.SkipOpeningSilence = opts.SkipStartSilence
	playback.SuppressEndSilence = !opts.NoTrimSilence
	playback.EndSilenceSeconds = opts.SilenceSeconds
	playback.Charset = opts.Charset
	return playback, nil
}

func readOptionFlags(flags *pflag.FlagSet, opts *options.Program) {
	flags.StringVarP(&opts.Input, "input", "i", "", "name of the input SSF/DSF file or .7z set")
	flags.StringVarP(&opts.Output, "output", "o", "", "name of the output .wav file, derived from the input name if not given")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask with automatic .wav file naming, for example *.minissf")
	flags.BoolVar(&opts.Play, "play", false, "play the track on the audio device instead of rendering a WAV file")
	flags.IntVarP(&opts.Jobs, "jobs", "j", 1, "number of files rendered in parallel in batch mode")
	flags.StringVar(&opts.Seek, "seek", "", "start position as time code, for example 1:30")
	flags.StringVar(&opts.Charset, "charset", tags.CharsetWindows1252, "charset of tags without utf8 marker (windows-1252/shift-jis/utf-8)")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the rendered WAV file by decoding it and comparing the frame count")
	flags.BoolVar(&opts.Dump, "dump", false, "dump the parsed track information")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "perform operations quietly")

	flags.StringVar(&opts.Length, "length", "2:50", "default length of tracks without length tag")
	flags.StringVar(&opts.Fade, "fade", "10", "default fade of tracks without length tag")
	flags.BoolVar(&opts.SkipStartSilence, "skip-start-silence", false, "skip silence at the start of tracks")
	flags.BoolVar(&opts.NoTrimSilence, "no-trim-silence", false, "do not end tracks after a long trailing silence")
	flags.IntVar(&opts.SilenceSeconds, "silence-seconds", config.DefaultEndSilenceSeconds, "seconds of silence that end a track")
}

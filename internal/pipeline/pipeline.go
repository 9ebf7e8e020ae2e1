// Package pipeline orchestrates the decode workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/retroenv/segaxsf/internal/app"
	"github.com/retroenv/segaxsf/internal/deps"
	"github.com/retroenv/segaxsf/internal/detector"
	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/segaxsf/internal/loader"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/output"
	"github.com/retroenv/segaxsf/internal/player"
	"github.com/retroenv/segaxsf/internal/sega"
	"github.com/retroenv/segaxsf/internal/session"
	"github.com/retroenv/segaxsf/internal/stream"
	"github.com/retroenv/segaxsf/internal/timecode"
	"github.com/retroenv/segaxsf/internal/verification"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

const (
	maxOpenAttempts = 8
	retryInterval   = 20 * time.Millisecond
	speakerVolume   = 1.0
)

var (
	// ErrNotPlayable is returned for libraries and archives given as track.
	ErrNotPlayable = errors.New("file is not a playable track")
	// ErrOpenTimeout is returned when the libraries of a track did not become
	// available.
	ErrOpenTimeout = errors.New("track libraries not available")
)

// Result describes a processed track.
type Result struct {
	Frames     int64 // frames written or played
	StartFrame int64 // seek position the output started at
	Total      int64 // track length including fade
}

// Pipeline orchestrates the complete render or play workflow. It is safe
// for concurrent use, every Execute call uses its own session.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	source   *hostfs.FS
	host     *hostfs.Deferred
	output   afero.Fs
	manager  *session.Manager
	speaker  *output.Speaker
}

// New creates a new pipeline reading tracks from source and writing WAV
// files to out. Tracks and libraries are fetched from source on demand into
// an in memory cache that the decode sessions read from.
func New(logger *log.Logger, cfg options.Playback, source, out afero.Fs) (*Pipeline, error) {
	src, err := hostfs.New(logger, source, hostfs.DefaultCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating source file system: %w", err)
	}
	cache, err := hostfs.New(logger, afero.NewMemMapFs(), hostfs.DefaultCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating cache file system: %w", err)
	}
	host := hostfs.NewDeferred(logger, cache)

	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		source:   src,
		host:     host,
		output:   out,
		manager:  session.NewManager(logger, cfg, loader.New(logger, host), deps.New(logger, host), sega.New(logger)),
		speaker:  output.NewSpeaker(speakerVolume),
	}, nil
}

// Manager returns the session manager shared by all executions.
func (p *Pipeline) Manager() *session.Manager {
	return p.manager
}

// Execute opens the input track and renders it to the output file or plays
// it on the audio device.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program) (Result, error) {
	det := p.detector.Detect(opts.Input)
	if det.Kind == detector.Library || det.Kind == detector.Archive {
		return Result{}, fmt.Errorf("%w: %s", ErrNotPlayable, opts.Input)
	}

	if err := p.prefetch(opts.Input); err != nil {
		return Result{}, err
	}

	pl, err := p.openPlayer(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	defer pl.Close()

	result := Result{
		StartFrame: pl.SamplesPlayed(),
		Total:      pl.TotalSamplesToPlay(),
	}

	app.PrintInfo(p.logger, opts, pl.Session())
	if opts.Dump {
		app.Dump(os.Stdout, pl.Session())
	}

	if opts.Play {
		result.Frames, err = p.play(ctx, pl)
	} else {
		result.Frames, err = p.render(ctx, pl, opts)
	}
	if err != nil {
		return result, err
	}
	if err := pl.Err(); err != nil {
		return result, fmt.Errorf("decoding: %w", err)
	}
	return result, nil
}

// prefetch copies the track into the cache, libraries follow on demand.
func (p *Pipeline) prefetch(name string) error {
	data, err := p.source.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading track: %w", err)
	}
	if err := p.host.Complete(name, data); err != nil {
		return fmt.Errorf("caching track: %w", err)
	}
	return nil
}

// openPlayer opens the track with a new player and applies the seek option.
func (p *Pipeline) openPlayer(ctx context.Context, opts options.Program) (*player.Player, error) {
	pl := player.New(p.logger, p.manager, nil, player.DefaultBlockFrames)
	if err := p.open(ctx, pl, opts.Input); err != nil {
		pl.Close()
		return nil, err
	}
	if err := seek(pl, opts.Seek); err != nil {
		pl.Close()
		return nil, err
	}
	return pl, nil
}

// open opens the track, fetching missing libraries between attempts.
func (p *Pipeline) open(ctx context.Context, pl *player.Player, name string) error {
	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		status := pl.Open(name)
		switch status {
		case player.StatusOK:
			return nil
		case player.StatusRetry:
		default:
			return fmt.Errorf("%s: %w", status.Message(), pl.Err())
		}

		fetched, err := p.host.FetchFrom(p.source)
		if err != nil {
			return fmt.Errorf("fetching libraries: %w", err)
		}
		p.logger.Debug("Waiting for track libraries",
			log.String("file", name),
			log.Int("attempt", attempt),
			log.Int("fetched", fetched))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("%w after %d attempts: %s", ErrOpenTimeout, maxOpenAttempts, name)
}

// seek moves the player to the position given as time code.
func seek(pl *player.Player, position string) error {
	if position == "" {
		return nil
	}
	ms, ok := timecode.Parse(position)
	if !ok {
		return fmt.Errorf("invalid seek time code: %s", position)
	}
	frame := int64(ms) * int64(pl.SampleRate()) / 1000
	if err := pl.SeekSample(frame); err != nil {
		return fmt.Errorf("seeking to %s: %w", position, err)
	}
	return nil
}

// render writes the track to the output WAV file and verifies it if
// requested.
func (p *Pipeline) render(ctx context.Context, pl *player.Player, opts options.Program) (int64, error) {
	frames, err := output.WriteWAVFile(ctx, p.output, opts.Output, pl, pl.SampleRate(), player.DefaultBlockFrames)
	if err != nil {
		return frames, fmt.Errorf("rendering: %w", err)
	}
	p.logger.Debug("Rendered track",
		log.String("output", opts.Output),
		log.String("duration", app.FormatDuration(frames, pl.SampleRate())))

	if !opts.Verify {
		return frames, nil
	}

	reference, err := p.openPlayer(ctx, opts)
	if err != nil {
		return frames, fmt.Errorf("opening reference decoder: %w", err)
	}
	defer reference.Close()

	if err := verification.VerifyOutput(ctx, p.logger, p.output, opts.Output, reference, pl.SampleRate()); err != nil {
		return frames, fmt.Errorf("verification failed: %w", err)
	}
	p.logger.Info("Verification successful")
	return frames, nil
}

// play plays the track on the audio device.
func (p *Pipeline) play(ctx context.Context, pl *player.Player) (int64, error) {
	r := stream.NewReader(ctx, pl, player.DefaultBlockFrames)
	start := pl.SamplesPlayed()
	progress := newProgress(os.Stderr, pl.SampleRate(), pl.TotalSamplesToPlay(), func() int64 {
		return start + r.Frames()
	})

	err := p.speaker.Play(ctx, r, pl.SampleRate(), progress.update)
	progress.finish()
	if err != nil {
		return r.Frames(), fmt.Errorf("playing: %w", err)
	}
	return r.Frames(), nil
}

// Package fileprocessor handles file listing and batch processing operations
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/mitchellh/go-homedir"
	"github.com/retroenv/segaxsf/internal/detector"
	"github.com/retroenv/segaxsf/internal/hostfs"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/pipeline"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// job is one track to process.
type job struct {
	pipeline *pipeline.Pipeline
	input    string
	output   string
}

// Processor runs the pipeline for all given files.
type Processor struct {
	logger   *log.Logger
	detector *detector.Detector
	playback options.Playback
	fs       afero.Fs // file system of inputs and outputs
}

// New returns a processor reading and writing files on fs.
func New(logger *log.Logger, playback options.Playback, fs afero.Fs) *Processor {
	return &Processor{
		logger:   logger,
		detector: detector.New(logger),
		playback: playback,
		fs:       fs,
	}
}

// NewOS returns a processor working on the operating system file system.
func NewOS(logger *log.Logger, playback options.Playback) *Processor {
	return New(logger, playback, afero.NewOsFs())
}

// ProcessFiles renders or plays all files. Tracks inside 7z archives are
// processed one by one. Up to opts.Jobs files are rendered in parallel, a
// failing file does not stop the others.
func (p *Processor) ProcessFiles(ctx context.Context, opts options.Program, files []string) error {
	jobs, err := p.createJobs(opts, files)
	if err != nil {
		return err
	}

	limit := opts.Jobs
	if opts.Play || limit < 1 {
		limit = 1
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	var failed atomic.Int32
	for _, j := range jobs {
		group.Go(func() error {
			jobOpts := opts
			jobOpts.Input = j.input
			jobOpts.Output = j.output

			if _, err := j.pipeline.Execute(ctx, jobOpts); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				failed.Add(1)
				p.logger.Error("Processing failed", log.String("file", j.input), log.Err(err))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(jobs))
	}
	return nil
}

// createJobs creates a job for every track, archives are mounted and
// expanded to their playable tracks.
func (p *Processor) createJobs(opts options.Program, files []string) ([]job, error) {
	direct, err := pipeline.New(p.logger, p.playback, p.fs, p.fs)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	var jobs []job
	for _, file := range files {
		if p.detector.Detect(file).Kind == detector.Archive {
			archiveJobs, err := p.archiveJobs(file)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, archiveJobs...)
			continue
		}

		output := opts.Output
		if len(files) > 1 || output == "" {
			output = GenerateOutputFilename(file)
		}
		input, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("resolving path '%s': %w", file, err)
		}
		jobs = append(jobs, job{pipeline: direct, input: filepath.ToSlash(input), output: output})
	}
	return jobs, nil
}

func (p *Processor) archiveJobs(archive string) ([]job, error) {
	source, names, err := hostfs.MountSevenZip(p.logger, p.fs, archive)
	if err != nil {
		return nil, fmt.Errorf("mounting archive: %w", err)
	}
	pipe, err := pipeline.New(p.logger, p.playback, source, p.fs)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	var jobs []job
	for _, name := range names {
		if !detector.IsPlayable(name) {
			continue
		}
		jobs = append(jobs, job{
			pipeline: pipe,
			input:    name,
			output:   ArchiveOutputFilename(archive, name),
		})
	}
	if len(jobs) == 0 {
		p.logger.Warn("Archive contains no playable tracks", log.String("archive", archive))
	}
	return jobs, nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		pattern, err := homedir.Expand(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("expanding batch pattern: %w", err)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}

	input, err := homedir.Expand(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("expanding input path: %w", err)
	}
	if opts.Output != "" {
		if opts.Output, err = homedir.Expand(opts.Output); err != nil {
			return nil, fmt.Errorf("expanding output path: %w", err)
		}
	}
	return []string{input}, nil
}

// GenerateOutputFilename generates output filename for a given input file
func GenerateOutputFilename(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return inputFile[:len(inputFile)-len(ext)] + ".wav"
}

// ArchiveOutputFilename generates the output filename for a track inside an
// archive, next to the archive and prefixed with its name.
func ArchiveOutputFilename(archive, track string) string {
	ext := filepath.Ext(archive)
	base := path.Base(track)
	base = strings.TrimSuffix(base, path.Ext(base))
	return archive[:len(archive)-len(ext)] + " - " + base + ".wav"
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("segaxsf", log.String("version", buildinfo.Version(version, commit, date)))
}

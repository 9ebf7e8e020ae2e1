// Package verification verifies that a rendered WAV file matches the track
// it was rendered from.
package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
	"github.com/retroenv/segaxsf/internal/stream"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

const (
	channels     = 2
	bitDepth     = 16
	compareBlock = 1024
	maxReported  = 10
)

// ErrInvalidFile is returned when the output is not a valid WAV file.
var ErrInvalidFile = errors.New("invalid WAV file")

// VerifyOutput decodes the named WAV file and compares it with the frames
// produced by reference, a freshly opened decoder of the same track.
func VerifyOutput(ctx context.Context, logger *log.Logger, fs afero.Fs, name string,
	reference stream.Source, sampleRate int) error {

	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("opening file '%s': %w", name, err)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: %s", ErrInvalidFile, name)
	}
	if err := checkFormat(dec, sampleRate); err != nil {
		return err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decoding WAV file '%s': %w", name, err)
	}

	expected, err := readAll(ctx, reference)
	if err != nil {
		return err
	}

	if err := checkBufferEqual(logger, expected, buf.Data); err != nil {
		return fmt.Errorf("sample data mismatch: %w", err)
	}
	return nil
}

func checkFormat(dec *wav.Decoder, sampleRate int) error {
	if int(dec.NumChans) != channels {
		return fmt.Errorf("channel count mismatch, expected %d but got %d", channels, dec.NumChans)
	}
	if int(dec.BitDepth) != bitDepth {
		return fmt.Errorf("bit depth mismatch, expected %d but got %d", bitDepth, dec.BitDepth)
	}
	if int(dec.SampleRate) != sampleRate {
		return fmt.Errorf("sample rate mismatch, expected %d but got %d", sampleRate, dec.SampleRate)
	}
	return nil
}

// readAll decodes the reference until the end of the track.
func readAll(ctx context.Context, src stream.Source) ([]int, error) {
	block := make([]int16, compareBlock*channels)
	var samples []int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := src.Read(block, compareBlock)
		if n < 0 {
			return samples, nil
		}
		for _, s := range block[:n*channels] {
			samples = append(samples, int(s))
		}
	}
}

func checkBufferEqual(logger *log.Logger, input, output []int) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched frame counts, %d != %d", len(input)/channels, len(output)/channels)
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < maxReported {
			logger.Error("Sample mismatch",
				log.Int("frame", i/channels),
				log.Int("expected", input[i]),
				log.Int("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d sample mismatches", diffs)
}

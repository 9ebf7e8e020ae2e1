// Package output writes decoded tracks to WAV files or plays them on the
// audio device.
package output

import (
	"context"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/retroenv/segaxsf/internal/stream"
	"github.com/spf13/afero"
)

const (
	channels = 2
	bitDepth = 16
	pcmTag   = 1
)

// WriteWAV decodes src until the end of the track and writes it as 16 bit
// stereo WAV. It returns the number of written frames.
func WriteWAV(ctx context.Context, w io.WriteSeeker, src stream.Source, sampleRate, blockFrames int) (int64, error) {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, pcmTag)

	samples := make([]int16, blockFrames*channels)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, 0, blockFrames*channels),
		SourceBitDepth: bitDepth,
	}

	var frames int64
	for {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()
			return frames, err
		}

		n := src.Read(samples, blockFrames)
		if n < 0 {
			break
		}

		buf.Data = buf.Data[:0]
		for _, s := range samples[:n*channels] {
			buf.Data = append(buf.Data, int(s))
		}
		if err := enc.Write(buf); err != nil {
			_ = enc.Close()
			return frames, fmt.Errorf("writing WAV data: %w", err)
		}
		frames += int64(n)
	}

	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("finishing WAV file: %w", err)
	}
	return frames, nil
}

// WriteWAVFile creates the named file and writes the track into it.
func WriteWAVFile(ctx context.Context, fs afero.Fs, name string, src stream.Source, sampleRate, blockFrames int) (int64, error) {
	f, err := fs.Create(name)
	if err != nil {
		return 0, fmt.Errorf("creating file '%s': %w", name, err)
	}

	frames, err := WriteWAV(ctx, f, src, sampleRate, blockFrames)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing file '%s': %w", name, closeErr)
	}
	return frames, err
}

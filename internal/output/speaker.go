package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	speakerLatency = 100 * time.Millisecond
	pollInterval   = 50 * time.Millisecond
)

// oto allows only one context per process.
var (
	otoCtx      *oto.Context
	otoRate     int
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext(sampleRate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   speakerLatency,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		otoRate = sampleRate
		<-readyChan
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("audio device opened with %d Hz, track needs %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Speaker plays PCM streams on the default audio device.
type Speaker struct {
	volume float64
}

// NewSpeaker returns a speaker with the given volume between 0 and 1.
func NewSpeaker(volume float64) *Speaker {
	return &Speaker{volume: volume}
}

// Play plays the signed 16 bit little endian stereo stream until it ends or
// the context is canceled. progress is called periodically and may be nil.
func (s *Speaker) Play(ctx context.Context, r io.Reader, sampleRate int, progress func()) error {
	c, err := ensureOtoContext(sampleRate)
	if err != nil {
		return fmt.Errorf("audio device not available: %w", err)
	}

	player := c.NewPlayer(r)
	defer func() { _ = player.Close() }()
	player.SetBufferSize(sampleRate * channels * bitDepth / 8 / 5)
	player.SetVolume(s.volume)
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if progress != nil {
				progress()
			}
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("playing audio: %w", err)
	}
	return nil
}

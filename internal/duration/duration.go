// Package duration converts tag durations to sample counts and shapes the
// linear fade out at the end of a track.
package duration

// Recompute converts song and fade milliseconds to sample counts at the
// given sample rate.
func Recompute(songMs, fadeMs uint32, sampleRate int) (songLen, fadeLen int64) {
	songLen = int64(songMs) * int64(sampleRate) / 1000
	fadeLen = int64(fadeMs) * int64(sampleRate) / 1000
	return songLen, fadeLen
}

// Model holds the duration state of a session.
type Model struct {
	SongMs uint32
	FadeMs uint32

	SongLen int64
	FadeLen int64

	NoLoop bool
}

// SetTags stores the tag durations. If no song length was tagged, the
// configured defaults replace both the length and the fade.
func (m *Model) SetTags(songMs, fadeMs, defaultLength, defaultFade uint32) {
	if songMs == 0 {
		songMs = defaultLength
		fadeMs = defaultFade
	}
	m.SongMs = songMs
	m.FadeMs = fadeMs
}

// Recompute updates the sample counts from the stored milliseconds.
func (m *Model) Recompute(sampleRate int) {
	m.SongLen, m.FadeLen = Recompute(m.SongMs, m.FadeMs, sampleRate)
}

// Total returns the number of samples of the track including the fade.
func (m *Model) Total() int64 {
	return m.SongLen + m.FadeLen
}

// Limited returns whether the track has a fixed duration.
func (m *Model) Limited() bool {
	return m.NoLoop && m.SongMs != 0
}

// Reached returns whether written samples cover the complete duration.
func (m *Model) Reached(written int64) bool {
	return m.Limited() && written >= m.Total()
}

// Apply shapes the interleaved stereo frames in buf that start at the
// absolute frame index start. Frames before the song end pass unchanged,
// frames inside the fade window are scaled linearly towards silence and
// frames after the fade are zeroed.
func (m *Model) Apply(buf []int16, start int64) {
	if !m.Limited() {
		return
	}
	frames := int64(len(buf) / 2)
	if start+frames <= m.SongLen {
		return
	}

	end := m.SongLen + m.FadeLen
	for i := range frames {
		n := start + i
		switch {
		case n < m.SongLen:
			continue
		case n < end:
			remaining := end - n
			buf[i*2] = scale(buf[i*2], remaining, m.FadeLen)
			buf[i*2+1] = scale(buf[i*2+1], remaining, m.FadeLen)
		default:
			buf[i*2] = 0
			buf[i*2+1] = 0
		}
	}
}

func scale(sample int16, num, den int64) int16 {
	return int16(int64(sample) * num / den)
}

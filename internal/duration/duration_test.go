package duration

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestRecompute(t *testing.T) {
	songLen, fadeLen := Recompute(5000, 1000, 44100)
	assert.Equal(t, int64(220500), songLen)
	assert.Equal(t, int64(44100), fadeLen)

	songLen, fadeLen = Recompute(0, 0, 44100)
	assert.Equal(t, int64(0), songLen)
	assert.Equal(t, int64(0), fadeLen)
}

func TestSetTagsDefaults(t *testing.T) {
	var m Model
	m.SetTags(0, 3000, 170000, 10000)
	assert.Equal(t, uint32(170000), m.SongMs)
	assert.Equal(t, uint32(10000), m.FadeMs)

	m.SetTags(60000, 0, 170000, 10000)
	assert.Equal(t, uint32(60000), m.SongMs)
	assert.Equal(t, uint32(0), m.FadeMs)
}

func TestApply(t *testing.T) {
	m := Model{SongMs: 5000, FadeMs: 1000, NoLoop: true}
	m.Recompute(44100)

	const amplitude = 10000
	frames := func(n int) []int16 {
		buf := make([]int16, n*2)
		for i := range buf {
			buf[i] = amplitude
		}
		return buf
	}

	t.Run("before song end unchanged", func(t *testing.T) {
		buf := frames(16)
		m.Apply(buf, m.SongLen-16)
		for _, v := range buf {
			assert.Equal(t, int16(amplitude), v)
		}
	})

	t.Run("half way through fade", func(t *testing.T) {
		buf := frames(1)
		m.Apply(buf, m.SongLen+m.FadeLen/2)
		assert.Equal(t, int16(amplitude/2), buf[0])
		assert.Equal(t, int16(amplitude/2), buf[1])
	})

	t.Run("fade start keeps full level", func(t *testing.T) {
		buf := frames(1)
		m.Apply(buf, m.SongLen)
		assert.Equal(t, int16(amplitude), buf[0])
	})

	t.Run("after fade is silent", func(t *testing.T) {
		buf := frames(8)
		m.Apply(buf, m.SongLen+m.FadeLen)
		for _, v := range buf {
			assert.Equal(t, int16(0), v)
		}
	})

	t.Run("block spanning the fade end", func(t *testing.T) {
		short := Model{SongMs: 1000, FadeMs: 1000, NoLoop: true}
		short.Recompute(4)
		buf := frames(4)
		short.Apply(buf, 6)
		assert.Equal(t, int16(amplitude/2), buf[0])
		assert.Equal(t, int16(amplitude/4), buf[2])
		assert.Equal(t, int16(0), buf[4])
		assert.Equal(t, int16(0), buf[7])
	})

	t.Run("looping leaves samples untouched", func(t *testing.T) {
		looping := m
		looping.NoLoop = false
		buf := frames(4)
		looping.Apply(buf, m.SongLen+m.FadeLen)
		assert.Equal(t, int16(amplitude), buf[0])
	})
}

func TestReached(t *testing.T) {
	m := Model{SongMs: 1000, FadeMs: 0, NoLoop: true}
	m.Recompute(1000)
	assert.False(t, m.Reached(999))
	assert.True(t, m.Reached(1000))

	var untimed Model
	untimed.NoLoop = true
	assert.False(t, untimed.Reached(1 << 40))
}

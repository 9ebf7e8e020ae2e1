package timecode

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
		ok    bool
	}{
		{input: "5", want: 5000, ok: true},
		{input: "1:05", want: 65000, ok: true},
		{input: "1:02:03", want: 3723000, ok: true},
		{input: "1:02:03.456", want: 3723456, ok: true},
		{input: "2:30.5", want: 150500, ok: true},
		{input: "2:30,25", want: 150250, ok: true},
		{input: "0.007", want: 7, ok: true},
		{input: "10.12345", want: 10123, ok: true},
		{input: "3.", want: 3000, ok: true},
		{input: "00:00", want: 0, ok: true},
		{input: "", ok: false},
		{input: "1:3O", ok: false},
		{input: " 1:30", ok: false},
		{input: "-5", ok: false},
		{input: "1m30s", ok: false},
		{input: "4294967.295", want: 4294967295, ok: true},
		{input: "1193:02:47.295", want: 4294967295, ok: true},
		{input: "1193:02:47.296", ok: false},
		{input: "99999999999", ok: false},
		{input: "99999999999999999999999:00", ok: false},
		{input: "5000:00:00", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for h := uint32(0); h < 3; h++ {
		for m := uint32(0); m < 60; m += 7 {
			for s := uint32(0); s < 60; s += 13 {
				for ms := uint32(0); ms < 1000; ms += 111 {
					text := format(h, m, s, ms)
					got, ok := Parse(text)
					assert.True(t, ok, text)
					assert.Equal(t, h*3600000+m*60000+s*1000+ms, got, text)
				}
			}
		}
	}
}

func format(h, m, s, ms uint32) string {
	digits := func(v uint32, n int) string {
		b := make([]byte, n)
		for i := n - 1; i >= 0; i-- {
			b[i] = byte('0' + v%10)
			v /= 10
		}
		return string(b)
	}
	return digits(h, 2) + ":" + digits(m, 2) + ":" + digits(s, 2) + "." + digits(ms, 3)
}

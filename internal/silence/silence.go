package silence

// LeadingSilence returns the number of leading stereo frames of samples in
// which both channels are zero.
func LeadingSilence(samples []int16) int {
	frames := len(samples) / 2
	for i := range frames {
		if samples[i*2] != 0 || samples[i*2+1] != 0 {
			return i
		}
	}
	return frames
}

// Capacity returns the ring buffer size in samples for a trailing silence
// threshold in seconds.
func Capacity(seconds, sampleRate int) int {
	return seconds * sampleRate * 2
}

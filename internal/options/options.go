// Package options contains the program options.
package options

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"input SSF/DSF file or .7z set"`
	Output string `flag:"o" usage:"output .wav file (default: input name with .wav)"`
	Batch  string `flag:"batch" usage:"batch process files matching pattern (e.g. *.minissf)"`
}

// Flags contains behavior options.
type Flags struct {
	Play    bool   `flag:"play" usage:"play through the audio device instead of rendering"`
	Jobs    int    `flag:"jobs" usage:"number of files rendered in parallel" default:"1"`
	Seek    string `flag:"seek" usage:"start position as time code (e.g. 1:30)"`
	Charset string `flag:"charset" usage:"charset of tags without utf8 marker: windows-1252, shift-jis, utf-8" default:"windows-1252"`
	Verify  bool   `flag:"verify" usage:"verify the rendered WAV file"`
	Dump    bool   `flag:"dump" usage:"dump the parsed track information"`
	Debug   bool   `flag:"debug" usage:"enable debug logging"`
	Quiet   bool   `flag:"q" usage:"quiet mode"`
}

// PlaybackFlags contains the duration and silence options.
type PlaybackFlags struct {
	Length           string `flag:"length" usage:"default length for untagged tracks as time code" default:"2:50"`
	Fade             string `flag:"fade" usage:"default fade for untagged tracks as time code" default:"10"`
	SkipStartSilence bool   `flag:"skip-start-silence" usage:"skip silence at the start of a track"`
	NoTrimSilence    bool   `flag:"no-trim-silence" usage:"do not end tracks on long trailing silence"`
	SilenceSeconds   int    `flag:"silence-seconds" usage:"seconds of silence that end a track" default:"5"`
}

// Program options of the player.
type Program struct {
	Parameters
	Flags
	PlaybackFlags
}

// Playback defines options to control a decode session.
type Playback struct {
	DefaultLengthMs    uint32 // length used when a track has no length tag
	DefaultFadeMs      uint32 // fade used when a track has no length tag
	SkipOpeningSilence bool
	SuppressEndSilence bool
	EndSilenceSeconds  int
	Charset            string // legacy charset of tags without utf8 marker

	Dry        bool // direct output of the sound chip
	DSP        bool // effect DSP output
	DSPDynarec bool
}

// Package tags interprets the tag block of a track: duration, fade,
// libraries, text encoding and metadata.
package tags

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/retroenv/segaxsf/internal/timecode"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// Supported legacy charsets for tags without the utf8 marker.
const (
	CharsetWindows1252 = "windows-1252"
	CharsetShiftJIS    = "shift-jis"
	CharsetUTF8        = "utf-8"
)

var (
	// ErrUnknownDirective is returned for unknown tags starting with an
	// underscore, these are required by the format.
	ErrUnknownDirective = errors.New("unknown required tag")
	// ErrUnknownCharset is returned for unsupported charset names.
	ErrUnknownCharset = errors.New("unknown charset")
)

// Pair is a metadata key value pair.
type Pair struct {
	Key   string
	Value string
}

// MetaSink receives every accepted tag after transcoding.
type MetaSink interface {
	SetMeta(key, value string)
}

// State collects the tags of a track.
type State struct {
	SongMs uint32
	FadeMs uint32
	UTF8   bool
	Libs   []string

	replayGain map[string]string
	meta       []Pair
	all        []Pair
}

// NewState returns an empty tag state.
func NewState() *State {
	return &State{
		replayGain: map[string]string{},
	}
}

// Consume processes one tag. Tags are matched case insensitively.
func (s *State) Consume(key, value string) error {
	lower := strings.ToLower(key)

	switch {
	case lower == "game":
		key = "album"
		s.meta = append(s.meta, Pair{Key: key, Value: value})

	case lower == "year":
		key = "date"
		s.meta = append(s.meta, Pair{Key: key, Value: value})

	case strings.HasPrefix(lower, "replaygain_"):
		s.replayGain[lower] = value

	case lower == "length":
		if ms, ok := timecode.Parse(value); ok {
			s.SongMs = ms
		}

	case lower == "fade":
		if ms, ok := timecode.Parse(value); ok {
			s.FadeMs = ms
		}

	case lower == "utf8":
		s.UTF8 = true

	case strings.HasPrefix(lower, "_lib"):
		s.Libs = append(s.Libs, value)

	case strings.HasPrefix(lower, "_"):
		return fmt.Errorf("%w: %s", ErrUnknownDirective, key)

	default:
		s.meta = append(s.meta, Pair{Key: key, Value: value})
	}

	s.all = append(s.all, Pair{Key: key, Value: value})
	return nil
}

// Finish transcodes the collected text from the legacy charset unless the
// track is marked as UTF-8 and forwards every tag to the sink.
func (s *State) Finish(charset string, sink MetaSink) error {
	if !s.UTF8 {
		dec, err := Decoder(charset)
		if err != nil {
			return err
		}
		if dec != nil {
			if err := transcode(dec, s.meta); err != nil {
				return err
			}
			if err := transcode(dec, s.all); err != nil {
				return err
			}
		}
	}

	if sink != nil {
		for _, pair := range s.all {
			sink.SetMeta(pair.Key, pair.Value)
		}
	}
	return nil
}

// Meta returns the metadata tags in file order.
func (s *State) Meta() []Pair {
	return s.meta
}

// ReplayGain returns the replay gain tags sorted by key.
func (s *State) ReplayGain() []Pair {
	pairs := make([]Pair, 0, len(s.replayGain))
	for key, value := range s.replayGain {
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key < pairs[j].Key
	})
	return pairs
}

// Info returns the common metadata fields. The title falls back to the game
// name, then to the file name without extension.
func (s *State) Info(fileName string) Info {
	var info Info
	for _, pair := range s.meta {
		switch strings.ToLower(pair.Key) {
		case "title":
			info.Title = pair.Value
		case "artist":
			info.Artist = pair.Value
		case "album":
			info.Game = pair.Value
		case "date":
			info.Year = pair.Value
		case "genre":
			info.Genre = pair.Value
		case "copyright":
			info.Copyright = pair.Value
		case "psfby", "ssfby", "dsfby":
			info.PSFBy = pair.Value
		case "comment":
			info.Comment = pair.Value
		}
	}

	if info.Title == "" {
		info.Title = info.Game
	}
	if info.Title == "" {
		base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
		info.Title = strings.TrimSuffix(base, path.Ext(base))
	}
	info.SongMs = s.SongMs
	info.FadeMs = s.FadeMs
	return info
}

// Info contains the common metadata of a track.
type Info struct {
	Title     string
	Artist    string
	Game      string
	Year      string
	Genre     string
	Copyright string
	PSFBy     string
	Comment   string
	SongMs    uint32
	FadeMs    uint32
}

// Decoder returns the decoder for a charset name, nil for UTF-8.
func Decoder(charset string) (*encoding.Decoder, error) {
	switch strings.ToLower(charset) {
	case "", CharsetWindows1252, "cp1252", "ansi":
		return charmap.Windows1252.NewDecoder(), nil
	case CharsetShiftJIS, "sjis", "shift_jis":
		return japanese.ShiftJIS.NewDecoder(), nil
	case CharsetUTF8, "utf8":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, charset)
	}
}

func transcode(dec *encoding.Decoder, pairs []Pair) error {
	for i := range pairs {
		value, err := dec.String(pairs[i].Value)
		if err != nil {
			return fmt.Errorf("transcoding tag '%s': %w", pairs[i].Key, err)
		}
		pairs[i].Value = value
	}
	return nil
}

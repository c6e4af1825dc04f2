package quality

import (
	"fmt"
	"strings"

	"media-fetch-tg/internal/types"
)

const (
	cbTopic     = "quality"
	cbDelimiter = ":"

	// How much of the URL is carried inside a callback token. Callback data
	// is size-bounded, so the token holds a prefix only and the
	// authoritative URL must be recovered from session state.
	urlPrefixLen = 50

	AudioPreset = "audio"
	BestPreset  = "best"
)

// Video presets in keyboard order; audio is appended as its own row.
var videoPresets = []string{"180p", "240p", "360p", "480p", "720p", "1080p", "1440p", "4k", BestPreset}

var presetHeights = map[string]int{
	"180p":  180,
	"240p":  240,
	"360p":  360,
	"480p":  480,
	"720p":  720,
	"1080p": 1080,
	"1440p": 1440,
	"4k":    2160,
}

// Selection is a decoded user choice: a capped video resolution,
// uncapped best-available or audio-only.
type Selection struct {
	// Preset is the raw vocabulary token, e.g. "720p".
	Preset string
	// Height is the vertical resolution cap, 0 when uncapped.
	Height int
	Audio  bool
}

func (s Selection) MediaType() types.MediaType {
	if s.Audio {
		return types.AudioMediaType
	}
	return types.VideoMediaType
}

func (s Selection) Format() string {
	if s.Audio {
		return "mp3"
	}
	return "mp4"
}

type Option struct {
	Label string
	Token string
}

// Options returns the selectable presets for a URL in keyboard order:
// all video presets followed by the audio-only option.
func Options(url string) []Option {
	options := make([]Option, 0, len(videoPresets)+1)
	for _, preset := range videoPresets {
		options = append(options, Option{Label: preset, Token: EncodeToken(preset, url)})
	}
	options = append(options, Option{Label: "Audio Only (MP3)", Token: EncodeToken(AudioPreset, url)})
	return options
}

// EncodeToken packs a preset and a truncated URL into callback data.
func EncodeToken(preset, url string) string {
	if len(url) > urlPrefixLen {
		url = url[:urlPrefixLen]
	}
	return cbTopic + cbDelimiter + preset + cbDelimiter + url
}

// IsToken reports whether callback data belongs to the quality topic.
func IsToken(data string) bool {
	return strings.HasPrefix(data, cbTopic+cbDelimiter)
}

// DecodeToken decodes callback data back into a selection. The URL part of
// the token is truncated and therefore not returned; callers must resolve
// the authoritative URL from session state.
func DecodeToken(data string) (Selection, error) {
	parts := strings.SplitN(data, cbDelimiter, 3)
	if len(parts) != 3 || parts[0] != cbTopic {
		return Selection{}, fmt.Errorf("malformed callback data %q: %w", data, types.ErrInvalidSelection)
	}
	preset := parts[1]
	switch preset {
	case AudioPreset:
		return Selection{Preset: preset, Audio: true}, nil
	case BestPreset:
		return Selection{Preset: preset}, nil
	}
	height, ok := presetHeights[preset]
	if !ok {
		return Selection{}, fmt.Errorf("unknown preset %q: %w", preset, types.ErrInvalidSelection)
	}
	return Selection{Preset: preset, Height: height}, nil
}

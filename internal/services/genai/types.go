package genai

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// Mode selects the output modality of a request.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// InlineData is a decoded binary part exchanged with the service.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Empty reports whether the part carries no bytes.
func (d InlineData) Empty() bool {
	return len(d.Data) == 0
}

// SpeakerVoice maps a dialogue speaker label to a prebuilt voice.
type SpeakerVoice struct {
	Speaker string
	Voice   string
}

// GenerationConfig carries the per-mode knobs of a request. Fields that do not
// apply to the request mode are ignored.
type GenerationConfig struct {
	Resolution       string
	AspectRatio      string
	DurationSeconds  int
	Voice            string
	Speakers         []SpeakerVoice
	LanguageCode     string // speech only; BCP-47, empty lets the model detect
	ResponseMIMEType string
	ReferenceImages  []InlineData
}

// Request is the uniform input for every generation call.
type Request struct {
	Mode   Mode
	Prompt string
	Config GenerationConfig
}

// Response is the decoded result of a generateContent call.
type Response struct {
	Text         string
	Inline       *InlineData
	FinishReason string
	Raw          []byte
}

// Operation is a handle for a long-running video generation.
type Operation struct {
	Name     string
	Done     bool
	VideoURI string
	Error    string
}

// PCMFormat describes raw PCM audio returned by the speech model.
type PCMFormat struct {
	SampleFormat string // ffmpeg -f value
	SampleRate   int
	Channels     int
}

const (
	defaultPCMRate     = 24000
	defaultPCMChannels = 1
)

// ParsePCMFormat parses a mime type such as "audio/L16;codec=pcm;rate=24000".
// The speech model emits little-endian samples regardless of the L16 label.
func ParsePCMFormat(mimeType string) (PCMFormat, error) {
	mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		return PCMFormat{}, fmt.Errorf("parse audio mime %q: %w", mimeType, err)
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType != "audio/l16" && mediaType != "audio/pcm" {
		return PCMFormat{}, fmt.Errorf("unsupported audio mime %q", mimeType)
	}
	format := PCMFormat{SampleFormat: "s16le", SampleRate: defaultPCMRate, Channels: defaultPCMChannels}
	if raw := params["rate"]; raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil || rate <= 0 {
			return PCMFormat{}, fmt.Errorf("invalid sample rate %q", raw)
		}
		format.SampleRate = rate
	}
	if raw := params["channels"]; raw != "" {
		channels, err := strconv.Atoi(raw)
		if err != nil || channels <= 0 {
			return PCMFormat{}, fmt.Errorf("invalid channel count %q", raw)
		}
		format.Channels = channels
	}
	return format, nil
}

package ffmpeg

import (
	"context"
	"errors"
	"strconv"
)

// PCMInput describes a raw PCM file.
type PCMInput struct {
	Path         string
	SampleFormat string
	SampleRate   int
	Channels     int
}

// TranscodePCM encodes raw PCM into the configured compressed audio codec.
func (t *Tool) TranscodePCM(ctx context.Context, in PCMInput, output string) error {
	if in.Path == "" || output == "" {
		return errors.New("transcode: input and output paths are required")
	}
	if in.SampleFormat == "" {
		in.SampleFormat = "s16le"
	}
	if in.SampleRate <= 0 || in.Channels <= 0 {
		return errors.New("transcode: sample rate and channels must be positive")
	}
	return t.exec(ctx, "transcode", output, t.transcodeArgs(in, output))
}

func (t *Tool) transcodeArgs(in PCMInput, output string) []string {
	return []string{
		"-f", in.SampleFormat,
		"-ar", strconv.Itoa(in.SampleRate),
		"-ac", strconv.Itoa(in.Channels),
		"-i", in.Path,
		"-c:a", t.settings.AudioCodec,
		"-b:a", t.settings.AudioBitrate,
		output,
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGenerative()
	c.normalizeObjectStore()
	c.normalizeMedia()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("LESSONMEDIA_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeGenerative() {
	g := &c.Generative
	g.APIKey = strings.TrimSpace(g.APIKey)
	if g.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			g.APIKey = strings.TrimSpace(value)
		}
	}
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.BaseURL == "" {
		g.BaseURL = defaultGenerativeBaseURL
	}
	g.TextModel = defaultString(g.TextModel, defaultTextModel)
	g.ImageModel = defaultString(g.ImageModel, defaultImageModel)
	g.SpeechModel = defaultString(g.SpeechModel, defaultSpeechModel)
	g.VideoModel = defaultString(g.VideoModel, defaultVideoModel)
	g.Voice = defaultString(g.Voice, defaultVoice)
	g.VideoResolution = defaultString(g.VideoResolution, defaultVideoResolution)
	g.VideoAspectRatio = defaultString(g.VideoAspectRatio, defaultVideoAspectRatio)

	voices := make([]string, 0, len(g.DialogueVoices))
	for _, voice := range g.DialogueVoices {
		if trimmed := strings.TrimSpace(voice); trimmed != "" {
			voices = append(voices, trimmed)
		}
	}
	if len(voices) == 0 {
		voices = append(voices, defaultDialogueVoices...)
	}
	g.DialogueVoices = voices
}

func (c *Config) normalizeObjectStore() {
	s := &c.ObjectStore
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Bucket = strings.TrimSpace(s.Bucket)
	s.PublicBaseURL = strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
	if s.AccessKey == "" {
		if value, ok := os.LookupEnv("LESSONMEDIA_S3_ACCESS_KEY"); ok {
			s.AccessKey = strings.TrimSpace(value)
		}
	}
	if s.SecretKey == "" {
		if value, ok := os.LookupEnv("LESSONMEDIA_S3_SECRET_KEY"); ok {
			s.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeMedia() {
	m := &c.Media
	m.FFmpegBinary = defaultString(m.FFmpegBinary, defaultFFmpegBinary)
	m.FFprobeBinary = defaultString(m.FFprobeBinary, defaultFFprobeBinary)
	m.DefaultFont = defaultString(m.DefaultFont, defaultFont)
	m.CanvasColor = defaultString(m.CanvasColor, defaultCanvasColor)
	m.AudioCodec = defaultString(m.AudioCodec, defaultAudioCodec)
	m.AudioBitrate = defaultString(m.AudioBitrate, defaultAudioBitrate)
	fonts := m.FontCandidates[:0]
	for _, font := range m.FontCandidates {
		if trimmed := strings.TrimSpace(font); trimmed != "" {
			if expanded, err := expandPath(trimmed); err == nil {
				trimmed = expanded
			}
			fonts = append(fonts, trimmed)
		}
	}
	m.FontCandidates = fonts
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.NATSURL = strings.TrimSpace(c.Notifications.NATSURL)
	c.Notifications.NATSSubject = defaultString(c.Notifications.NATSSubject, defaultNATSSubject)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, database, and bind address configuration.
type Paths struct {
	StagingDir   string `toml:"staging_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Generative contains connection and model settings for the generative-media service.
type Generative struct {
	APIKey               string   `toml:"api_key"`
	BaseURL              string   `toml:"base_url"`
	TextModel            string   `toml:"text_model"`
	ImageModel           string   `toml:"image_model"`
	SpeechModel          string   `toml:"speech_model"`
	VideoModel           string   `toml:"video_model"`
	TimeoutSeconds       int      `toml:"timeout_seconds"`
	PollIntervalSeconds  int      `toml:"poll_interval_seconds"`
	PollTimeoutSeconds   int      `toml:"poll_timeout_seconds"` // 0 disables the bound
	Voice                string   `toml:"voice"`
	DialogueVoices       []string `toml:"dialogue_voices"`
	VideoResolution      string   `toml:"video_resolution"`
	VideoAspectRatio     string   `toml:"video_aspect_ratio"`
	VideoDurationSeconds int      `toml:"video_duration_seconds"`
}

// ObjectStore contains S3-compatible upload settings.
type ObjectStore struct {
	Endpoint      string `toml:"endpoint"`
	Bucket        string `toml:"bucket"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	UseSSL        bool   `toml:"use_ssl"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Media contains ffmpeg binaries, fonts, and composite layout.
type Media struct {
	FFmpegBinary   string   `toml:"ffmpeg_binary"`
	FFprobeBinary  string   `toml:"ffprobe_binary"`
	FontCandidates []string `toml:"font_candidates"`
	DefaultFont    string   `toml:"default_font"`
	CanvasWidth    int      `toml:"canvas_width"`
	CanvasHeight   int      `toml:"canvas_height"`
	CanvasColor    string   `toml:"canvas_color"`
	FrameRate      int      `toml:"frame_rate"`
	ImageSize      int      `toml:"image_size"`
	ImageX         int      `toml:"image_x"`
	ImageY         int      `toml:"image_y"`
	TextX          int      `toml:"text_x"`
	TitleY         int      `toml:"title_y"`
	TitleFontSize  int      `toml:"title_font_size"`
	BulletY        int      `toml:"bullet_y"`
	BulletSpacing  int      `toml:"bullet_spacing"`
	BulletFontSize int      `toml:"bullet_font_size"`
	AudioCodec     string   `toml:"audio_codec"`
	AudioBitrate   string   `toml:"audio_bitrate"`
}

// Workflow contains per-job pipeline behaviour.
type Workflow struct {
	RetainScratch     bool `toml:"retain_scratch"`
	StaleScratchHours int  `toml:"stale_scratch_hours"`
	SlideMaxSeconds   int  `toml:"slide_max_seconds"`
}

// Cinematic contains settings for cinematic-video jobs.
type Cinematic struct {
	SceneCount int `toml:"scene_count"`
	// Caption only takes effect when the stitch falls back to re-encoding.
	Caption bool `toml:"caption"`
}

// Slideshow contains settings for slideshow-video jobs.
type Slideshow struct {
	MaxSlides  int `toml:"max_slides"`
	MaxBullets int `toml:"max_bullets"`
}

// Story contains settings for illustrated-story jobs.
type Story struct {
	MaxPages  int  `toml:"max_pages"`
	Narration bool `toml:"narration"`
}

// Notifications contains configuration for ntfy and NATS job events.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NATSURL        string `toml:"nats_url"`
	NATSSubject    string `toml:"nats_subject"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lessonmedia.
//
// Configuration sections by subsystem:
//   - Paths: scratch, logs, metadata database, and API bind address
//   - Generative: model selection, polling bounds, and voices
//   - ObjectStore: artifact bucket and public URL base
//   - Media: ffmpeg binaries, fonts, and composite layout
//   - Workflow: scratch retention and slide duration cap
//   - Cinematic, Slideshow, Story: per-kind manifest bounds
//   - Notifications: ntfy and NATS job events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generative    Generative    `toml:"generative"`
	ObjectStore   ObjectStore   `toml:"object_store"`
	Media         Media         `toml:"media"`
	Workflow      Workflow      `toml:"workflow"`
	Cinematic     Cinematic     `toml:"cinematic"`
	Slideshow     Slideshow     `toml:"slideshow"`
	Story         Story         `toml:"story"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lessonmedia.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir}
	if c.Paths.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.DatabasePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// GenerativeTimeout bounds a single request to the generative service.
func (c *Config) GenerativeTimeout() time.Duration {
	return time.Duration(c.Generative.TimeoutSeconds) * time.Second
}

// PollInterval is the delay between long-running operation polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Generative.PollIntervalSeconds) * time.Second
}

// PollTimeout bounds total polling time for one operation. Zero means unbounded.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Generative.PollTimeoutSeconds) * time.Second
}

// StaleScratchAge is the minimum age before an orphaned scratch directory is swept.
func (c *Config) StaleScratchAge() time.Duration {
	return time.Duration(c.Workflow.StaleScratchHours) * time.Hour
}

// SlideMaxDuration caps a single rendered slide.
func (c *Config) SlideMaxDuration() time.Duration {
	return time.Duration(c.Workflow.SlideMaxSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGenerative(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerative() error {
	if c.Generative.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("generative.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'lessonmedia config init')", defaultPath)
	}
	if err := ensurePositiveMap(map[string]int{
		"generative.timeout_seconds":        c.Generative.TimeoutSeconds,
		"generative.poll_interval_seconds":  c.Generative.PollIntervalSeconds,
		"generative.video_duration_seconds": c.Generative.VideoDurationSeconds,
	}); err != nil {
		return err
	}
	if c.Generative.PollTimeoutSeconds < 0 {
		return errors.New("generative.poll_timeout_seconds must be zero (unbounded) or positive")
	}
	if c.Generative.PollTimeoutSeconds > 0 && c.Generative.PollTimeoutSeconds < c.Generative.PollIntervalSeconds {
		return errors.New("generative.poll_timeout_seconds must be at least generative.poll_interval_seconds")
	}
	if len(c.Generative.DialogueVoices) < 2 {
		return errors.New("generative.dialogue_voices must name at least two voices")
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	if c.ObjectStore.Endpoint == "" {
		return errors.New("object_store.endpoint must be set")
	}
	if c.ObjectStore.Bucket == "" {
		return errors.New("object_store.bucket must be set")
	}
	return nil
}

func (c *Config) validateMedia() error {
	return ensurePositiveMap(map[string]int{
		"media.canvas_width":     c.Media.CanvasWidth,
		"media.canvas_height":    c.Media.CanvasHeight,
		"media.frame_rate":       c.Media.FrameRate,
		"media.image_size":       c.Media.ImageSize,
		"media.title_font_size":  c.Media.TitleFontSize,
		"media.bullet_font_size": c.Media.BulletFontSize,
		"media.bullet_spacing":   c.Media.BulletSpacing,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.slide_max_seconds":    c.Workflow.SlideMaxSeconds,
		"workflow.stale_scratch_hours":  c.Workflow.StaleScratchHours,
		"cinematic.scene_count":         c.Cinematic.SceneCount,
		"slideshow.max_slides":          c.Slideshow.MaxSlides,
		"slideshow.max_bullets":         c.Slideshow.MaxBullets,
		"story.max_pages":               c.Story.MaxPages,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

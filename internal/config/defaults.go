package config

const (
	defaultConfigPath           = "~/.config/lessonmedia/config.toml"
	defaultStagingDir           = "~/.local/share/lessonmedia/staging"
	defaultLogDir               = "~/.local/share/lessonmedia/logs"
	defaultDatabasePath         = "~/.local/share/lessonmedia/lessonmedia.db"
	defaultAPIBind              = "127.0.0.1:7590"
	defaultGenerativeBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel            = "gemini-2.5-flash"
	defaultImageModel           = "gemini-2.5-flash-image"
	defaultSpeechModel          = "gemini-2.5-flash-preview-tts"
	defaultVideoModel           = "veo-3.0-generate-001"
	defaultGenerativeTimeout    = 120
	defaultPollInterval         = 10
	defaultPollTimeout          = 900
	defaultVoice                = "Kore"
	defaultVideoResolution      = "720p"
	defaultVideoAspectRatio     = "16:9"
	defaultVideoDurationSeconds = 8
	defaultObjectStoreEndpoint  = "localhost:9000"
	defaultObjectStoreBucket    = "lessonmedia"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultFont                 = "Sans"
	defaultCanvasWidth          = 1920
	defaultCanvasHeight         = 1080
	defaultCanvasColor          = "0x0F172A"
	defaultFrameRate            = 30
	defaultImageSize            = 720
	defaultImageX               = 100
	defaultImageY               = 180
	defaultTextX                = 900
	defaultTitleY               = 200
	defaultTitleFontSize        = 56
	defaultBulletY              = 340
	defaultBulletSpacing        = 80
	defaultBulletFontSize       = 36
	defaultAudioCodec           = "libmp3lame"
	defaultAudioBitrate         = "128k"
	defaultStaleScratchHours    = 24
	defaultSlideMaxSeconds      = 30
	defaultSceneCount           = 4
	defaultMaxSlides            = 8
	defaultMaxBullets           = 4
	defaultMaxPages             = 8
	defaultNotifyTimeout        = 10
	defaultNATSSubject          = "lessonmedia.jobs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var (
	defaultDialogueVoices = []string{"Kore", "Puck"}
	defaultFontCandidates = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
	}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
			APIBind:      defaultAPIBind,
		},
		Generative: Generative{
			BaseURL:              defaultGenerativeBaseURL,
			TextModel:            defaultTextModel,
			ImageModel:           defaultImageModel,
			SpeechModel:          defaultSpeechModel,
			VideoModel:           defaultVideoModel,
			TimeoutSeconds:       defaultGenerativeTimeout,
			PollIntervalSeconds:  defaultPollInterval,
			PollTimeoutSeconds:   defaultPollTimeout,
			Voice:                defaultVoice,
			DialogueVoices:       append([]string(nil), defaultDialogueVoices...),
			VideoResolution:      defaultVideoResolution,
			VideoAspectRatio:     defaultVideoAspectRatio,
			VideoDurationSeconds: defaultVideoDurationSeconds,
		},
		ObjectStore: ObjectStore{
			Endpoint: defaultObjectStoreEndpoint,
			Bucket:   defaultObjectStoreBucket,
		},
		Media: Media{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			FontCandidates: append([]string(nil), defaultFontCandidates...),
			DefaultFont:    defaultFont,
			CanvasWidth:    defaultCanvasWidth,
			CanvasHeight:   defaultCanvasHeight,
			CanvasColor:    defaultCanvasColor,
			FrameRate:      defaultFrameRate,
			ImageSize:      defaultImageSize,
			ImageX:         defaultImageX,
			ImageY:         defaultImageY,
			TextX:          defaultTextX,
			TitleY:         defaultTitleY,
			TitleFontSize:  defaultTitleFontSize,
			BulletY:        defaultBulletY,
			BulletSpacing:  defaultBulletSpacing,
			BulletFontSize: defaultBulletFontSize,
			AudioCodec:     defaultAudioCodec,
			AudioBitrate:   defaultAudioBitrate,
		},
		Workflow: Workflow{
			StaleScratchHours: defaultStaleScratchHours,
			SlideMaxSeconds:   defaultSlideMaxSeconds,
		},
		Cinematic: Cinematic{SceneCount: defaultSceneCount},
		Slideshow: Slideshow{MaxSlides: defaultMaxSlides, MaxBullets: defaultMaxBullets},
		Story:     Story{MaxPages: defaultMaxPages, Narration: true},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			NATSSubject:    defaultNATSSubject,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultOutputDir         = "~/Videos/chapterreel"
	defaultScratchDir        = "~/.local/share/chapterreel/scratch"
	defaultLogDir            = "~/.local/share/chapterreel/logs"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultWidth             = 1920
	defaultHeight            = 1080
	defaultFrameRate         = 30
	defaultMaxZoom           = 1.5
	defaultSpeechGain        = 1.0
	defaultVideoCodec        = "libx264"
	defaultPreset            = "medium"
	defaultCRF               = 20
	defaultPixelFormat       = "yuv420p"
	defaultAudioCodec        = "aac"
	defaultAudioBitrate      = "192k"
	defaultAudioSampleRate   = 48000
	defaultContainer         = "mp4"
	defaultEncoderTimeout    = 1800
	defaultConcurrency       = 1
	defaultStaleScratchHours = 24
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Encoder: Encoder{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			Width:           defaultWidth,
			Height:          defaultHeight,
			FrameRate:       defaultFrameRate,
			MaxZoom:         defaultMaxZoom,
			SpeechGain:      defaultSpeechGain,
			VideoCodec:      defaultVideoCodec,
			Preset:          defaultPreset,
			CRF:             defaultCRF,
			PixelFormat:     defaultPixelFormat,
			AudioCodec:      defaultAudioCodec,
			AudioBitrate:    defaultAudioBitrate,
			AudioSampleRate: defaultAudioSampleRate,
			Container:       defaultContainer,
			TimeoutSeconds:  defaultEncoderTimeout,
		},
		Pipeline: Pipeline{
			Concurrency:       defaultConcurrency,
			LockProject:       true,
			StaleScratchHours: defaultStaleScratchHours,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if err := ensurePositiveMap(map[string]int{
		"encoder.width":             c.Encoder.Width,
		"encoder.height":            c.Encoder.Height,
		"encoder.frame_rate":        c.Encoder.FrameRate,
		"encoder.audio_sample_rate": c.Encoder.AudioSampleRate,
	}); err != nil {
		return err
	}
	if c.Encoder.Width%2 != 0 || c.Encoder.Height%2 != 0 {
		return fmt.Errorf("encoder.width and encoder.height must be even (got %dx%d)", c.Encoder.Width, c.Encoder.Height)
	}
	if c.Encoder.MaxZoom < 1 {
		return errors.New("encoder.max_zoom must be >= 1")
	}
	if c.Encoder.SpeechGain < 0 {
		return errors.New("encoder.speech_gain must be >= 0")
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 63 {
		return errors.New("encoder.crf must be between 0 and 63")
	}
	switch c.Encoder.Container {
	case "mp4", "mkv", "mov":
	default:
		return fmt.Errorf("encoder.container: unsupported value %q (use mp4, mkv, or mov)", c.Encoder.Container)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

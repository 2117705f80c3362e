package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvision(); err != nil {
		return err
	}
	if err := c.validateTranscoder(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvision() error {
	switch c.Provision.Extractor {
	case ExtractorAuto, ExtractorNative, ExtractorBuiltin:
	default:
		return fmt.Errorf("provision.extractor: unsupported value %q (use auto, native or builtin)", c.Provision.Extractor)
	}
	return nil
}

func (c *Config) validateTranscoder() error {
	if c.Transcoder.Port <= 0 || c.Transcoder.Port > 65535 {
		return fmt.Errorf("transcoder.port must be between 1 and 65535, got %d", c.Transcoder.Port)
	}
	if c.Transcoder.RestartDelaySeconds <= 0 {
		return errors.New("transcoder.restart_delay_seconds must be positive")
	}
	for key := range c.Transcoder.Env {
		if key == "" {
			return errors.New("transcoder.env: empty variable name")
		}
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranscoder(); err != nil {
		return err
	}
	c.normalizeProvision()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("TRANSCODEHOST_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.FFmpegRoot = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.FFmpegRoot) == "" {
		c.Paths.FFmpegRoot = defaultFFmpegRoot
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.FFmpegRoot, err = expandPath(c.Paths.FFmpegRoot); err != nil {
		return fmt.Errorf("paths.ffmpeg_root: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscoder() error {
	var err error
	c.Transcoder.EntryPoint = strings.TrimSpace(c.Transcoder.EntryPoint)
	if c.Transcoder.EntryPoint != "" {
		if c.Transcoder.EntryPoint, err = expandPath(c.Transcoder.EntryPoint); err != nil {
			return fmt.Errorf("transcoder.entry_point: %w", err)
		}
	}
	c.Transcoder.Interpreter = strings.TrimSpace(c.Transcoder.Interpreter)

	if value, ok := os.LookupEnv("TRANSCODER_PORT"); ok && strings.TrimSpace(value) != "" {
		port, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Errorf("TRANSCODER_PORT: %w", convErr)
		}
		c.Transcoder.Port = port
	}

	c.Transcoder.FFmpegPath = strings.TrimSpace(c.Transcoder.FFmpegPath)
	if c.Transcoder.FFmpegPath == "" {
		if value, ok := os.LookupEnv("FFMPEG_PATH"); ok {
			c.Transcoder.FFmpegPath = strings.TrimSpace(value)
		}
	}

	c.Transcoder.SupervisedEnvKey = strings.TrimSpace(c.Transcoder.SupervisedEnvKey)
	if c.Transcoder.SupervisedEnvKey == "" {
		c.Transcoder.SupervisedEnvKey = defaultSupervisedEnvKey
	}

	markers := c.Transcoder.StdoutMarkers[:0]
	for _, marker := range c.Transcoder.StdoutMarkers {
		if trimmed := strings.TrimSpace(marker); trimmed != "" {
			markers = append(markers, trimmed)
		}
	}
	c.Transcoder.StdoutMarkers = markers
	if len(c.Transcoder.StdoutMarkers) == 0 {
		c.Transcoder.StdoutMarkers = defaultStdoutMarkers()
	}
	return nil
}

func (c *Config) normalizeProvision() {
	c.Provision.Extractor = strings.ToLower(strings.TrimSpace(c.Provision.Extractor))
	if c.Provision.Extractor == "" {
		c.Provision.Extractor = defaultExtractor
	}
	if c.Provision.LockTimeoutSeconds <= 0 {
		c.Provision.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

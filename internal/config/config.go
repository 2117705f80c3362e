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

// Paths contains directory configuration.
type Paths struct {
	// FFmpegRoot holds ffmpeg<tag>.zip archives and ffmpeg<tag>/ bundles.
	FFmpegRoot string `toml:"ffmpeg_root"`
	// StateDir holds logs, the host lock file, and the launch history database.
	StateDir string `toml:"state_dir"`
}

// Provision contains build-time provisioning settings.
type Provision struct {
	Extractor          string `toml:"extractor"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Transcoder contains settings for the supervised transcoding engine.
type Transcoder struct {
	EntryPoint          string            `toml:"entry_point"`
	Interpreter         string            `toml:"interpreter"`
	Args                []string          `toml:"args"`
	Port                int               `toml:"port"`
	RestartDelaySeconds int               `toml:"restart_delay_seconds"`
	SupervisedEnvKey    string            `toml:"supervised_env_key"`
	FFmpegPath          string            `toml:"ffmpeg_path"`
	StdoutMarkers       []string          `toml:"stdout_markers"`
	Env                 map[string]string `toml:"env"`
}

// Metrics contains the optional Prometheus/health endpoint settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for transcodehost.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Provision  Provision  `toml:"provision"`
	Transcoder Transcoder `toml:"transcoder"`
	Metrics    Metrics    `toml:"metrics"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/transcodehost/config.toml")
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
		decoder.DisallowUnknownFields()
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transcodehost.toml")
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

// EnsureDirectories creates the state directory used by the runtime host.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LockPath is the single-instance lock file for the runtime host.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "transcodehost.lock")
}

// LogPath is the runtime host log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "transcodehost.log")
}

// ProvisionLockPath serializes concurrent provisioning runs. It lives in the
// state directory so the packaged ffmpeg root only holds bundles.
func (c *Config) ProvisionLockPath() string {
	return filepath.Join(c.Paths.StateDir, "provision.lock")
}

// HistoryPath is the SQLite database recording child launches.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// RestartDelay returns the fixed delay between a child exit and its relaunch.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Transcoder.RestartDelaySeconds) * time.Second
}

// LockTimeout bounds how long provisioning waits for a concurrent run.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Provision.LockTimeoutSeconds) * time.Second
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

package config

const (
	defaultFFmpegRoot          = "ffmpeg"
	defaultStateDir            = "~/.local/share/transcodehost"
	defaultExtractor           = ExtractorAuto
	defaultLockTimeoutSeconds  = 120
	defaultEntryPoint          = "transcoder/server.js"
	defaultInterpreter         = "node"
	defaultTranscoderPort      = 3005
	defaultRestartDelaySeconds = 5
	defaultSupervisedEnvKey    = "TRANSCODER_SUPERVISED"
	defaultMetricsBind         = "127.0.0.1:9465"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Extractor modes accepted by provision.extractor.
const (
	ExtractorAuto    = "auto"
	ExtractorNative  = "native"
	ExtractorBuiltin = "builtin"
)

func defaultStdoutMarkers() []string {
	return []string{"Starting", "Error"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FFmpegRoot: defaultFFmpegRoot,
			StateDir:   defaultStateDir,
		},
		Provision: Provision{
			Extractor:          defaultExtractor,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Transcoder: Transcoder{
			EntryPoint:          defaultEntryPoint,
			Interpreter:         defaultInterpreter,
			Port:                defaultTranscoderPort,
			RestartDelaySeconds: defaultRestartDelaySeconds,
			SupervisedEnvKey:    defaultSupervisedEnvKey,
			StdoutMarkers:       defaultStdoutMarkers(),
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// conf/config.go settings structure and loading
package conf

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/gpio"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/wakeword"
)

//go:embed config.yaml
var defaultConfigYAML string

// WakewordSettings selects the wake phrases and the engine credentials.
type WakewordSettings struct {
	AccessKey    string   `mapstructure:"accesskey" yaml:"accesskey"`       // Picovoice access key
	ModelPath    string   `mapstructure:"modelpath" yaml:"modelpath"`       // optional model file, library default when empty
	Keywords     []string `mapstructure:"keywords" yaml:"keywords"`         // built-in keyword names
	KeywordPaths []string `mapstructure:"keywordpaths" yaml:"keywordpaths"` // custom .ppn files, take precedence over keywords
	Sensitivity  float64  `mapstructure:"sensitivity" yaml:"sensitivity"`   // 0.0 - 1.0, shared by all keywords
}

// TriggerSettings controls the coordinator loop.
type TriggerSettings struct {
	MinRefireInterval time.Duration `mapstructure:"minrefireinterval" yaml:"minrefireinterval"`
	PollInterval      time.Duration `mapstructure:"pollinterval" yaml:"pollinterval"`
	PulseDuration     time.Duration `mapstructure:"pulseduration" yaml:"pulseduration"`
}

// GPIOSettings selects the GPIO chip and pin map.
type GPIOSettings struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"` // false runs against the simulated actuator
	Chip     string        `mapstructure:"chip" yaml:"chip"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Pins     gpio.Pins     `mapstructure:"pins" yaml:"pins"`
}

// AudioSettings controls device selection and debug capture.
type AudioSettings struct {
	DebugPath string   `mapstructure:"debugpath" yaml:"debugpath"` // directory for captured audio, disabled when empty
	Exclude   []string `mapstructure:"exclude" yaml:"exclude"`     // device names ignored in addition to the built-in list
}

// ShutdownSettings configures the shutdown button action.
type ShutdownSettings struct {
	Command string `mapstructure:"command" yaml:"command"` // run after a button-initiated stop, e.g. "shutdown -h now"
}

// TelemetrySettings configures the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SentrySettings configures optional error reporting.
type SentrySettings struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Settings contains all configuration options for wakefire.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Wakeword  WakewordSettings  `mapstructure:"wakeword" yaml:"wakeword"`
	Trigger   TriggerSettings   `mapstructure:"trigger" yaml:"trigger"`
	GPIO      GPIOSettings      `mapstructure:"gpio" yaml:"gpio"`
	Audio     AudioSettings     `mapstructure:"audio" yaml:"audio"`
	Shutdown  ShutdownSettings  `mapstructure:"shutdown" yaml:"shutdown"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`
	Sentry    SentrySettings    `mapstructure:"sentry" yaml:"sentry"`

	Logging logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ConfigFile is the file the settings were read from, empty when none.
	ConfigFile string `mapstructure:"-" yaml:"-"`
	// Warnings are validation findings that do not prevent startup.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// WakewordConfig converts the wakeword section for the detector factory.
func (s *Settings) WakewordConfig() wakeword.Config {
	return wakeword.Config{
		AccessKey:    s.Wakeword.AccessKey,
		ModelPath:    s.Wakeword.ModelPath,
		Keywords:     append([]string(nil), s.Wakeword.Keywords...),
		KeywordPaths: append([]string(nil), s.Wakeword.KeywordPaths...),
		Sensitivity:  float32(s.Wakeword.Sensitivity),
	}
}

// LoggingConfig returns the logging section, raised to debug level when the
// debug flag is set.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	cfg := s.Logging
	if s.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = string(logger.LogLevelDebug)
			cfg.Console = &console
		}
	}
	return &cfg
}

// LoadOptions selects where Load looks for the config file.
type LoadOptions struct {
	// ConfigFile is an explicit file; it must exist.
	ConfigFile string
	// SearchPaths overrides DefaultConfigPaths.
	SearchPaths []string
	// WriteDefault writes the embedded default config to the first search
	// path when no config file is found.
	WriteDefault bool
	// SkipValidation returns the settings even when they would not start
	// the engine, for commands that only inspect them.
	SkipValidation bool
}

// Load reads settings from defaults, the config file and WAKEFIRE_*
// environment variables, in increasing precedence. Flags bound to v by the
// caller take precedence over all of them.
func Load(v *viper.Viper, opts LoadOptions) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return nil, err
	}

	configFile, err := readConfig(v, opts)
	if err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}
	settings.ConfigFile = configFile

	if opts.SkipValidation {
		return settings, nil
	}

	result := ValidateSettings(settings)
	if !result.Valid {
		return nil, errors.Newf("%s", result.Summary()).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("config_file", configFile).
			Build()
	}
	settings.Warnings = result.Warnings

	return settings, nil
}

func readConfig(v *viper.Viper, opts LoadOptions) (string, error) {
	v.SetConfigType("yaml")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return "", configReadError(err, opts.ConfigFile)
		}
		return v.ConfigFileUsed(), nil
	}

	paths := opts.SearchPaths
	if len(paths) == 0 {
		var err error
		if paths, err = DefaultConfigPaths(); err != nil {
			return "", err
		}
	}

	v.SetConfigName("config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	err := v.ReadInConfig()
	if err == nil {
		return v.ConfigFileUsed(), nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return "", configReadError(err, "")
	}
	if !opts.WriteDefault {
		return "", nil
	}

	configPath := filepath.Join(paths[0], "config.yaml")
	if err := writeDefaultConfig(configPath); err != nil {
		return "", err
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return "", configReadError(err, configPath)
	}
	return configPath, nil
}

func writeDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Context("path", filepath.Dir(configPath)).
			Build()
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Context("path", configPath).
			Build()
	}
	fmt.Println("Created default config file at:", configPath)
	return nil
}

func configReadError(err error, path string) error {
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("operation", "read_config").
		Context("path", path).
		Build()
}

// DefaultConfig returns the embedded default config file contents.
func DefaultConfig() string {
	return defaultConfigYAML
}

const redacted = "[REDACTED]"

// MarshalRedactedYAML renders the effective settings as YAML with
// credentials masked.
func (s *Settings) MarshalRedactedYAML() ([]byte, error) {
	out := *s
	if out.Wakeword.AccessKey != "" {
		out.Wakeword.AccessKey = redacted
	}
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = redacted
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal_yaml").
			Build()
	}
	return data, nil
}

// Package config provides configuration loading and validation for the
// offsettree command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidColor       = errors.New("invalid color mode")
	ErrInvalidTableStyle  = errors.New("invalid table style")
	ErrInvalidMaxRows     = errors.New("max rows must not be negative")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// EnvPrefix prefixes every environment override, e.g. OFFSETTREE_LOGGING_LEVEL.
const EnvPrefix = "OFFSETTREE"

// Config holds all configuration for the offsettree command.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel returns the configured level. It is only valid after LoadConfig
// has validated the configuration.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level

	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// OutputConfig controls how tables are rendered.
type OutputConfig struct {
	Color      string `mapstructure:"color"`
	TableStyle string `mapstructure:"table_style"`
	// MaxRows truncates tables; zero means unlimited.
	MaxRows int `mapstructure:"max_rows"`
}

// TracingConfig holds OTLP export settings.
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty path searches ./offsettree.yaml and /etc/offsettree/offsettree.yaml
// and tolerates neither existing.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("offsettree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/offsettree")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("output.color", DefaultColor)
	viperCfg.SetDefault("output.table_style", DefaultTableStyle)
	viperCfg.SetDefault("output.max_rows", DefaultMaxRows)

	viperCfg.SetDefault("tracing.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("tracing.otlp_headers", "")
	viperCfg.SetDefault("tracing.insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("tracing.sample_ratio", DefaultSampleRatio)
}

func validateConfig(config *Config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Logging.Level)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if config.Logging.Format != FormatText && config.Logging.Format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	switch config.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColor, config.Output.Color)
	}

	if !slices.Contains(TableStyles, config.Output.TableStyle) {
		return fmt.Errorf("%w: %q", ErrInvalidTableStyle, config.Output.TableStyle)
	}

	if config.Output.MaxRows < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxRows, config.Output.MaxRows)
	}

	if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Tracing.SampleRatio)
	}

	return nil
}

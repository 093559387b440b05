// Package config loads dirhover settings from file, environment and defaults.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DIRHOVER_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ByteSize is a size in bytes that decodes from strings such as "100MB".
type ByteSize uint64

// Config represents the complete dirhover configuration.
type Config struct {
	// MaxCalculationTime bounds a single folder computation. Bare numbers
	// are milliseconds; strings use Go duration syntax ("5s").
	MaxCalculationTime time.Duration `mapstructure:"max_calculation_time" validate:"gt=0"`

	// FileSizeBase selects SI (1000) or binary (1024) size units.
	FileSizeBase int `mapstructure:"file_size_base" validate:"oneof=1000 1024"`

	// LargeFileThreshold marks files at or above this size as large.
	LargeFileThreshold ByteSize `mapstructure:"large_file_threshold"`

	// DebugMode enables diagnostic logging.
	DebugMode bool `mapstructure:"debug_mode"`

	// DateTimeFormat uses the tokens YYYY, MM, DD, HH, mm, ss.
	DateTimeFormat string `mapstructure:"date_time_format" validate:"required"`

	// Templates holds the user-facing decoration templates.
	Templates TemplatesConfig `mapstructure:"templates"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// TemplatesConfig holds the decoration templates.
type TemplatesConfig struct {
	// File is rendered for regular files.
	File string `mapstructure:"file" validate:"required"`
	// LargeFile is rendered for files at or above the large file threshold.
	LargeFile string `mapstructure:"large_file" validate:"required"`
	// Folder is rendered for directories with computed stats.
	Folder string `mapstructure:"folder" validate:"required"`
	// FolderCalculating is rendered while a computation is running.
	FolderCalculating string `mapstructure:"folder_calculating" validate:"required"`
	// FolderTimeout is rendered when a computation ran past its deadline.
	FolderTimeout string `mapstructure:"folder_timeout" validate:"required"`
	// ImageFile is rendered for image files; it adds {resolution}, {width} and {height}.
	ImageFile string `mapstructure:"image_file" validate:"required"`
	// ImageResolution renders {resolution} from {width} and {height}.
	ImageResolution string `mapstructure:"image_resolution" validate:"required"`
	// StatusBar renders the one-line result of an explicit calculation.
	StatusBar string `mapstructure:"status_bar" validate:"required"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Format is the log encoding: json or console.
	Format string `mapstructure:"format" validate:"required,oneof=json console"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig controls metrics exposure.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Address is the listen address of the /metrics endpoint.
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location. A missing file is not
// an error; the defaults are used.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// newViper configures viper with defaults, environment variables and config file settings.
func newViper(configPath string) *viper.Viper {
	v := viper.New()

	setDefaults(v)

	// Example: DIRHOVER_LOGGING_LEVEL=debug
	v.SetEnvPrefix("DIRHOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	return v
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("reading config file: %w", err)
	}

	return nil
}

// decode unmarshals, normalizes and validates the current viper state.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		byteSizeHook(),
		millisecondsHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// byteSizeHook parses human readable sizes into ByteSize fields.
func byteSizeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) || from.Kind() != reflect.String {
			return data, nil
		}

		n, err := humanize.ParseBytes(reflect.ValueOf(data).String())
		if err != nil {
			return nil, fmt.Errorf("parsing byte size %q: %w", data, err)
		}

		return ByteSize(n), nil
	}
}

// millisecondsHook decodes bare numbers, and strings holding one, into
// time.Duration fields as milliseconds.
func millisecondsHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))

	return func(from, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		v := reflect.ValueOf(data)

		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(v.Int()) * time.Millisecond, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(v.Uint()) * time.Millisecond, nil //nolint:gosec // Config values are small
		case reflect.Float32, reflect.Float64:
			return time.Duration(v.Float() * float64(time.Millisecond)), nil
		case reflect.String:
			ms, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
			if err != nil {
				// Not a bare number; left to the duration parser.
				return data, nil //nolint:nilerr // Fall through to the next hook
			}

			return time.Duration(ms * float64(time.Millisecond)), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dirhover")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dirhover")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

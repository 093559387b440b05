package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values, matching the explorer extension this tool serves.
const (
	DefaultMaxCalculationTime = 5 * time.Second
	DefaultFileSizeBase       = 1000
	DefaultLargeFileThreshold = ByteSize(100 * 1000 * 1000)
	DefaultDateTimeFormat     = "YYYY-MM-DD HH:mm:ss"

	DefaultFileTemplate              = "Info: \nsize: {size}\nmodTime: {modifiedTime}"
	DefaultLargeFileTemplate         = "Info: \nsize: {size} (large file)\nmodTime: {modifiedTime}"
	DefaultFolderTemplate            = "Info: \nsize: {size}\nchildFile: {fileCount}\nchildFolder: {folderCount}\nmodTime: {modifiedTime}"
	DefaultFolderCalculatingTemplate = "Info: \nCalculating...\nmodTime: {modifiedTime}"
	DefaultImageFileTemplate         = "Info: \nsize: {size}\n{resolution}\nmodTime: {modifiedTime}"
	DefaultImageResolutionTemplate   = "{width} * {height}"
	DefaultStatusBarTemplate         = "{folderName}: {totalSize}, {fileCount} files, {folderCount} folders"
	DefaultFolderTimeoutTemplate     = "Info: \nFolder is too complex, please increase the calculation time limit " +
		"in the settings or use other tools to obtain information\nmodTime: {modifiedTime}"
)

// setDefaults registers every key with viper so environment overrides apply
// even when the config file does not mention the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("max_calculation_time", DefaultMaxCalculationTime)
	v.SetDefault("file_size_base", DefaultFileSizeBase)
	v.SetDefault("large_file_threshold", uint64(DefaultLargeFileThreshold))
	v.SetDefault("debug_mode", false)
	v.SetDefault("date_time_format", DefaultDateTimeFormat)

	v.SetDefault("templates.file", DefaultFileTemplate)
	v.SetDefault("templates.large_file", DefaultLargeFileTemplate)
	v.SetDefault("templates.folder", DefaultFolderTemplate)
	v.SetDefault("templates.folder_calculating", DefaultFolderCalculatingTemplate)
	v.SetDefault("templates.folder_timeout", DefaultFolderTimeoutTemplate)
	v.SetDefault("templates.image_file", DefaultImageFileTemplate)
	v.SetDefault("templates.image_resolution", DefaultImageResolutionTemplate)
	v.SetDefault("templates.status_bar", DefaultStatusBarTemplate)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
}

// Default returns the configuration used when nothing is configured.
// Environment variables are not consulted.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}

	return cfg
}

// ApplyDefaults normalizes values and fills fields left empty.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if cfg.DebugMode {
		cfg.Logging.Level = "debug"
	}

	if cfg.MaxCalculationTime == 0 {
		cfg.MaxCalculationTime = DefaultMaxCalculationTime
	}

	if cfg.FileSizeBase == 0 {
		cfg.FileSizeBase = DefaultFileSizeBase
	}

	if cfg.LargeFileThreshold == 0 {
		cfg.LargeFileThreshold = DefaultLargeFileThreshold
	}
}

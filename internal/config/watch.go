package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch loads the configuration at configPath and calls onChange with the
// new configuration every time the file is written.
//
// Invalid revisions are logged and skipped; the last valid configuration
// stays active. The initially loaded configuration is returned.
func Watch(configPath string, log *zap.Logger, onChange func(*Config)) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v := newViper(configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if file := v.ConfigFileUsed(); file == "" || !fileExists(file) {
		log.Debug("no config file found, not watching")

		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		next, err := decode(v)
		if err != nil {
			log.Warn("ignoring invalid config revision",
				zap.String("file", e.Name), zap.Error(err))

			return
		}

		log.Info("config reloaded", zap.String("file", e.Name))
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

// String renders a short summary for logging.
func (c *Config) String() string {
	return fmt.Sprintf("max_calculation_time=%s file_size_base=%d debug_mode=%t",
		c.MaxCalculationTime, c.FileSizeBase, c.DebugMode)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

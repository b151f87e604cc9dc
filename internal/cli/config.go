package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/simpledb/internal/paths"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyDataDir        = "data_dir"
	cfgKeyLockTimeout    = "lock_timeout"
	cfgKeyFlushInterval  = "flush_interval"
	cfgKeyFlushBatchSize = "flush_batch_size"
	cfgKeySlidingExpiry  = "sliding_expiry"
	cfgKeyLogLevel       = "log_level"

	defaultLogLevel = "info"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# simpledb configuration

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Wait for a table write lock before giving up.
lock_timeout: 10s

# Period of the lazy-write flusher; a negative value disables it.
flush_interval: 5s

# Pending lazy mutations that force a flush.
flush_batch_size: 100

# Idle window of sliding-memory tables.
sliding_expiry: 10m

# debug, info, warn or error
log_level: info
`

// configFile is the structure written to config.yaml by init.
type configFile struct {
	DataDir        string `yaml:"data_dir,omitempty"`
	LockTimeout    string `yaml:"lock_timeout"`
	FlushInterval  string `yaml:"flush_interval"`
	FlushBatchSize int    `yaml:"flush_batch_size"`
	SlidingExpiry  string `yaml:"sliding_expiry"`
	LogLevel       string `yaml:"log_level"`
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLockTimeout, types.DefaultLockTimeout)
	v.SetDefault(cfgKeyFlushInterval, types.DefaultFlushInterval)
	v.SetDefault(cfgKeyFlushBatchSize, types.DefaultFlushBatchSize)
	v.SetDefault(cfgKeySlidingExpiry, types.DefaultSlidingExpiry)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// writeConfig rewrites config.yaml with the effective settings of cfg.
func writeConfig(configDir string, cfg types.Config, logLevel string) error {
	data, err := yaml.Marshal(&configFile{
		DataDir:        cfg.DataDir,
		LockTimeout:    cfg.LockTimeout.String(),
		FlushInterval:  cfg.FlushInterval.String(),
		FlushBatchSize: cfg.FlushBatchSize,
		SlidingExpiry:  cfg.SlidingExpiry.String(),
		LogLevel:       logLevel,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(paths.ConfigFile(configDir), data, 0o644)
}

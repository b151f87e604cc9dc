// Package paths decides where the simpledb command keeps config.yaml and
// the table files. Command-line flags win over config.yaml, which wins over
// SIMPLEDB_* environment variables; per-user platform directories are the
// fallback for configuration only.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the leaf directory created under the platform config root.
const AppName = "simpledb"

// DefaultDataDirName holds table files next to the working directory when
// no data directory is configured.
const DefaultDataDirName = ".simpledb"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// Overrides read from the environment.
const (
	EnvConfigDir = "SIMPLEDB_CONFIG_DIR"
	EnvDataDir   = "SIMPLEDB_DATA_DIR"
)

// platformDir is swapped in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir is $XDG_CONFIG_HOME/simpledb (or ~/.config/simpledb) on
// Linux and os.UserConfigDir()/simpledb elsewhere.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir picks the --config-dir value, then SIMPLEDB_CONFIG_DIR,
// then DefaultConfigDir. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the --data-dir value, then data_dir from config.yaml,
// then SIMPLEDB_DATA_DIR, then .simpledb under the working directory. The
// result is always absolute.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the path of the configuration file in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

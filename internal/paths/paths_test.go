package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withPlatform replaces the platform directory lookups for one test.
func withPlatform(t *testing.T, home, config string, err error) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.homeDir = func() (string, error) { return home, err }
	platformDir.userConfigDir = func() (string, error) { return config, err }
}

func TestDefaultConfigDir(t *testing.T) {
	withPlatform(t, "/home/ada", "/home/ada/Library/Application Support", nil)

	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/ada", ".config", AppName), got)

		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err = DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/tmp/xdg-config", AppName), got)
		return
	}

	got, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/ada/Library/Application Support", AppName), got)
}

func TestDefaultConfigDirPlatformError(t *testing.T) {
	boom := errors.New("no home")
	withPlatform(t, "", "", boom)
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.ErrorIs(t, err, boom)
}

func TestResolveConfigDir(t *testing.T) {
	withPlatform(t, "/home/ada", "/home/ada/.config", nil)
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name    string
		flag    string
		envVal  string
		wantSub string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env wins when flag empty", "", "/env/config", "/env/config"},
		{"platform default when both empty", "", "", AppName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Contains(t, got, filepath.FromSlash(tt.wantSub))
			assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name       string
		flag       string
		configYAML string
		envVal     string
		want       string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config.yaml wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env wins when flag and config empty", "", "", "/env/data", "/env/data"},
		{"CWD default when all empty", "", "", "", filepath.Join(cwd, DefaultDataDirName)},
		{"relative flag becomes absolute", "rel/data", "", "", filepath.Join(cwd, "rel", "data")},
		{"relative config value becomes absolute", "", "rel/config", "", filepath.Join(cwd, "rel", "config")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag, tt.configYAML)
			require.NoError(t, err)
			want, err := filepath.Abs(filepath.FromSlash(tt.want))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, filepath.Join("cfg", "config.yaml"), ConfigFile("cfg"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutFlags(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "quiznet-server", cfg.Server.Name)
	require.Equal(t, 5556, cfg.Server.TCPPort)
	require.Equal(t, 5555, cfg.Server.UDPPort)
	require.Equal(t, "file", cfg.Accounts.Backend)
	require.True(t, cfg.Session.LastPlayerPenalty)
}

func TestFlagOverridesWinOverDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--tcp=7001", "--name=lan-party"}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	require.Equal(t, 7001, cfg.Server.TCPPort)
	require.Equal(t, "lan-party", cfg.Server.Name)
	require.Equal(t, 5555, cfg.Server.UDPPort, "unset flags should not override defaults")
}

func TestLoadToleratesMissingConfigFile(t *testing.T) {
	flags := &Flags{ConfigPath: filepath.Join(t.TempDir(), "does-not-exist.yaml")}
	cfg, err := Load(flags)
	require.NoError(t, err)
	require.Equal(t, 5556, cfg.Server.TCPPort)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	flags := &Flags{TCPPort: 99999}
	_, err := Load(flags)
	require.Error(t, err)
}

func TestLoadRejectsPostgresBackendWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("accounts:\n  backend: postgres\n"), 0o644))

	flags := &Flags{ConfigPath: cfgFile}
	_, err := Load(flags)
	require.Error(t, err)
}

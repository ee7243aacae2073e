package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, filepath.Join(home, ".wabridge", "whatsapp.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(home, ".wabridge", "media"), cfg.MediaPath)
	assert.Equal(t, "127.0.0.1:50051", cfg.GRPCAddress)
	assert.Equal(t, "127.0.0.1:8080", cfg.MCPAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.ParentPID)

	assert.DirExists(t, filepath.Join(home, ".wabridge"))
	assert.DirExists(t, cfg.MediaPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WA_DATABASE_PATH", filepath.Join(dir, "bridge.db"))
	t.Setenv("WA_MEDIA_PATH", filepath.Join(dir, "media"))
	t.Setenv("WA_GRPC_ADDRESS", "127.0.0.1:16001")
	t.Setenv("WA_MCP_ADDRESS", "127.0.0.1:16002")
	t.Setenv("WA_MODE", "headless")
	t.Setenv("WA_PARENT_PID", "4242")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ModeHeadless, cfg.Mode)
	assert.Equal(t, filepath.Join(dir, "bridge.db"), cfg.DatabasePath)
	assert.Equal(t, "127.0.0.1:16001", cfg.GRPCAddress)
	assert.Equal(t, "127.0.0.1:16002", cfg.MCPAddress)
	assert.Equal(t, 4242, cfg.ParentPID)
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WA_MODE", "headless")
	t.Setenv("WA_DATABASE_PATH", filepath.Join(dir, "env.db"))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", ModeServer, "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{
		"--mode", "interactive",
		"--db", filepath.Join(dir, "flag.db"),
	}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, ModeInteractive, cfg.Mode)
	assert.Equal(t, filepath.Join(dir, "flag.db"), cfg.DatabasePath)
}

func TestLoadListenerFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WA_DATABASE_PATH", filepath.Join(dir, "x.db"))
	t.Setenv("WA_MEDIA_PATH", filepath.Join(dir, "media"))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("grpc-port", "", "")
	flags.String("mcp-port", "", "")
	require.NoError(t, flags.Parse([]string{
		"--grpc-port", "127.0.0.1:60000",
		"--mcp-port", "127.0.0.1:60001",
	}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:60000", cfg.GRPCAddress)
	assert.Equal(t, "127.0.0.1:60001", cfg.MCPAddress)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("WA_MODE", "daemon")
	t.Setenv("WA_DATABASE_PATH", filepath.Join(t.TempDir(), "x.db"))

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestDeviceStorePath(t *testing.T) {
	cfg := &Config{DatabasePath: "/data/whatsapp.db"}
	assert.Equal(t, "/data/whatsapp_wa.db", cfg.DeviceStorePath())
}

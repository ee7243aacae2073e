package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Run modes. Server hosts the RPC and MCP listeners; interactive and
// headless are the terminal front ends.
const (
	ModeServer      = "server"
	ModeInteractive = "interactive"
	ModeHeadless    = "headless"
)

type Config struct {
	Mode         string
	DatabasePath string
	MediaPath    string
	GRPCAddress  string
	MCPAddress   string
	LogLevel     string
	// ParentPID enables the watchdog when > 0. Usually set by the host
	// through WA_PARENT_PID.
	ParentPID int
}

// Load resolves configuration with flag > environment > default
// precedence. Environment variables use the WA_ prefix (WA_DATABASE_PATH,
// WA_GRPC_ADDRESS, ...).
func Load(flags *pflag.FlagSet) (*Config, error) {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".wabridge")

	v := viper.New()
	v.SetDefault("mode", ModeServer)
	v.SetDefault("database_path", filepath.Join(dataDir, "whatsapp.db"))
	v.SetDefault("media_path", filepath.Join(dataDir, "media"))
	v.SetDefault("grpc_address", "127.0.0.1:50051")
	v.SetDefault("mcp_address", "127.0.0.1:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("parent_pid", 0)

	v.SetEnvPrefix("WA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindings := map[string]string{
			"mode":          "mode",
			"database_path": "db",
			"media_path":    "media",
			"grpc_address":  "grpc-port",
			"mcp_address":   "mcp-port",
			"log_level":     "log-level",
			"parent_pid":    "parent-pid",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Mode:         v.GetString("mode"),
		DatabasePath: v.GetString("database_path"),
		MediaPath:    v.GetString("media_path"),
		GRPCAddress:  v.GetString("grpc_address"),
		MCPAddress:   v.GetString("mcp_address"),
		LogLevel:     v.GetString("log_level"),
		ParentPID:    v.GetInt("parent_pid"),
	}

	switch cfg.Mode {
	case ModeServer, ModeInteractive, ModeHeadless:
	default:
		return nil, fmt.Errorf("invalid mode %q: want server, interactive or headless", cfg.Mode)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaPath, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	return cfg, nil
}

// DeviceStorePath is the whatsmeow session database, kept beside the
// bridge database.
func (c *Config) DeviceStorePath() string {
	ext := filepath.Ext(c.DatabasePath)
	return strings.TrimSuffix(c.DatabasePath, ext) + "_wa" + ext
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirebird/wabridge/internal/bootstrap"
	"github.com/wirebird/wabridge/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "wabridge",
		Short:         "WhatsApp bridge daemon",
		Long:          "Bridges one WhatsApp Web session to local RPC, MCP and stdio transports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return bootstrap.Run(context.Background(), cfg)
		},
	}

	flags := root.Flags()
	flags.String("mode", config.ModeServer, "run mode: server, interactive or headless")
	flags.String("db", "", "bridge database path (default ~/.wabridge/whatsapp.db)")
	flags.String("media", "", "media download directory (default ~/.wabridge/media)")
	flags.String("grpc-port", "", "RPC listen address (default 127.0.0.1:50051)")
	flags.String("mcp-port", "", "MCP SSE listen address (default 127.0.0.1:8080)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Int("parent-pid", 0, "exit when this PID disappears (default WA_PARENT_PID)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wabridge:", err)
		os.Exit(1)
	}
}

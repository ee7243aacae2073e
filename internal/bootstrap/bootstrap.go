// Package bootstrap wires the daemon together: storage, the WhatsApp
// session, the transports and the parent watchdog, per run mode.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	// Registers the sqlite3 driver the device store opens by name.
	_ "github.com/mattn/go-sqlite3"

	"github.com/wirebird/wabridge/internal/bus"
	"github.com/wirebird/wabridge/internal/cli"
	"github.com/wirebird/wabridge/internal/config"
	"github.com/wirebird/wabridge/internal/logger"
	"github.com/wirebird/wabridge/internal/repository"
	"github.com/wirebird/wabridge/internal/service"
	"github.com/wirebird/wabridge/internal/transport/mcp"
	"github.com/wirebird/wabridge/internal/transport/rpc"
	"github.com/wirebird/wabridge/internal/watchdog"
)

// readyTimeout bounds how long server mode waits for both listeners.
// The ready token is only printed after both are bound.
const readyTimeout = 10 * time.Second

// shutdownTimeout bounds graceful drain of the transports.
const shutdownTimeout = 10 * time.Second

// frontEnd is either the interactive or the headless CLI.
type frontEnd interface {
	Run(ctx context.Context) error
}

// Run builds the full application from cfg and blocks until shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel, os.Stderr)
	log := logger.Module("bootstrap")

	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open bridge database: %w", err)
	}
	st := repository.NewStore(db)

	device, err := openDeviceStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open device store: %w", err)
	}

	eventBus := bus.New()
	session := service.New(device, st, eventBus, service.Config{
		MediaDir: cfg.MediaPath,
	})
	messages := service.NewMessageService(st, session)

	// SIGINT/SIGTERM end the run; the watchdog does the same when the
	// parent process disappears.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ParentPID > 0 {
		watchdog.New(cfg.ParentPID, stop).Start(ctx)
	}

	switch cfg.Mode {
	case config.ModeInteractive:
		fe := cli.NewInteractiveCLI(cli.NewCommandHandler(session, messages), os.Stdin, os.Stdout)
		return runFrontEnd(ctx, log, session, device, fe)
	case config.ModeHeadless:
		fe := cli.NewHeadlessCLI(cli.NewCommandHandler(session, messages), os.Stdin, os.Stdout)
		return runFrontEnd(ctx, log, session, device, fe)
	default:
		return runServer(ctx, cfg, log, session, messages, device)
	}
}

// openDeviceStore opens the whatsmeow session container. It lives in a
// separate database file so the two schemas never collide.
func openDeviceStore(ctx context.Context, cfg *config.Config) (*store.Device, error) {
	container, err := sqlstore.New(ctx, "sqlite3",
		"file:"+cfg.DeviceStorePath()+"?_foreign_keys=on",
		logger.NewWALogger("database"))
	if err != nil {
		return nil, fmt.Errorf("create sqlstore container: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// runServer hosts the RPC and MCP listeners. The literal "ready" line on
// stdout is the startup handshake with the host process; nothing else may
// be written to stdout in this mode.
func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger, session *service.Session, messages *service.MessageService, device *store.Device) error {
	log.Info().
		Str("database", cfg.DatabasePath).
		Str("grpc", cfg.GRPCAddress).
		Str("mcp", cfg.MCPAddress).
		Msg("starting bridge")

	rpcServer := rpc.NewServer(cfg.GRPCAddress, session, messages)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}

	mcpServer := mcp.NewServer(cfg.MCPAddress, session, messages)
	if err := mcpServer.Start(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rpcServer.Shutdown(shutdownCtx)
		return fmt.Errorf("start mcp server: %w", err)
	}

	readyGate := time.After(readyTimeout)
	for _, ch := range []<-chan struct{}{rpcServer.Ready(), mcpServer.Ready()} {
		select {
		case <-ch:
		case <-readyGate:
			return fmt.Errorf("listeners not ready within %s", readyTimeout)
		}
	}

	if device.ID != nil {
		go func() {
			if err := session.Connect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("auto-connect failed")
			}
		}()
	} else {
		log.Info().Msg("no device registered, pair via RPC or CLI")
	}

	// Startup handshake. The host waits for this exact line.
	fmt.Fprintln(os.Stdout, "ready")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	session.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	rpcServer.Shutdown(shutdownCtx)
	if err := mcpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("mcp shutdown")
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// runFrontEnd drives one of the terminal CLIs until it quits or the
// context ends.
func runFrontEnd(ctx context.Context, log zerolog.Logger, session *service.Session, device *store.Device, fe frontEnd) error {
	if device.ID != nil {
		if err := session.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("auto-connect failed")
		}
	}

	err := fe.Run(ctx)
	session.Disconnect()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Command castctl is a minimal demonstration CLI for the castgo sender
// library: it connects to a Cast receiver, prints its status, and
// optionally launches an application, following the same
// config→logger→banner→business-logic wiring as the teacher's
// cmd/signaling/main.go.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caststream/castgo/internal/banner"
	"github.com/caststream/castgo/internal/cast/config"
	"github.com/caststream/castgo/internal/cast/device"
	"github.com/caststream/castgo/internal/logger"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	if cfg.Address == "" {
		slog.Error("no receiver address given, use -address host:port")
		os.Exit(1)
	}

	banner.Print("castctl", []banner.ConfigLine{
		{Label: "Address", Value: cfg.Address},
		{Label: "Log level", Value: cfg.LogLevel},
		{Label: "App ID", Value: cfg.AppID},
		{Label: "Auto-reconnect", Value: boolString(cfg.AutoReconnect)},
	})

	dev := device.New(cfg.Address,
		device.WithAutoReconnect(cfg.AutoReconnect),
		device.WithLogger(slog.Default()),
	)

	run(dev, cfg)
}

func run(dev *device.Device, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer connectCancel()

	if err := dev.Connect(connectCtx); err != nil {
		slog.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer dev.Disconnect()

	slog.Info("connected", "address", cfg.Address, "name", dev.DisplayName())

	statusCtx, statusCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	status, err := dev.GetReceiverStatus(statusCtx)
	statusCancel()
	if err != nil {
		slog.Error("get receiver status failed", "error", err)
	} else {
		slog.Info("receiver status", "applications", len(status.Applications))
	}

	if cfg.AppID != "" {
		launchCtx, launchCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		app, err := dev.LaunchApplication(launchCtx, cfg.AppID, true)
		launchCancel()
		if err != nil {
			slog.Error("launch failed", "error", err, "app_id", cfg.AppID)
		} else {
			slog.Info("application launched", "app_id", app.AppID, "transport_id", app.TransportID, "session_id", app.SessionID)
		}
	}

	<-ctx.Done()
	time.Sleep(250 * time.Millisecond)
}

func boolString(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Command dataplot is the console monitor: it connects to one micro:bit over
// USB serial or BLE and draws its live data in the terminal.
//
//	dataplot [--transport usb|ble] [--port COM3] [--address AA:BB:..] [--table]
//
// Keys: t toggles chart/table, q or Esc quits.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CK6170/dataplot-go/ble"
	"github.com/CK6170/dataplot-go/internal/config"
	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/serial"
	"github.com/CK6170/dataplot-go/ui"
	"github.com/spf13/pflag"
)

// AppVersion is overridden at build time with -ldflags "-X main.AppVersion=...".
var AppVersion = "dev"

const drawInterval = 200 * time.Millisecond

func main() {
	var (
		transport  = pflag.StringP("transport", "t", "usb", "link to use: usb or ble")
		port       = pflag.StringP("port", "p", "", "serial port (default: auto-detect)")
		address    = pflag.StringP("address", "a", "", "BLE address (default: first matching name)")
		configPath = pflag.String("config", "", "config file (YAML or JSONC); overrides "+config.EnvConfig)
		table      = pflag.Bool("table", false, "start in table view")
		logFile    = pflag.String("log-file", "", "write logs to this file (the terminal is busy drawing)")
		logLevel   = pflag.String("log-level", "", "log level: debug, info, warn, error")
		version    = pflag.BoolP("version", "v", false, "print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Println(AppVersion)
		return
	}
	if err := run(*transport, *port, *address, *configPath, *table, *logFile, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "dataplot: %v\n", err)
		os.Exit(1)
	}
}

func run(transport, port, address, configPath string, table bool, logFile, logLevel string) error {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := config.NewLogger(logOut, cfg.Log)

	link, err := newLink(cfg, transport, port, address, logger)
	if err != nil {
		return err
	}

	view := ui.ChartView
	if table {
		view = ui.TableView
	}
	session := stream.NewSession(link, stream.Options{
		Dedup:     link.Name() == "ble",
		Handshake: cfg.Handshake,
		Logger:    logger,
	})
	console := ui.NewConsole(os.Stdout, view, ui.SessionSource(session))
	session.AddSink(console)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.ClearScreen(os.Stdout)
	fmt.Fprintf(os.Stdout, "dataplot %s: connecting over %s...\n", AppVersion, link.Name())
	connectCtx, cancel := connectContext(ctx, cfg, link.Name())
	err = session.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer session.Disconnect()

	keys := ui.StartKeyEvents()
	defer ui.StopKeyEvents()
	ui.DrainKeys()

	tick := time.NewTicker(drawInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch ui.KeyAction(r) {
			case ui.ActionToggle:
				console.Toggle()
				_ = console.Draw()
			case ui.ActionQuit:
				return nil
			}
		case <-tick.C:
			if err := console.Draw(); err != nil {
				return err
			}
		}
	}
}

// newLink builds the transport named on the command line.
func newLink(cfg *config.Config, transport, port, address string, logger *slog.Logger) (stream.Transport, error) {
	switch transport {
	case "usb", "":
		if port == "" {
			port = cfg.Serial.Port
		}
		return serial.NewTransport(serial.Config{
			Port:        port,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout.Std(),
			Logger:      logger,
		}), nil
	case "ble":
		if address == "" {
			address = cfg.BLE.Address
		}
		return ble.NewTransport(ble.Config{
			Address:    address,
			NamePrefix: cfg.BLE.NamePrefix,
			Logger:     logger,
		}), nil
	}
	return nil, fmt.Errorf("unknown transport %q (want usb or ble)", transport)
}

// connectContext bounds BLE connects by the scan timeout. A USB open is
// bounded by the port probes themselves, so only the signal context applies.
func connectContext(ctx context.Context, cfg *config.Config, transport string) (context.Context, context.CancelFunc) {
	if transport == "ble" && cfg.BLE.ScanTimeout > 0 {
		return context.WithTimeout(ctx, cfg.BLE.ScanTimeout.Std())
	}
	return context.WithCancel(ctx)
}

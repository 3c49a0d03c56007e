// Command `dataplot-server` serves live micro:bit plots to a browser.
//
// It serves static assets from `--web` and exposes JSON APIs plus one
// WebSocket stream per transport (USB serial and BLE) that the frontend uses
// to connect to a board and draw its data.
//
// Flags:
//
//	--addr:      TCP address to listen on (default 127.0.0.1:8080)
//	--web:       path to web root containing index.html
//	--open:      open the UI URL in your default browser at startup
//	--config:    YAML or JSONC config file (or DATAPLOT_CONFIG)
//	--log-level: debug, info, warn or error
//
// Env:
//
//	DATAPLOT_NO_OPEN=1 disables browser auto-open even when --open is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/CK6170/dataplot-go/ble"
	"github.com/CK6170/dataplot-go/internal/config"
	"github.com/CK6170/dataplot-go/internal/server"
	"github.com/CK6170/dataplot-go/serial"
	"github.com/spf13/pflag"
)

func main() {
	var (
		addr       = pflag.String("addr", "", "http listen address (default from config, 127.0.0.1:8080)")
		web        = pflag.String("web", "", "path to web root (index.html)")
		open       = pflag.Bool("open", false, "open the web UI in your default browser on startup")
		configPath = pflag.String("config", "", "config file (YAML or JSONC); overrides "+config.EnvConfig)
		logLevel   = pflag.String("log-level", "", "log level: debug, info, warn, error")
	)
	pflag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dataplot-server: %v\n", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("addr") {
		cfg.Addr = *addr
	}
	if pflag.CommandLine.Changed("web") {
		cfg.Web = *web
	}
	if pflag.CommandLine.Changed("open") {
		cfg.Open = *open
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	logger := config.NewLogger(os.Stderr, cfg.Log)

	// Resolve the web directory so logging and FileServer behavior do not
	// depend on the working directory.
	webDir, err := filepath.Abs(cfg.Web)
	if err != nil {
		logger.Error("resolve web directory", "err", err)
		os.Exit(1)
	}
	if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
		logger.Warn("web directory does not exist; serving the API only", "web", webDir)
	}

	usb := serial.NewTransport(serial.Config{
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout.Std(),
		Logger:      logger,
	})
	bt := ble.NewTransport(ble.Config{
		Address:    cfg.BLE.Address,
		NamePrefix: cfg.BLE.NamePrefix,
		Logger:     logger,
	})
	usbDevice := server.NewUSBDevice(usb, server.NewPortCache(cfg.PortCache), cfg.Serial.Baud)
	usbDevice.DefaultPort = cfg.Serial.Port
	s := server.New(server.Options{
		WebDir:         webDir,
		Logger:         logger,
		Handshake:      cfg.Handshake,
		ConnectTimeout: cfg.BLE.ScanTimeout.Std(),
		Devices: []server.Device{
			usbDevice,
			server.NewBLEDevice(bt),
		},
	})
	defer s.Close()

	// Bind the listen address early so we fail fast if the port is in use.
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("listen", "addr", cfg.Addr, "err", err)
		os.Exit(1)
	}

	uiURL := makeUIURL(cfg.Addr)
	logger.Info("serving", "addr", cfg.Addr, "ui", uiURL, "web", webDir)

	if cfg.Open && os.Getenv("DATAPLOT_NO_OPEN") == "" {
		if err := openBrowser(uiURL); err != nil {
			logger.Warn("failed to open browser", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "err", err)
	}
	logger.Info("stopped")
}

// makeUIURL turns a listen address (host:port) into a browser-friendly URL.
//
// If the server is bound to 0.0.0.0 / ::, the returned URL uses 127.0.0.1
// because wildcard addresses are not reachable targets in browsers.
func makeUIURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/", strings.TrimSpace(addr))
	}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, port))
}

// openBrowser starts the OS default browser on url without waiting for it.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		// `start` is a cmd.exe built-in. The empty title argument prevents quoting issues.
		return exec.Command("cmd", "/c", "start", "", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

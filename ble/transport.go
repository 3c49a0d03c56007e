// Package ble is the Bluetooth Low Energy link to a micro:bit running the
// Nordic UART service.
package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/CK6170/dataplot-go/internal/stream"
	"tinygo.org/x/bluetooth"
)

// Nordic UART service as exposed by the micro:bit. The micro:bit notifies on
// its TX characteristic and listens on RX.
const (
	UARTService = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	UARTTX      = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"
	UARTRX      = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"
)

// DefaultNamePrefix matches the advertised name of every micro:bit.
const DefaultNamePrefix = "BBC micro:bit"

var (
	ErrNotOpen      = errors.New("ble link not open")
	ErrNoUART       = errors.New("device has no UART service")
	errScanFinished = errors.New("scan ended without a match")
)

var (
	serviceUUID = mustUUID(UARTService)
	txUUID      = mustUUID(UARTTX)
	rxUUID      = mustUUID(UARTRX)
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Config selects which peripheral to connect to.
type Config struct {
	// Address pins one device (MAC on Linux/Windows, UUID on macOS). When
	// empty the first device whose name starts with NamePrefix is used.
	Address    string
	NamePrefix string
	Logger     *slog.Logger
}

// Transport is the BLE UART link.
type Transport struct {
	cfg     Config
	log     *slog.Logger
	adapter *bluetooth.Adapter

	mu         sync.Mutex
	open       bool
	address    string
	rx         bluetooth.DeviceCharacteristic
	disconnect func() error
}

var _ stream.Transport = (*Transport)(nil)

// NewTransport returns a closed transport on the default adapter.
func NewTransport(cfg Config) *Transport {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = DefaultNamePrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{cfg: cfg, log: cfg.Logger, adapter: bluetooth.DefaultAdapter}
}

func (t *Transport) Name() string { return "ble" }

// Address returns the address of the connected device, or "".
func (t *Transport) Address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.address
}

// SetAddress pins the device for the next Open. Empty means match by name.
func (t *Transport) SetAddress(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Address = addr
}

// Open scans for the device, connects, and subscribes to UART notifications.
// Every notification is handed to h as one chunk.
func (t *Transport) Open(ctx context.Context, h stream.Handler) error {
	_ = t.Close()
	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	t.mu.Lock()
	cfg := t.cfg
	t.mu.Unlock()
	result, err := t.scan(ctx, cfg)
	if err != nil {
		return err
	}
	addr := result.Address.String()
	t.log.Info("ble device found", "address", addr, "name", result.LocalName(), "rssi", result.RSSI)

	dev, err := t.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	fail := func(err error) error {
		_ = dev.Disconnect()
		return err
	}

	services, err := dev.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return fail(fmt.Errorf("discover services: %w", err))
	}
	if len(services) == 0 {
		return fail(ErrNoUART)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{txUUID, rxUUID})
	if err != nil {
		return fail(fmt.Errorf("discover characteristics: %w", err))
	}
	var tx, rx bluetooth.DeviceCharacteristic
	var haveTX, haveRX bool
	for _, c := range chars {
		switch c.UUID() {
		case txUUID:
			tx, haveTX = c, true
		case rxUUID:
			rx, haveRX = c, true
		}
	}
	if !haveTX || !haveRX {
		return fail(ErrNoUART)
	}

	if err := tx.EnableNotifications(h.HandleChunk); err != nil {
		return fail(fmt.Errorf("enable notifications: %w", err))
	}

	t.mu.Lock()
	t.open = true
	t.address = addr
	t.rx = rx
	t.disconnect = dev.Disconnect
	t.mu.Unlock()
	return nil
}

// scan blocks until a matching advertisement is seen or ctx ends.
func (t *Transport) scan(ctx context.Context, cfg Config) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		err := t.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if !Matches(cfg, r.Address.String(), r.LocalName()) {
				return
			}
			select {
			case found <- r:
				_ = a.StopScan()
			default:
			}
		})
		if err == nil {
			err = errScanFinished
		}
		scanErr <- err
	}()

	t.log.Info("scanning for ble device", "address", cfg.Address, "prefix", cfg.NamePrefix)
	select {
	case r := <-found:
		<-scanErr
		return r, nil
	case err := <-scanErr:
		select {
		case r := <-found:
			return r, nil
		default:
		}
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	case <-ctx.Done():
		_ = t.adapter.StopScan()
		<-scanErr
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

// Matches reports whether an advertisement from address/name is the device
// cfg asks for. A configured address wins over the name prefix.
func Matches(cfg Config, address, name string) bool {
	if cfg.Address != "" {
		return strings.EqualFold(cfg.Address, address)
	}
	prefix := cfg.NamePrefix
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	return name != "" && strings.HasPrefix(name, prefix)
}

func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, ErrNotOpen
	}
	return t.rx.WriteWithoutResponse(p)
}

// Close drops the connection. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	disconnect := t.disconnect
	open := t.open
	t.open = false
	t.address = ""
	t.disconnect = nil
	t.mu.Unlock()
	if !open || disconnect == nil {
		return nil
	}
	return disconnect()
}

package server

import (
	"context"
	"strings"

	"github.com/CK6170/dataplot-go/ble"
	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/serial"
)

// Device is a transport the server can point at a specific port or
// peripheral before connecting.
type Device interface {
	stream.Transport
	// Prepare selects the device for the next Open and returns a trace of
	// what was tried.
	Prepare(req ConnectRequest) (trace []string, err error)
	// Target names the selected port or address.
	Target() string
}

// USBDevice resolves the micro:bit serial port, remembering the last port
// that worked for each board in the port cache.
type USBDevice struct {
	*serial.Transport
	cache *PortCache
	baud  int
	// DefaultPort is probed first when a request names no port.
	DefaultPort string

	key    string
	target string
}

func NewUSBDevice(t *serial.Transport, cache *PortCache, baud int) *USBDevice {
	return &USBDevice{Transport: t, cache: cache, baud: baud}
}

// Prepare uses an explicit port as given. Otherwise it finds the micro:bit
// by USB VID, tries the cached port for that board (or DefaultPort) first,
// and falls back to probing every port.
func (d *USBDevice) Prepare(req ConnectRequest) ([]string, error) {
	if port := strings.TrimSpace(req.Port); port != "" {
		d.key, d.target = "", port
		d.SetPort(port)
		return nil, nil
	}

	preferred := strings.TrimSpace(d.DefaultPort)
	d.key = ""
	if mb, ok := serial.DetectMicrobit(); ok {
		d.key = portKey(mb)
		if preferred == "" {
			preferred = mb.Name
		}
		if d.cache != nil {
			if cached := d.cache.Get(d.key); cached != "" {
				preferred = cached
			}
		}
	}
	found, trace := serial.AutoDetectPortTrace(preferred, d.baud)
	if found == "" {
		return trace, serial.ErrNoDevice
	}
	d.target = found
	d.SetPort(found)
	return trace, nil
}

// Open opens the selected port and caches it on success.
func (d *USBDevice) Open(ctx context.Context, h stream.Handler) error {
	if err := d.Transport.Open(ctx, h); err != nil {
		return err
	}
	if d.cache != nil && d.key != "" {
		d.cache.Set(d.key, d.Port())
	}
	return nil
}

func (d *USBDevice) Target() string { return d.target }

// BLEDevice pins the BLE transport to an address when one is requested.
type BLEDevice struct {
	*ble.Transport
	target string
}

func NewBLEDevice(t *ble.Transport) *BLEDevice {
	return &BLEDevice{Transport: t}
}

func (d *BLEDevice) Prepare(req ConnectRequest) ([]string, error) {
	d.target = strings.TrimSpace(req.Address)
	d.SetAddress(d.target)
	return nil, nil
}

func (d *BLEDevice) Target() string {
	if a := d.Address(); a != "" {
		return a
	}
	return d.target
}

package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/tarm/serial"
)

// Config selects the USB serial port.
type Config struct {
	// Port is the device node or COM name. Empty means auto-detect.
	Port        string
	Baud        int
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

// Transport is the USB serial link to a micro:bit.
type Transport struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	port *serial.Port
	name string
	stop chan struct{}
	done chan struct{}
}

var _ stream.Transport = (*Transport)(nil)

// ErrNotOpen is returned by Write on a closed transport.
var ErrNotOpen = errors.New("serial port not open")

// NewTransport returns a closed transport.
func NewTransport(cfg Config) *Transport {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{cfg: cfg, log: cfg.Logger}
}

func (t *Transport) Name() string { return "usb" }

// Port returns the name of the open port, or "".
func (t *Transport) Port() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetPort selects the port for the next Open. Empty means auto-detect.
func (t *Transport) SetPort(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Port = name
}

// Open resolves the port (auto-detecting when none is configured), opens it
// and starts the read loop.
func (t *Transport) Open(ctx context.Context, h stream.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Release a port left behind by a read loop that failed.
	_ = t.Close()
	t.mu.Lock()
	name := t.cfg.Port
	t.mu.Unlock()
	if name == "" {
		p, trace := AutoDetectPortTrace("", t.cfg.Baud)
		for _, line := range trace {
			t.log.Debug(line)
		}
		if p == "" {
			return ErrNoDevice
		}
		name = p
	}

	sp, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        t.cfg.Baud,
		Parity:      serial.ParityNone,
		Size:        8,
		StopBits:    serial.Stop1,
		ReadTimeout: t.cfg.ReadTimeout,
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.port = sp
	t.name = name
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stop, t.done
	t.mu.Unlock()

	t.log.Info("serial port open", "port", name, "baud", t.cfg.Baud)
	go readLoop(sp, h, stop, done)
	return nil
}

// readLoop forwards every read to h until stop closes or the port fails.
// A read timeout surfaces as io.EOF and only means the line was idle.
func readLoop(r io.Reader, h stream.Handler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 512)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			h.HandleChunk(buf[:n])
		}
		if err == nil || errors.Is(err, io.EOF) {
			continue
		}
		select {
		case <-stop:
		default:
			h.HandleClosed(err)
		}
		return
	}
}

func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	sp := t.port
	t.mu.Unlock()
	if sp == nil {
		return 0, ErrNotOpen
	}
	return sp.Write(p)
}

// Close stops the read loop and closes the port. Closing a closed transport
// is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	sp, stop, done := t.port, t.stop, t.done
	t.port, t.stop, t.done, t.name = nil, nil, nil, ""
	t.mu.Unlock()
	if sp == nil {
		return nil
	}
	close(stop)
	err := sp.Close()
	<-done
	return err
}

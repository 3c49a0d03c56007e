// Package stream wires one device connection to its plot: raw chunks from a
// transport go through deduplication (BLE only), line framing and record
// decoding, then update the connection's plot state and notify render sinks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CK6170/dataplot-go/frame"
	"github.com/CK6170/dataplot-go/models"
	"github.com/CK6170/dataplot-go/plot"
)

// DefaultHandshake is written to the device right after the link opens; the
// stock firmware starts streaming once it sees it.
const DefaultHandshake = "dataplot\n"

// Handler receives what a Transport reads. Calls for one transport are never
// concurrent, and a chunk is only valid for the duration of the call.
type Handler interface {
	HandleChunk(chunk []byte)
	HandleClosed(err error)
}

// Transport is a device link: USB serial or BLE UART.
type Transport interface {
	// Name identifies the link in logs and APIs ("usb", "ble").
	Name() string
	// Open connects and starts delivering chunks to h until Close.
	Open(ctx context.Context, h Handler) error
	Write(p []byte) (int, error)
	Close() error
}

// Init is sent to sinks whenever the model is rebuilt.
type Init struct {
	Transport   string         `json:"transport"`
	Fingerprint string         `json:"fingerprint"`
	Config      *models.Config `json:"config"`
	Model       plot.Model     `json:"model"`
}

// Sink renders a session's model. Methods are called with the session lock
// held and must not block; a sink that needs the full model calls
// Session.Snapshot from another goroutine, never from inside these methods.
type Sink interface {
	Initialize(Init)
	ApplyDelta(plot.Delta)
	Reset(reason string)
}

// Options configures a Session.
type Options struct {
	// Dedup drops a notification identical to the one before it. Set for
	// BLE links.
	Dedup bool
	// Handshake overrides DefaultHandshake. Use "-" to send nothing.
	Handshake string
	Logger    *slog.Logger
}

var (
	// ErrConnected is returned by Connect on a session that is already open.
	ErrConnected = errors.New("already connected")
)

// Session is the state of one connection: its line buffer, graph config
// state and plot model. USB and BLE sessions are independent instances.
type Session struct {
	transport Transport
	opts      Options
	log       *slog.Logger

	mu        sync.Mutex
	connected bool
	asm       frame.Assembler
	dedup     *frame.Deduper
	state     plot.State
	sinks     []Sink
	// gen increments on every Connect so callbacks from a previous link are
	// recognized and dropped.
	gen uint64

	stats Stats
}

// Stats counts what a session has processed since it was created.
type Stats struct {
	Chunks     int `json:"chunks"`
	Duplicates int `json:"duplicates"`
	Records    int `json:"records"`
	Malformed  int `json:"malformed"`
	Configs    int `json:"configs"`
	Resets     int `json:"resets"`
	Updates    int `json:"updates"`
	Ignored    int `json:"ignored"`
}

// NewSession returns a disconnected session over t.
func NewSession(t Transport, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Handshake == "" {
		opts.Handshake = DefaultHandshake
	}
	s := &Session{
		transport: t,
		opts:      opts,
		log:       opts.Logger.With("transport", t.Name()),
	}
	if opts.Dedup {
		s.dedup = &frame.Deduper{}
	}
	return s
}

// Name returns the transport name.
func (s *Session) Name() string { return s.transport.Name() }

// AddSink registers a sink. If a model exists the sink is initialized with it
// right away.
func (s *Session) AddSink(k Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, k)
	if s.state.Active() {
		k.Initialize(s.initLocked())
	}
}

// Connect opens the transport with a fresh line buffer and config state,
// then sends the handshake. Failures are returned; nothing is retried.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrConnected
	}
	s.gen++
	s.resetLocked()
	s.connected = true
	gen := s.gen
	s.mu.Unlock()

	if err := s.transport.Open(ctx, &linkHandler{s: s, gen: gen}); err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.connected = false
		}
		s.mu.Unlock()
		return fmt.Errorf("%s: open: %w", s.transport.Name(), err)
	}
	s.log.Info("connected")

	if s.opts.Handshake != "-" {
		if _, err := s.transport.Write([]byte(s.opts.Handshake)); err != nil {
			// The device may already be streaming; a failed handshake is not fatal.
			s.log.Warn("handshake write failed", "err", err)
		}
	}
	return nil
}

// Disconnect closes the transport and discards the line buffer (a trailing
// partial record is never flushed), the config state and the model.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	s.connected = false
	s.resetLocked()
	for _, k := range s.sinks {
		k.Reset("disconnected")
	}
	s.mu.Unlock()

	err := s.transport.Close()
	s.log.Info("disconnected")
	return err
}

// Connected reports whether the transport is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Snapshot returns a deep copy of the active config and model, or nils before
// the first config.
func (s *Session) Snapshot() (*models.Config, plot.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Model()
	if m == nil {
		return nil, nil
	}
	return s.state.Config(), m.Clone()
}

// View runs fn with the session locked and hands it the live config and
// model (nil before the first config). No sink event fires while fn runs, so
// a subscriber that starts from m and then follows deltas misses nothing. fn
// must not keep m or call back into the session.
func (s *Session) View(fn func(cfg *models.Config, m plot.Model)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state.Config(), s.state.Model())
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// HandleChunk runs one raw transport unit through the whole pipeline. It is
// exported so tests and replay tools can drive a session without a link.
func (s *Session) HandleChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleLocked(chunk)
}

func (s *Session) handleLocked(chunk []byte) {
	s.stats.Chunks++
	if s.dedup != nil && !s.dedup.Accept(chunk) {
		s.stats.Duplicates++
		s.log.Debug("duplicate notification dropped", "len", len(chunk))
		return
	}
	for line := range s.asm.Feed(chunk) {
		s.handleLine(line)
	}
}

func (s *Session) handleLine(line string) {
	rec, err := models.Decode(line)
	switch {
	case errors.Is(err, models.ErrUnknownType):
		s.stats.Ignored++
		s.log.Debug("record without known type dropped")
		return
	case err != nil:
		s.stats.Malformed++
		s.log.Warn("record dropped", "err", err, "line", line)
		return
	}
	s.stats.Records++

	switch r := rec.(type) {
	case *models.Config:
		s.stats.Configs++
		if _, changed := s.state.Configure(r); changed {
			s.stats.Resets++
			s.log.Info("graph configured", "graphType", r.GraphType.String(), "title", r.Title, "series", len(r.Series))
			for _, k := range s.sinks {
				k.Initialize(s.initLocked())
			}
		}
	case *models.Data:
		if len(r.Skipped) > 0 {
			s.log.Debug("non-numeric values ignored", "keys", r.Skipped)
		}
		delta, ok := s.state.Update(r)
		if !ok {
			// Data before any config: normal during startup.
			s.stats.Ignored++
			return
		}
		s.stats.Updates++
		for _, k := range s.sinks {
			k.ApplyDelta(delta)
		}
	}
}

// initLocked builds an Init holding a fresh copy of the model; each sink
// gets its own, which it may update in place.
func (s *Session) initLocked() Init {
	cfg := s.state.Config()
	return Init{
		Transport:   s.transport.Name(),
		Fingerprint: cfg.Fingerprint(),
		Config:      cfg,
		Model:       s.state.Model().Clone(),
	}
}

func (s *Session) resetLocked() {
	s.asm.Reset()
	if s.dedup != nil {
		s.dedup.Reset()
	}
	s.state.Reset()
}

// linkHandler tags callbacks with the connection generation they belong to.
type linkHandler struct {
	s   *Session
	gen uint64
}

func (h *linkHandler) HandleChunk(chunk []byte) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != h.gen || !s.connected {
		return
	}
	s.handleLocked(chunk)
}

func (h *linkHandler) HandleClosed(err error) {
	s := h.s
	s.mu.Lock()
	if s.gen != h.gen || !s.connected {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.connected = false
	s.resetLocked()
	for _, k := range s.sinks {
		k.Reset("link closed")
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("link closed", "err", err)
	} else {
		s.log.Info("link closed")
	}
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/serial"
)

// DefaultConnectTimeout bounds a connect request, BLE scanning included.
const DefaultConnectTimeout = 30 * time.Second

// Options configures a Server.
type Options struct {
	// WebDir is served at "/".
	WebDir string
	Logger *slog.Logger
	// Handshake is passed to every session; "-" disables it.
	Handshake      string
	ConnectTimeout time.Duration
	// Devices are the links the server exposes, typically USB and BLE.
	Devices []Device
	// ListPorts overrides serial.ListPorts.
	ListPorts func() []serial.PortInfo
}

type Server struct {
	mux *http.ServeMux
	log *slog.Logger

	links          *LinkStore
	connectTimeout time.Duration
	listPorts      func() []serial.PortInfo
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ListPorts == nil {
		opts.ListPorts = serial.ListPorts
	}
	s := &Server{
		mux:            http.NewServeMux(),
		log:            opts.Logger,
		links:          NewLinkStore(),
		connectTimeout: opts.ConnectTimeout,
		listPorts:      opts.ListPorts,
	}
	for _, d := range opts.Devices {
		s.links.Add(d, stream.Options{
			// BLE stacks may deliver a notification twice.
			Dedup:     d.Name() == "ble",
			Handshake: opts.Handshake,
			Logger:    opts.Logger,
		})
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/ports", s.handlePorts)
	s.mux.HandleFunc("/api/connect", s.handleConnect)
	s.mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/api/model", s.handleModel)
	s.mux.HandleFunc("/api/table", s.handleTable)
	s.mux.HandleFunc("/api/chart.png", s.handleChart)
	s.mux.HandleFunc("/api/export.xlsx", s.handleExport)

	// WS
	s.mux.HandleFunc("/ws/plot", s.handleWSPlot)

	// Static frontend
	fs := http.FileServer(http.Dir(opts.WebDir))
	s.mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Avoid stale UI/assets after updates (especially important with ESM imports).
		if r.URL != nil {
			p := r.URL.Path
			if p == "/" ||
				strings.HasPrefix(p, "/assets/") ||
				strings.HasSuffix(p, ".html") ||
				strings.HasSuffix(p, ".js") ||
				strings.HasSuffix(p, ".css") {
				w.Header().Set("Cache-Control", "no-store")
			}
		}
		fs.ServeHTTP(w, r)
	}))

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Session returns the session behind a transport, for hosts that add their
// own sinks.
func (s *Server) Session(transport string) (*stream.Session, bool) {
	l, ok := s.links.Get(transport)
	if !ok {
		return nil, false
	}
	return l.Session, true
}

// Close disconnects every transport.
func (s *Server) Close() {
	s.links.CloseAll()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// linkFor resolves a transport name, defaulting to "usb", and writes a 404
// when it is unknown.
func (s *Server) linkFor(w http.ResponseWriter, r *http.Request, name string) (*Link, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "usb"
	}
	l, ok := s.links.Get(name)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "unknown transport " + name})
		return nil, false
	}
	return l, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now(), Transports: s.links.Names()})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ports := s.listPorts()
	if ports == nil {
		ports = []serial.PortInfo{}
	}
	s.writeJSON(w, 200, PortsResponse{Ports: ports})
}

// handleConnect (re)connects one transport. Any existing connection on it is
// closed first, discarding its buffered partial line and model.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ConnectRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	link, ok := s.linkFor(w, r, req.Transport)
	if !ok {
		return
	}

	link.mu.Lock()
	defer link.mu.Unlock()

	_ = link.Session.Disconnect()

	trace, err := link.Device.Prepare(req)
	for _, line := range trace {
		s.log.Debug(line)
	}
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.connectTimeout)
	defer cancel()
	if err := link.Session.Connect(ctx); err != nil {
		s.log.Warn("connect failed", "transport", link.Name(), "err", err)
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	s.writeJSON(w, 200, ConnectResponse{
		Connected:     true,
		Transport:     link.Name(),
		Target:        link.Device.Target(),
		AutoDetectLog: trace,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req DisconnectRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	link, ok := s.linkFor(w, r, req.Transport)
	if !ok {
		return
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	if err := link.Session.Disconnect(); err != nil {
		s.log.Warn("disconnect", "transport", link.Name(), "err", err)
	}
	s.writeJSON(w, 200, ConnectResponse{Connected: false, Transport: link.Name()})
}

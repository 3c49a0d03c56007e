package server

import (
	"time"

	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/models"
	"github.com/CK6170/dataplot-go/plot"
	"github.com/CK6170/dataplot-go/serial"
)

// APIError is the canonical error envelope returned by JSON endpoints.
// The frontend expects the `error` field and will surface it to the user.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /api/health to confirm the server is running.
type HealthResponse struct {
	OK         bool      `json:"ok"`
	Timestamp  time.Time `json:"timestamp"`
	Transports []string  `json:"transports"`
}

// PortsResponse lists serial ports; micro:bits are flagged.
type PortsResponse struct {
	Ports []serial.PortInfo `json:"ports"`
}

// ConnectRequest selects a transport and, optionally, the device on it.
// An empty Port auto-detects the micro:bit; an empty Address matches BLE
// devices by name.
type ConnectRequest struct {
	Transport string `json:"transport"`
	Port      string `json:"port,omitempty"`
	Address   string `json:"address,omitempty"`
}

// ConnectResponse is returned by /api/connect.
type ConnectResponse struct {
	Connected     bool     `json:"connected"`
	Transport     string   `json:"transport"`
	Target        string   `json:"target,omitempty"`
	AutoDetectLog []string `json:"autoDetectLog,omitempty"`
}

// DisconnectRequest names the transport to close.
type DisconnectRequest struct {
	Transport string `json:"transport"`
}

// ModelResponse is the current state of one transport's plot.
type ModelResponse struct {
	Transport   string         `json:"transport"`
	Connected   bool           `json:"connected"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Config      *models.Config `json:"config,omitempty"`
	Model       plot.Model     `json:"model,omitempty"`
	Stats       stream.Stats   `json:"stats"`
}

package serial

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identifiers of the micro:bit DAPLink interface chip.
const (
	MicrobitVID = "0D28"
	MicrobitPID = "0204"
)

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"isUsb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Product      string `json:"product,omitempty"`
	Microbit     bool   `json:"microbit"`
}

// ListPorts returns a best-effort list of available serial ports.
//
// The cross-platform enumerator is tried first because it also reports USB
// VID/PID, which is how micro:bits are recognized. When it returns nothing the
// usual device-node globs are used instead (names only).
//
// The returned slice is sorted by name and de-duplicated.
func ListPorts() []PortInfo {
	if ports, err := enumerator.GetDetailedPortsList(); err == nil && len(ports) > 0 {
		out := make([]PortInfo, 0, len(ports))
		seen := make(map[string]struct{}, len(ports))
		for _, p := range ports {
			if p == nil || p.Name == "" {
				continue
			}
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, PortInfo{
				Name:         p.Name,
				IsUSB:        p.IsUSB,
				VID:          strings.ToUpper(p.VID),
				PID:          strings.ToUpper(p.PID),
				SerialNumber: p.SerialNumber,
				Product:      p.Product,
				Microbit:     p.IsUSB && strings.EqualFold(p.VID, MicrobitVID),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}

	var names []string
	switch runtime.GOOS {
	case "windows":
		// Enumeration is the only reliable source on Windows.
		return nil
	case "darwin":
		names = listByGlob("/dev/cu.usbmodem*", "/dev/cu.*")
	default:
		names = listByGlob("/dev/ttyACM*", "/dev/ttyUSB*")
	}
	out := make([]PortInfo, 0, len(names))
	for _, n := range names {
		out = append(out, PortInfo{Name: n})
	}
	return out
}

// listByGlob expands filesystem glob patterns into a stable, de-duplicated list.
func listByGlob(patterns ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 16)
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if m == "" {
				continue
			}
			// Skip entries that vanished between glob and stat.
			if _, err := os.Stat(m); err != nil {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// DetectMicrobit returns the first enumerated port whose USB VID is the
// micro:bit's.
func DetectMicrobit() (PortInfo, bool) {
	for _, p := range ListPorts() {
		if p.Microbit {
			return p, true
		}
	}
	return PortInfo{}, false
}

package serial

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/CK6170/dataplot-go/frame"
	"github.com/CK6170/dataplot-go/models"
	"github.com/tarm/serial"
)

// DefaultBaud is the rate the micro:bit USB bridge runs at.
const DefaultBaud = 115200

// ProbeTimeout bounds how long TestPort waits for a record.
const ProbeTimeout = 1500 * time.Millisecond

// ErrNoDevice is returned when no port answered the probe.
var ErrNoDevice = errors.New("no micro:bit found")

// AutoDetectPort returns the first port streaming dataplot records.
func AutoDetectPort(preferred string, baud int) (string, error) {
	p, _ := AutoDetectPortTrace(preferred, baud)
	if p == "" {
		return "", ErrNoDevice
	}
	return p, nil
}

// AutoDetectPortTrace is the same as AutoDetectPort, but also returns a trace
// of what was tried. The server surfaces this trace in the web UI.
//
// Order: the preferred port, then enumerated ports with the micro:bit USB
// VID, then every other enumerated port. On Windows with nothing enumerated,
// COM1..COM32 are scanned.
func AutoDetectPortTrace(preferred string, baud int) (string, []string) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	trace := make([]string, 0, 8)
	preferred = strings.TrimSpace(preferred)

	if preferred != "" {
		trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: probing configured port %q (baud=%d)", preferred, baud))
		if TestPort(preferred, baud) {
			trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: FOUND device on configured port %q", preferred))
			return preferred, trace
		}
	}

	if ports := ListPorts(); len(ports) > 0 {
		names := CandidateOrder(ports, preferred)
		trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: enumerated %d ports, probing %v", len(ports), names))
		for _, name := range names {
			trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: probing %s", name))
			if TestPort(name, baud) {
				trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: FOUND device on %s", name))
				return name, trace
			}
		}
		trace = append(trace, "[serial] AutoDetectPort: no enumerated port streamed a record")
		return "", trace
	}

	if runtime.GOOS == "windows" {
		trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: no ports enumerated; falling back to COM1..COM32 scan (baud=%d)", baud))
		for i := 1; i <= 32; i++ {
			portName := fmt.Sprintf("COM%d", i)
			if TestPort(portName, baud) {
				trace = append(trace, fmt.Sprintf("[serial] AutoDetectPort: FOUND device on %s (scan)", portName))
				return portName, trace
			}
		}
		trace = append(trace, "[serial] AutoDetectPort: COM scan did not find a streaming device")
	}
	return "", trace
}

// CandidateOrder lists the ports worth probing: micro:bits first, then the
// rest, each group in enumeration order. The preferred port is left out
// because it has been tried already.
func CandidateOrder(ports []PortInfo, preferred string) []string {
	var microbits, others []string
	for _, p := range ports {
		if preferred != "" && strings.EqualFold(strings.TrimSpace(p.Name), preferred) {
			continue
		}
		if p.Microbit {
			microbits = append(microbits, p.Name)
		} else {
			others = append(others, p.Name)
		}
	}
	return append(microbits, others...)
}

// TestPort opens name, sends the handshake and reports whether a dataplot
// record arrives before ProbeTimeout.
func TestPort(name string, baud int) bool {
	config := &serial.Config{Name: name, Baud: baud, Parity: serial.ParityNone, Size: 8, StopBits: serial.Stop1, ReadTimeout: 100 * time.Millisecond}
	sp, err := serial.OpenPort(config)
	if err != nil {
		return false
	}
	defer func() { _ = sp.Close() }()

	// The device may need a moment after the port opens before it reads input.
	time.Sleep(40 * time.Millisecond)
	if _, err := sp.Write([]byte("dataplot\n")); err != nil {
		return false
	}
	return waitForRecord(sp, ProbeTimeout)
}

// waitForRecord reads r until a line decodes as a config or data record.
// Records with bad fields still count: the port is clearly a dataplot device.
func waitForRecord(r io.Reader, timeout time.Duration) bool {
	var asm frame.Assembler
	deadline := time.Now().Add(timeout)
	tmp := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := r.Read(tmp)
		if n > 0 {
			for line := range asm.Feed(tmp[:n]) {
				if IsRecord(line) {
					return true
				}
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return false
		}
	}
	return false
}

// IsRecord reports whether line looks like output of the dataplot firmware.
func IsRecord(line string) bool {
	_, err := models.Decode(line)
	return err == nil || errors.Is(err, models.ErrInvalid)
}

package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CK6170/dataplot-go/serial"
)

func TestPortCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "ports.json")
	pc := NewPortCache(path)
	pc.Set("usb:9904", "/dev/ttyACM1")
	pc.Set("", "/dev/ttyACM2")
	pc.Set("usb:1", " ")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"usb:9904": "/dev/ttyACM1"`) {
		t.Fatalf("file = %s", b)
	}

	again := NewPortCache(path)
	if got := again.Get("usb:9904"); got != "/dev/ttyACM1" {
		t.Fatalf("reloaded = %q", got)
	}
	if got := again.Get("usb:1"); got != "" {
		t.Fatalf("blank port stored: %q", got)
	}
}

func TestPortCacheIgnoresBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ports.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	pc := NewPortCache(path)
	pc.Set("usb:1", "COM3")
	if pc.Get("usb:1") != "COM3" {
		t.Fatal("cache unusable after bad file")
	}
}

func TestPortKey(t *testing.T) {
	tests := []struct {
		p    serial.PortInfo
		want string
	}{
		{serial.PortInfo{SerialNumber: "9904360258", VID: "0D28", PID: "0204"}, "usb:9904360258"},
		{serial.PortInfo{VID: "0D28", PID: "0204"}, "usb:0D28:0204"},
		{serial.PortInfo{Name: "/dev/ttyS0"}, ""},
	}
	for _, tt := range tests {
		if got := portKey(tt.p); got != tt.want {
			t.Errorf("portKey(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestUSBDeviceExplicitPort(t *testing.T) {
	d := NewUSBDevice(serial.NewTransport(serial.Config{}), nil, 0)
	trace, err := d.Prepare(ConnectRequest{Transport: "usb", Port: " /dev/ttyACM3 "})
	if err != nil || trace != nil {
		t.Fatalf("Prepare = %v, %v", trace, err)
	}
	if d.Target() != "/dev/ttyACM3" {
		t.Fatalf("Target = %q", d.Target())
	}
}

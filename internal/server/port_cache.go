package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CK6170/dataplot-go/serial"
)

// PortCache stores a best-effort mapping of board identity -> last working
// serial port, persisted as JSON.
//
// Device nodes move around between plug-ins (ttyACM0 vs ttyACM1, COM3 vs
// COM7); the cache lets the next connect probe the right port first.
type PortCache struct {
	mu   sync.Mutex
	path string
	m    map[string]string
}

func NewPortCache(path string) *PortCache {
	pc := &PortCache{
		path: path,
		m:    map[string]string{},
	}
	pc.load()
	return pc
}

func (pc *PortCache) Get(key string) string {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return strings.TrimSpace(pc.m[key])
}

func (pc *PortCache) Set(key string, port string) {
	key = strings.TrimSpace(key)
	port = strings.TrimSpace(port)
	if key == "" || port == "" {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if strings.EqualFold(pc.m[key], port) {
		return
	}
	pc.m[key] = port
	_ = pc.saveLocked()
}

func (pc *PortCache) load() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	b, err := os.ReadFile(pc.path)
	if err != nil {
		return
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return
	}
	pc.m = m
}

// saveLocked writes the cache. encoding/json sorts map keys, so the file is
// stable across saves.
func (pc *PortCache) saveLocked() error {
	if pc.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pc.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(pc.m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(pc.path, b, 0o644)
}

// portKey identifies a board across plug-ins: its USB serial number when the
// enumerator reports one, else VID:PID.
func portKey(p serial.PortInfo) string {
	if sn := strings.TrimSpace(p.SerialNumber); sn != "" {
		return "usb:" + sn
	}
	if p.VID == "" {
		return ""
	}
	return "usb:" + p.VID + ":" + p.PID
}

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/CK6170/dataplot-go/internal/config"
)

func TestNewLink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		transport string
		want      string
		wantErr   bool
	}{
		{"", "usb", false},
		{"usb", "usb", false},
		{"ble", "ble", false},
		{"wifi", "", true},
	}
	for _, tt := range tests {
		link, err := newLink(config.Default(), tt.transport, "", "", logger)
		if tt.wantErr {
			if err == nil {
				t.Errorf("newLink(%q) = nil error", tt.transport)
			}
			continue
		}
		if err != nil || link.Name() != tt.want {
			t.Errorf("newLink(%q) = %v, %v", tt.transport, link, err)
		}
	}
}

func TestConnectContext(t *testing.T) {
	cfg := config.Default()
	cfg.BLE.ScanTimeout = config.Duration(time.Millisecond)

	usb, cancel := connectContext(context.Background(), cfg, "usb")
	defer cancel()
	if _, ok := usb.Deadline(); ok {
		t.Fatal("usb connect has a scan deadline")
	}

	bt, cancel := connectContext(context.Background(), cfg, "ble")
	defer cancel()
	if _, ok := bt.Deadline(); !ok {
		t.Fatal("ble connect has no deadline")
	}
}

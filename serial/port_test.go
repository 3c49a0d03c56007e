package serial

import (
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestCandidateOrder(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "0D28", Microbit: true},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "0D28", Microbit: true},
	}
	tests := []struct {
		name      string
		preferred string
		want      []string
	}{
		{"micro:bits first", "", []string{"/dev/ttyACM1", "/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyUSB0"}},
		{"preferred skipped", "/dev/ttyACM0", []string{"/dev/ttyACM1", "/dev/ttyS0", "/dev/ttyUSB0"}},
		{"preferred case-insensitive", "/DEV/TTYS0", []string{"/dev/ttyACM1", "/dev/ttyACM0", "/dev/ttyUSB0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CandidateOrder(ports, tt.preferred); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("CandidateOrder = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRecord(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{`{"type":"data","timestamp":1,"values":{"a":1}}`, true},
		{`{"type":"config","graphType":"bogus","series":[]}`, true},
		{`{"type":"status"}`, false},
		{`Version 1.2`, false},
		{`{"type":"data"`, false},
	}
	for _, tt := range tests {
		if got := IsRecord(tt.line); got != tt.want {
			t.Errorf("IsRecord(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

// chunkReader returns one chunk per Read, then io.EOF like an idle port.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		time.Sleep(time.Millisecond)
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestWaitForRecord(t *testing.T) {
	r := &chunkReader{chunks: []string{"boot\n{\"type\":\"da", "ta\",\"timestamp\":1,\"values\":{}}\n"}}
	if !waitForRecord(r, time.Second) {
		t.Fatal("record split across reads not recognized")
	}
	r = &chunkReader{chunks: []string{"hello\n"}}
	if waitForRecord(r, 20*time.Millisecond) {
		t.Fatal("non-record output accepted")
	}
	r = &chunkReader{err: errors.New("device gone")}
	if waitForRecord(r, time.Second) {
		t.Fatal("failing port accepted")
	}
}

type captureHandler struct {
	mu     sync.Mutex
	chunks []string
	closed []error
}

func (c *captureHandler) HandleChunk(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, string(b))
}

func (c *captureHandler) HandleClosed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, err)
}

func TestReadLoopReportsFailure(t *testing.T) {
	failure := errors.New("unplugged")
	r := &chunkReader{chunks: []string{"ab", "c\n"}, err: failure}
	h := &captureHandler{}
	stop, done := make(chan struct{}), make(chan struct{})
	go readLoop(r, h, stop, done)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit")
	}
	if !reflect.DeepEqual(h.chunks, []string{"ab", "c\n"}) {
		t.Fatalf("chunks = %q", h.chunks)
	}
	if len(h.closed) != 1 || !errors.Is(h.closed[0], failure) {
		t.Fatalf("closed = %v", h.closed)
	}
}

func TestReadLoopStopsQuietly(t *testing.T) {
	r := &chunkReader{}
	h := &captureHandler{}
	stop, done := make(chan struct{}), make(chan struct{})
	go readLoop(r, h, stop, done)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not stop")
	}
	if len(h.closed) != 0 {
		t.Fatalf("stop reported as failure: %v", h.closed)
	}
}

func TestWriteBeforeOpen(t *testing.T) {
	tr := NewTransport(Config{})
	if _, err := tr.Write([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Write err = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close on closed transport: %v", err)
	}
	if tr.Name() != "usb" || tr.Port() != "" {
		t.Fatalf("name=%q port=%q", tr.Name(), tr.Port())
	}
}

package server

import (
	"sort"
	"sync"

	"github.com/CK6170/dataplot-go/internal/stream"
)

// Link is one transport with its session and browser hub. USB and BLE links
// are independent.
type Link struct {
	Device  Device
	Session *stream.Session
	Hub     *WSHub

	// One connect or disconnect at a time.
	mu sync.Mutex
}

func (l *Link) Name() string { return l.Device.Name() }

// LinkStore holds the server's links by transport name.
type LinkStore struct {
	mu sync.RWMutex
	m  map[string]*Link
}

func NewLinkStore() *LinkStore {
	return &LinkStore{m: make(map[string]*Link)}
}

// Add creates the session for d and wires its hub as a sink.
func (s *LinkStore) Add(d Device, opts stream.Options) *Link {
	l := &Link{
		Device:  d,
		Session: stream.NewSession(d, opts),
		Hub:     NewWSHub(),
	}
	l.Session.AddSink(l.Hub)
	s.mu.Lock()
	s.m[d.Name()] = l
	s.mu.Unlock()
	return l
}

func (s *LinkStore) Get(name string) (*Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.m[name]
	return l, ok
}

// Names returns the transport names, sorted.
func (s *LinkStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CloseAll disconnects every link.
func (s *LinkStore) CloseAll() {
	for _, name := range s.Names() {
		l, _ := s.Get(name)
		l.mu.Lock()
		_ = l.Session.Disconnect()
		l.mu.Unlock()
	}
}

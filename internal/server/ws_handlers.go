package server

import (
	"net/http"

	"github.com/CK6170/dataplot-go/models"
	"github.com/CK6170/dataplot-go/plot"
	"github.com/gorilla/websocket"
)

// The server binds to loopback by default and the plot stream is read-only,
// so any page origin may subscribe.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWSPlot subscribes a browser to one transport's plot. The first event
// is an init built from the live model (when a graph is configured), then
// deltas and resets follow as the session produces them.
func (s *Server) handleWSPlot(w http.ResponseWriter, r *http.Request) {
	link, ok := s.linkFor(w, r, r.URL.Query().Get("transport"))
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var client *WSClient
	link.Session.View(func(cfg *models.Config, m plot.Model) {
		client = link.Hub.Add(conn, initEvent(link.Name(), cfg, m))
	})
	s.log.Debug("plot subscriber joined", "transport", link.Name(), "clients", link.Hub.Clients())

	// Browsers only listen; reading detects when they go away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			link.Hub.Remove(client)
			s.log.Debug("plot subscriber left", "transport", link.Name())
			return
		}
	}
}

package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/CK6170/dataplot-go/plot"
	"github.com/CK6170/dataplot-go/render"
)

const errNoGraph = "no graph configured yet"

// snapshot reads the model of the transport named in the query. It writes
// the error response itself when the transport is unknown or, with
// needModel, when no config has arrived.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request, needModel bool) (*Link, ModelResponse, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return nil, ModelResponse{}, false
	}
	link, ok := s.linkFor(w, r, r.URL.Query().Get("transport"))
	if !ok {
		return nil, ModelResponse{}, false
	}
	cfg, m := link.Session.Snapshot()
	resp := ModelResponse{
		Transport: link.Name(),
		Connected: link.Session.Connected(),
		Config:    cfg,
		Model:     m,
		Stats:     link.Session.Stats(),
	}
	if cfg != nil {
		resp.Fingerprint = cfg.Fingerprint()
	}
	if needModel && m == nil {
		s.writeJSON(w, 404, APIError{Error: errNoGraph})
		return nil, ModelResponse{}, false
	}
	return link, resp, true
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	_, resp, ok := s.snapshot(w, r, false)
	if !ok {
		return
	}
	s.writeJSON(w, 200, resp)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	_, resp, ok := s.snapshot(w, r, true)
	if !ok {
		return
	}
	s.writeJSON(w, 200, plot.Tabulate(resp.Model))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	_, resp, ok := s.snapshot(w, r, true)
	if !ok {
		return
	}
	q := r.URL.Query()
	size := render.Size{Width: queryInt(q.Get("width")), Height: queryInt(q.Get("height"))}
	b, err := render.Chart(resp.Model, size)
	if err != nil {
		s.writeJSON(w, 500, APIError{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	link, resp, ok := s.snapshot(w, r, true)
	if !ok {
		return
	}
	b, err := render.Workbook(plot.Tabulate(resp.Model))
	if err != nil {
		s.writeJSON(w, 500, APIError{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dataplot-%s.xlsx"`, link.Name()))
	_, _ = w.Write(b)
}

// queryInt parses a size parameter; bad or out-of-range values mean default.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 4096 {
		return 0
	}
	return n
}

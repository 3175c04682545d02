package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/fraudstream/backend/internal/fraud"
	"github.com/fraudstream/backend/internal/record"
	"github.com/fraudstream/backend/internal/stats"
	"github.com/fraudstream/backend/internal/stream"
	"github.com/gorilla/websocket"
)

type Server struct {
	table           *stream.Table
	detector        stream.Predictor
	tracker         *stats.Tracker
	source          record.Source
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
}

func NewServer(table *stream.Table, detector stream.Predictor, tracker *stats.Tracker, source record.Source, frontendDir string, dev bool, embeddedHandler http.Handler, allowedOrigins []string) *Server {
	s := &Server{
		table:           table,
		detector:        detector,
		tracker:         tracker,
		source:          source,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/predict", s.handlePredict)

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := newClient(conn)
	c.enqueue(Message{Type: MsgConnected, Payload: connectedPayload{Status: "connected"}})

	go func() {
		defer func() {
			s.table.Leave(c.ID())
			c.close()
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleControl(c, data)
		}
	}()
}

// handleControl dispatches one inbound frame. Unknown types are ignored so
// newer frontends can talk to older servers.
func (s *Server) handleControl(c *client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Send(stream.Event{Type: stream.EventError, Payload: stream.ErrorPayload{Message: "malformed message"}})
		return
	}

	switch msg.Type {
	case MsgJoin:
		var p joinPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				c.Send(stream.Event{Type: stream.EventError, Payload: stream.ErrorPayload{Message: "malformed join payload"}})
				return
			}
		}
		if p.Token == "" {
			c.Send(stream.Event{Type: stream.EventError, Payload: stream.ErrorPayload{Message: "token required"}})
			return
		}
		if s.table.Join(c, p.Token) {
			c.Send(stream.Event{Type: stream.EventSessionStarted, Payload: joinAckPayload{Token: p.Token}})
		} else {
			c.Send(stream.Event{Type: stream.EventJoinedExisting, Payload: joinAckPayload{Token: p.Token}})
		}
	}
}

type healthPayload struct {
	Status         string  `json:"status"`
	ActiveSessions int     `json:"active_sessions"`
	Connections    int     `json:"connections"`
	Goroutines     int     `json:"goroutines"`
	MemoryMB       float64 `json:"memory_mb"`
	CPUPercent     float64 `json:"cpu_percent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := healthPayload{
		Status:         "healthy",
		ActiveSessions: s.table.ActiveCount(),
		Connections:    s.table.ConnectionCount(),
		Goroutines:     runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			payload.MemoryMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			payload.CPUPercent = cpu
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		http.Error(w, "stats not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "fraud-detection-stream",
		"transactions": s.source.Len(),
		"sessions":     s.table.Len(),
	})
}

type predictResponse struct {
	Success bool           `json:"success"`
	Data    *fraud.Outcome `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// handlePredict scores a single ad-hoc transaction outside any replay.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, predictResponse{Error: "invalid JSON body"})
		return
	}

	out, err := s.detector.Predict(record.FromMap(raw))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, predictResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{Success: true, Data: &out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode error: %v", err)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

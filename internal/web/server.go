// Package web serves the dashboard page and pushes display updates to
// connected browsers over a websocket
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Change kinds
const (
	KindText    = "text"
	KindChecked = "checked"
	KindEnabled = "enabled"
	KindVisible = "visible"
)

// Change is one element update sent to browsers
type Change struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// Message is sent from the server to browsers. "state" carries the full
// current state, "update" carries what changed since the last flush
type Message struct {
	Type    string   `json:"type"`
	Changes []Change `json:"changes"`
}

// ClientMessage is sent from browsers to the server
type ClientMessage struct {
	Action string `json:"action"`
}

// ActionCapEsr asks for a capacitance/ESR measurement
const ActionCapEsr = "capesr"

// Server is a display surface rendered by browsers
type Server struct {
	// OnMeasure is called when a browser asks for a cap/ESR measurement
	OnMeasure func()

	hub    *Hub
	logger zerolog.Logger

	mu      sync.Mutex
	order   []string
	state   map[string]Change
	pending []Change
}

// NewServer creates a Server
func NewServer(logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "web").Logger()
	return &Server{
		hub:    NewHub(logger),
		logger: logger,
		state:  make(map[string]Change),
	}
}

// SetText sets the text of element id
func (s *Server) SetText(id, text string) {
	s.set(KindText, id, text)
}

// SetChecked sets the checked state of indicator id
func (s *Server) SetChecked(id string, checked bool) {
	s.set(KindChecked, id, checked)
}

// SetEnabled enables or disables element id
func (s *Server) SetEnabled(id string, enabled bool) {
	s.set(KindEnabled, id, enabled)
}

// SetVisible shows or hides element id
func (s *Server) SetVisible(id string, visible bool) {
	s.set(KindVisible, id, visible)
}

func (s *Server) set(kind, id string, value any) {
	key := kind + ":" + id

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.state[key]
	if ok && prev.Value == value {
		return
	}
	if !ok {
		s.order = append(s.order, key)
	}
	c := Change{Kind: kind, ID: id, Value: value}
	s.state[key] = c
	s.pending = append(s.pending, c)
}

// Flush pushes pending changes to every browser as one update
func (s *Server) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return
	}
	data, err := json.Marshal(Message{Type: "update", Changes: s.pending})
	s.pending = nil
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode update")
		return
	}
	s.hub.Broadcast(data)
}

// stateMessage encodes the full current state. Caller holds s.mu
func (s *Server) stateMessage() ([]byte, error) {
	changes := make([]Change, 0, len(s.order))
	for _, key := range s.order {
		changes = append(changes, s.state[key])
	}
	return json.Marshal(Message{Type: "state", Changes: changes})
}

// Handler returns the HTTP handler for the page and the browser websocket
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Page)
	mux.HandleFunc("/ws", s.WebSocket)
	return mux
}

// WebSocket upgrades a browser connection and subscribes it to updates
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := newClient(s.hub, conn, uuid.NewString())

	// Queue the full state and register under the lock so no update
	// flushed in between is lost
	s.mu.Lock()
	initial, err := s.stateMessage()
	if err == nil {
		client.send <- initial
	}
	registered := s.hub.add(client)
	s.mu.Unlock()

	if err != nil || !registered {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.handleClientMessage)
}

func (s *Server) handleClientMessage(c *Client, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Debug().Err(err).Str("client", c.id).Msg("Ignoring browser message")
		return
	}

	switch msg.Action {
	case ActionCapEsr:
		s.logger.Info().Str("client", c.id).Msg("Browser requested cap/ESR measurement")
		if s.OnMeasure != nil {
			s.OnMeasure()
		}
	default:
		s.logger.Debug().Str("client", c.id).Str("action", msg.Action).Msg("Unknown browser action")
	}
}

// Serve runs the hub and the HTTP listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	server := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting dashboard server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Dashboard server shutdown error")
		}
		return nil
	}
}

// ABOUTME: WebSocket control server for remote event injection
// ABOUTME: Bridges controllers onto the host's control-context API

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tonewheel-Audio/tonewheel-go/internal/host"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/protocol"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/version"
	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

// ProtocolVersion is bumped on incompatible message changes.
const ProtocolVersion = 1

// Config holds control server configuration.
type Config struct {
	Port          int
	Name          string
	StatsInterval time.Duration // 0 disables stats push
}

// Server accepts controller connections and routes their commands into
// the host. All host calls here are control-context.
type Server struct {
	config   Config
	engineID string
	host     *host.Host

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	controllers   map[string]*controller
	controllersMu sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// controller is one connected control session.
type controller struct {
	id   string
	name string
	conn *websocket.Conn
	send chan protocol.Message
}

// New creates a control server for the given host.
func New(config Config, h *host.Host) *Server {
	if config.Name == "" {
		config.Name = version.Product
	}

	return &Server{
		config:   config,
		engineID: uuid.New().String(),
		host:     h,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-network tool; non-browser controllers send no Origin.
				return true
			},
		},
		controllers: make(map[string]*controller),
		stopChan:    make(chan struct{}),
	}
}

// EngineID returns the engine's session identity.
func (s *Server) EngineID() string {
	return s.engineID
}

// Start runs the control server until Stop. Blocking.
func (s *Server) Start() error {
	s.mux.HandleFunc("/control", s.handleWebSocket)

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Control server listening on %s (engine ID: %s)", addr, s.engineID)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	if s.config.StatsInterval > 0 {
		s.wg.Add(1)
		go s.statsLoop()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Control server shutting down...")
	case err := <-errChan:
		log.Printf("Control server error: %v", err)
		serverErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Control server shutdown error: %v", err)
	}

	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("control server failed: %w", serverErr)
	}
	return nil
}

// Stop shuts down the control server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New controller connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	// Handshake: controller/hello must arrive first.
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != "controller/hello" {
		log.Printf("Expected controller/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ControllerHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding controller hello: %v", err)
		return
	}
	if hello.ControllerID == "" {
		log.Printf("Controller hello missing controller_id")
		return
	}

	log.Printf("Controller hello: %s (ID: %s)", hello.Name, hello.ControllerID)

	ctrl := &controller{
		id:   hello.ControllerID,
		name: hello.Name,
		conn: conn,
		send: make(chan protocol.Message, 32),
	}

	s.controllersMu.Lock()
	s.controllers[ctrl.id] = ctrl
	s.controllersMu.Unlock()

	defer func() {
		s.controllersMu.Lock()
		delete(s.controllers, ctrl.id)
		s.controllersMu.Unlock()
		log.Printf("Controller disconnected: %s", ctrl.id)
	}()

	ctrl.send <- protocol.Message{
		Type: "engine/hello",
		Payload: protocol.EngineHello{
			EngineID:         s.engineID,
			Name:             s.config.Name,
			Version:          ProtocolVersion,
			SampleRate:       s.host.SampleRate(),
			LookaheadSamples: s.host.LookaheadSamples(),
		},
	}

	done := make(chan struct{})
	go ctrl.writeLoop(done)
	defer close(done)

	s.readLoop(ctrl)
}

func (s *Server) readLoop(ctrl *controller) {
	for {
		_, data, err := ctrl.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Bad message from %s: %v", ctrl.id, err)
			continue
		}

		s.dispatch(ctrl, msg)
	}
}

// dispatch routes one controller message into the host.
func (s *Server) dispatch(ctrl *controller, msg protocol.Message) {
	switch msg.Type {
	case "event/schedule":
		var req protocol.ScheduleEvent
		if err := decodePayload(msg.Payload, &req); err != nil {
			log.Printf("Bad schedule payload from %s: %v", ctrl.id, err)
			return
		}

		event, err := engine.NewEvent(req.EventType, req.Time, req.Priority, req.Params)
		if err != nil {
			log.Printf("Rejected event from %s: %v", ctrl.id, err)
			return
		}
		if err := s.host.ScheduleEvent(event); err != nil {
			log.Printf("Dropped event from %s: %v", ctrl.id, err)
			return
		}

		ctrl.trySend(protocol.Message{
			Type:    "event/ack",
			Payload: protocol.EventAck{EventID: event.ID, Time: event.Time},
		})

	case "event/cancel":
		var req protocol.CancelEvent
		if err := decodePayload(msg.Payload, &req); err != nil {
			log.Printf("Bad cancel payload from %s: %v", ctrl.id, err)
			return
		}

		accepted := s.host.CancelEvent(req.EventID)
		ctrl.trySend(protocol.Message{
			Type:    "event/cancel-ack",
			Payload: protocol.CancelAck{EventID: req.EventID, Cancelled: accepted},
		})

	case "transport/seek":
		var req protocol.Seek
		if err := decodePayload(msg.Payload, &req); err != nil {
			log.Printf("Bad seek payload from %s: %v", ctrl.id, err)
			return
		}
		s.host.Seek(req.Position)

	case "transport/clear":
		s.host.ClearPending()

	default:
		log.Printf("Unknown message type from %s: %s", ctrl.id, msg.Type)
	}
}

// statsLoop pushes engine stats to every connected controller.
func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			stats := s.host.Stats()
			msg := protocol.Message{
				Type: "engine/stats",
				Payload: protocol.EngineStats{
					CurrentSample: stats.CurrentSample,
					BufferSize:    stats.BlockSize,
					AverageLoad:   stats.AverageLoad,
					PeakLoad:      stats.PeakLoad,
					Underruns:     stats.Underruns,
					Scheduled:     stats.Scheduled,
					Delivered:     stats.Delivered,
					Missed:        stats.Missed,
					Pending:       stats.Pending,
				},
			}

			s.controllersMu.RLock()
			for _, ctrl := range s.controllers {
				ctrl.trySend(msg)
			}
			s.controllersMu.RUnlock()
		}
	}
}

func (c *controller) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// trySend drops the message when the controller's send queue is full
// rather than blocking the dispatcher.
func (c *controller) trySend(msg protocol.Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// decodePayload re-marshals the generic payload into a concrete type.
func decodePayload(payload interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

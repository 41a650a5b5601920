// ABOUTME: WebSocket control client
// ABOUTME: Connects to an engine, performs the handshake, and sends commands

package remote

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tonewheel-Audio/tonewheel-go/internal/protocol"
)

// ClientConfig holds control client configuration.
type ClientConfig struct {
	EngineAddr string // host:port
	Name       string
}

// Client is a controller-side connection to an engine.
type Client struct {
	config       ClientConfig
	controllerID string

	conn *websocket.Conn
	mu   sync.Mutex // guards writes

	// Engine identity from the handshake.
	Engine protocol.EngineHello

	// Acks and stats pushed by the engine.
	Acks       chan protocol.EventAck
	CancelAcks chan protocol.CancelAck
	Stats      chan protocol.EngineStats

	done chan struct{}
}

// NewClient creates a disconnected client.
func NewClient(config ClientConfig) *Client {
	if config.Name == "" {
		config.Name = "tonewheel-send"
	}

	return &Client{
		config:       config,
		controllerID: uuid.New().String(),
		Acks:         make(chan protocol.EventAck, 32),
		CancelAcks:   make(chan protocol.CancelAck, 32),
		Stats:        make(chan protocol.EngineStats, 8),
		done:         make(chan struct{}),
	}
}

// Connect dials the engine and performs the hello exchange.
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.EngineAddr, Path: "/control"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		conn.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

func (c *Client) handshake() error {
	hello := protocol.Message{
		Type: "controller/hello",
		Payload: protocol.ControllerHello{
			ControllerID: c.controllerID,
			Name:         c.config.Name,
			Version:      ProtocolVersion,
		},
	}
	if err := c.sendJSON(hello); err != nil {
		return fmt.Errorf("failed to send controller/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read engine/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if msg.Type != "engine/hello" {
		return fmt.Errorf("expected engine/hello, got %s", msg.Type)
	}
	if err := decodePayload(msg.Payload, &c.Engine); err != nil {
		return err
	}

	log.Printf("Connected to engine %s (%s), sample rate %d, lookahead %d samples",
		c.Engine.Name, c.Engine.EngineID, c.Engine.SampleRate, c.Engine.LookaheadSamples)

	return nil
}

// ScheduleEvent asks the engine to schedule an event at an absolute
// sample time. The assigned event ID arrives on Acks.
func (c *Client) ScheduleEvent(eventType string, time int64, priority int, params map[string]float64) error {
	return c.sendJSON(protocol.Message{
		Type: "event/schedule",
		Payload: protocol.ScheduleEvent{
			EventType: eventType,
			Time:      time,
			Priority:  priority,
			Params:    params,
		},
	})
}

// CancelEvent asks the engine to cancel a pending event.
func (c *Client) CancelEvent(eventID string) error {
	return c.sendJSON(protocol.Message{
		Type:    "event/cancel",
		Payload: protocol.CancelEvent{EventID: eventID},
	})
}

// Seek repositions the engine's render clock.
func (c *Client) Seek(position int64) error {
	return c.sendJSON(protocol.Message{
		Type:    "transport/seek",
		Payload: protocol.Seek{Position: position},
	})
}

// ClearPending drops all events pending on the engine.
func (c *Client) ClearPending() error {
	return c.sendJSON(protocol.Message{Type: "transport/clear"})
}

// Close tears down the connection.
func (c *Client) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readMessages() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Bad message from engine: %v", err)
			continue
		}

		switch msg.Type {
		case "event/ack":
			var ack protocol.EventAck
			if decodePayload(msg.Payload, &ack) == nil {
				select {
				case c.Acks <- ack:
				default:
				}
			}
		case "event/cancel-ack":
			var ack protocol.CancelAck
			if decodePayload(msg.Payload, &ack) == nil {
				select {
				case c.CancelAcks <- ack:
				default:
				}
			}
		case "engine/stats":
			var stats protocol.EngineStats
			if decodePayload(msg.Payload, &stats) == nil {
				select {
				case c.Stats <- stats:
				default:
				}
			}
		default:
			log.Printf("Unknown message type from engine: %s", msg.Type)
		}
	}
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

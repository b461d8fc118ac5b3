// Package bridge carries the live channel between the server and open pages:
// playback device events flow in, state snapshots and cues flow out.
package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/justestif/drift/internal/logger"
)

// Inbound message types, reported by the page.
const (
	TypeDeviceReady    = "device_ready"
	TypeDeviceNotReady = "device_not_ready"
	TypePlayerState    = "player_state"
	TypeAccountError   = "account_error"
	TypePlaybackError  = "playback_error"
	TypeActivity       = "activity"
	TypeFullscreen     = "fullscreen"
	TypePing           = "ping"
)

// Outbound message types, pushed to every open page.
const (
	TypeSession  = "session"
	TypeTimer    = "timer"
	TypeControls = "controls"
	TypeCue      = "cue"
	TypePong     = "pong"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// deviceData carries the device id of a ready report.
type deviceData struct {
	DeviceID string `json:"deviceId"`
}

// errorData carries the message of an error report.
type errorData struct {
	Message string `json:"message"`
}

// fullscreenData mirrors the page's fullscreen change events.
type fullscreenData struct {
	Fullscreen bool `json:"fullscreen"`
}

// Events is the server-side sink for page reports.
type Events interface {
	DeviceReady(deviceID string)
	DeviceNotReady()
	PlayerState(raw json.RawMessage)
	AccountError(message string)
	PlaybackError(message string)
	Activity()
	FullscreenChanged(fullscreen bool)
}

// Hub fans outbound messages to every open page and dispatches inbound
// reports to the Events sink.
type Hub struct {
	events Events

	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
}

// NewHub creates a hub delivering inbound reports to the given sink.
func NewHub(events Events) *Hub {
	return &Hub{
		events:     events,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run drives the hub loop until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("page connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("page disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts down the hub and closes every connection.
func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount reports the number of open pages.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(msg []byte) {
	h.mu.RLock()
	clientList := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		select {
		case client.send <- msg:
		default:
			// Send buffer full: drop the connection here. Run is busy in
			// this loop and cannot receive an unregister for it.
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes a typed message to every open page.
func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Warn("marshaling broadcast", logger.ErrField(err))
		return
	}
	msg, err := json.Marshal(Message{
		Type:      msgType,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// dispatch routes one inbound report to the events sink.
func (h *Hub) dispatch(c *Client, msg *Message) {
	switch msg.Type {
	case TypeDeviceReady:
		var d deviceData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			logger.Warn("invalid device report", logger.ErrField(err))
			return
		}
		h.events.DeviceReady(d.DeviceID)

	case TypeDeviceNotReady:
		h.events.DeviceNotReady()

	case TypePlayerState:
		h.events.PlayerState(msg.Data)

	case TypeAccountError:
		var d errorData
		_ = json.Unmarshal(msg.Data, &d)
		h.events.AccountError(d.Message)

	case TypePlaybackError:
		var d errorData
		_ = json.Unmarshal(msg.Data, &d)
		h.events.PlaybackError(d.Message)

	case TypeActivity:
		h.events.Activity()

	case TypeFullscreen:
		var d fullscreenData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return
		}
		h.events.FullscreenChanged(d.Fullscreen)

	case TypePing:
		c.reply(Message{Type: TypePong, Timestamp: time.Now().UnixMilli()})

	default:
		logger.Debug("unknown message type", logger.String("type", msg.Type))
	}
}

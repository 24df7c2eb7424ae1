package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/exam_session_v1/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// SessionMessage is pushed to the exam client.
type SessionMessage struct {
	Type     string            `json:"type"` // session_state | redirect | error
	Snapshot *session.Snapshot `json:"session,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// clientMessage is what the exam page sends: a raw platform signal or a user
// action.
type clientMessage struct {
	Type string `json:"type"`
}

type sessionNotification struct {
	attemptID string
	payload   []byte
}

// SessionHub holds one websocket client per live attempt.
type SessionHub struct {
	register   chan *sessionClient
	unregister chan *sessionClient
	notify     chan sessionNotification
	clients    map[string]*sessionClient
}

func NewSessionHub() *SessionHub {
	return &SessionHub{
		register:   make(chan *sessionClient),
		unregister: make(chan *sessionClient),
		notify:     make(chan sessionNotification, 256),
		clients:    make(map[string]*sessionClient),
	}
}

func (h *SessionHub) Run() {
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.attemptID]; ok {
				existing.conn.Close()
			}
			h.clients[client.attemptID] = client
		case client := <-h.unregister:
			if stored, ok := h.clients[client.attemptID]; ok && stored == client {
				delete(h.clients, client.attemptID)
			}
		case msg := <-h.notify:
			if client, ok := h.clients[msg.attemptID]; ok {
				select {
				case client.send <- msg.payload:
				default:
					client.conn.Close()
					delete(h.clients, msg.attemptID)
				}
			}
		}
	}
}

// Notify pushes a message to the attempt's client, if connected.
func (h *SessionHub) Notify(attemptID string, message SessionMessage) {
	if h == nil {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("ws: failed to marshal session message: %v", err)
		return
	}
	h.notify <- sessionNotification{
		attemptID: attemptID,
		payload:   data,
	}
}

type sessionClient struct {
	hub       *SessionHub
	conn      *websocket.Conn
	send      chan []byte
	attemptID string
	guard     *session.Guard
}

func newSessionClient(hub *SessionHub, conn *websocket.Conn, attemptID string, guard *session.Guard) *sessionClient {
	return &sessionClient{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		attemptID: attemptID,
		guard:     guard,
	}
}

// readPump feeds inbound client messages into the session runtime.
func (c *sessionClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.dispatch(msg)
	}
}

func (c *sessionClient) dispatch(msg clientMessage) {
	switch msg.Type {
	case "submit":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := c.guard.RequestSubmit(ctx); err != nil {
				log.Printf("ws: submit for %s: %v", c.attemptID, err)
			}
		}()
	case "acknowledge-punishment":
		c.guard.AcknowledgePunishment()
	default:
		if err := c.guard.HandleSignal(session.SignalKind(msg.Type)); err != nil {
			log.Printf("ws: signal %q from %s: %v", msg.Type, c.attemptID, err)
		}
	}
}

func (c *sessionClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

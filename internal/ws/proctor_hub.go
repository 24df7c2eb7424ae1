package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// ProctorEvent is pushed to monitoring dashboards: one logical violation or
// a terminal session transition.
type ProctorEvent struct {
	Type           string    `json:"type"` // violation | terminated | submitted
	AttemptID      string    `json:"attempt_id"`
	Kind           string    `json:"kind,omitempty"`
	ViolationCount int       `json:"violation_count,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

// ProctorHub broadcasts session events to every connected dashboard.
type ProctorHub struct {
	register   chan *proctorClient
	unregister chan *proctorClient
	broadcast  chan []byte
	clients    map[*proctorClient]struct{}
}

func NewProctorHub() *ProctorHub {
	return &ProctorHub{
		register:   make(chan *proctorClient),
		unregister: make(chan *proctorClient),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*proctorClient]struct{}),
	}
}

func (h *ProctorHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

func (h *ProctorHub) Broadcast(event ProctorEvent) {
	if h == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: failed to marshal proctor event: %v", err)
		return
	}
	h.broadcast <- data
}

type proctorClient struct {
	hub  *ProctorHub
	conn *websocket.Conn
	send chan []byte
}

func newProctorClient(hub *ProctorHub, conn *websocket.Conn) *proctorClient {
	return &proctorClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *proctorClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *proctorClient) writePump() {
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

package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"focusQuestAPI/internal/timer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type userMessage struct {
	userID string
	data   []byte
}

// TimerHub fans timer events out to every open tab or device of a user.
// All client bookkeeping happens on the Run goroutine.
type TimerHub struct {
	clients    map[string]map[*HubClient]bool
	register   chan *HubClient
	unregister chan *HubClient
	broadcast  chan userMessage
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func NewTimerHub() *TimerHub {
	return &TimerHub{
		clients:    make(map[string]map[*HubClient]bool),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		broadcast:  make(chan userMessage, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *TimerHub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*HubClient]bool)
			}
			h.clients[client.UserID][client] = true
			hubConnections.Inc()

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.userID] {
				select {
				case client.Send <- msg.data:
				default:
					h.remove(client)
				}
			}

		case <-h.stop:
			for _, set := range h.clients {
				for client := range set {
					h.remove(client)
				}
			}
			return
		}
	}
}

func (h *TimerHub) remove(client *HubClient) {
	set, ok := h.clients[client.UserID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
	hubConnections.Dec()
}

// Stop closes every client and waits for Run to return.
func (h *TimerHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *TimerHub) Register(client *HubClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

func (h *TimerHub) Unregister(client *HubClient) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Publish queues an event for the user's connections. It never blocks: if
// the hub is backed up the event is dropped, since clients can poll
// /timer/active.
func (h *TimerHub) Publish(userID string, event timer.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.S().Errorf("Failed to marshal timer event: %v", err)
		return
	}

	select {
	case h.broadcast <- userMessage{userID: userID, data: data}:
	default:
		zap.S().Warnf("Timer hub backed up, dropping %s for %s", event.Type, userID)
	}
}

// HubClient sits between one websocket connection and the hub.
type HubClient struct {
	hub    *TimerHub
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewHubClient(hub *TimerHub, userID string, conn *websocket.Conn) *HubClient {
	return &HubClient{hub: hub, UserID: userID, Conn: conn, Send: make(chan []byte, 16)}
}

// ReadPump only watches for pongs and disconnects; clients do not send commands.
func (c *HubClient) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugf("Timer socket for %s closed: %v", c.UserID, err)
			}
			return
		}
	}
}

// WritePump forwards hub messages to the socket and keeps it alive with pings.
func (c *HubClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sharedish/chat"
	"sharedish/middleware"
	"sharedish/models"
	"sharedish/pkg/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// wsRequest is the inbound client protocol:
//
//	-> {type: "joinRoom", post_id: string}
//	-> {type: "sendMessage", post_id: string, sender?: string, text: string}
//	<- {type: "receiveMessage", sender, text, createdAt}
//	<- {type: "error", error: string}
type wsRequest struct {
	Type   string `json:"type"`
	PostID string `json:"post_id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type wsClient struct {
	id   string
	user string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	discOnce  sync.Once
}

// shutdown stops the pumps and closes the transport. Safe to call from
// any goroutine, any number of times.
func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// trySend enqueues a payload without ever blocking the caller.
func (c *wsClient) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Gateway terminates websocket connections and translates transport
// events into relay calls. It is the relay's Sender for the outbound
// direction.
type Gateway struct {
	relay *chat.Relay

	mu      sync.Mutex
	clients map[string]*wsClient
}

func NewGateway(store chat.Store, rooms *chat.Registry) *Gateway {
	g := &Gateway{clients: make(map[string]*wsClient)}
	g.relay = chat.NewRelay(store, rooms, g)
	return g
}

// Deliver pushes a persisted message to one connection. A connection that
// is already gone is skipped silently; a connection whose buffer is full
// is dropped so it can never stall delivery to other subscribers.
func (g *Gateway) Deliver(connID string, msg *models.Message) {
	g.mu.Lock()
	c := g.clients[connID]
	g.mu.Unlock()
	if c == nil {
		return
	}
	payload, err := json.Marshal(gin.H{
		"type":      "receiveMessage",
		"sender":    msg.Sender,
		"text":      msg.Text,
		"createdAt": msg.CreatedAt,
	})
	if err != nil {
		return
	}
	if !c.trySend(payload) {
		log.Printf("[ws] dropping connection %s: send buffer full", c.id)
		c.shutdown()
	}
}

// DeliverError notifies a single connection of a failure. Never escalated
// to other subscribers.
func (g *Gateway) DeliverError(connID string, reason string) {
	g.mu.Lock()
	c := g.clients[connID]
	g.mu.Unlock()
	if c == nil {
		return
	}
	payload, err := json.Marshal(gin.H{"type": "error", "error": reason})
	if err != nil {
		return
	}
	if !c.trySend(payload) {
		c.shutdown()
	}
}

// ChatWS upgrades the connection and runs it until the client goes away.
// Authentication uses ?token=JWT, same claims as the HTTP middleware.
func (g *Gateway) ChatWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := strings.TrimSpace(c.Query("token"))
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "missing token query"})
			return
		}
		userID, username, _, err := middleware.ParseToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade error: %v", err)
			return
		}

		user := username
		if user == "" {
			user = userID
		}
		client := &wsClient{
			id:   uuid.NewString(),
			user: user,
			conn: conn,
			send: make(chan []byte, config.WSSendBufferSize),
			done: make(chan struct{}),
		}
		g.register(client)
		log.Printf("[ws] connected %s (user %s)", client.id, user)

		go g.writePump(client)
		g.readPump(client)
	}
}

func (g *Gateway) register(c *wsClient) {
	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
}

// disconnect tears the connection down exactly once, even when the
// transport reports the close more than once.
func (g *Gateway) disconnect(c *wsClient) {
	c.discOnce.Do(func() {
		g.mu.Lock()
		delete(g.clients, c.id)
		g.mu.Unlock()
		g.relay.OnDisconnect(c.id)
		c.shutdown()
		log.Printf("[ws] disconnected %s", c.id)
	})
}

func (g *Gateway) readPump(c *wsClient) {
	defer g.disconnect(c)

	c.conn.SetReadLimit(1 << 20) // 1MB
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error on %s: %v", c.id, err)
			}
			return
		}
		g.handleEvent(c, data)
	}
}

func (g *Gateway) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) handleEvent(c *wsClient, data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		g.DeliverError(c.id, "invalid JSON message")
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "joinroom":
		// A malformed join is tolerated as a no-op; the registry drops it.
		g.relay.OnJoin(c.id, strings.TrimSpace(req.PostID))
	case "sendmessage":
		sender := strings.TrimSpace(req.Sender)
		if sender == "" {
			sender = c.user
		}
		if _, err := g.relay.OnSend(c.id, req.PostID, sender, req.Text); err != nil {
			// The failure stays with the originating connection only.
			g.DeliverError(c.id, sendFailureReason(err))
		}
	default:
		g.DeliverError(c.id, "unknown message type: "+req.Type)
	}
}

func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return "message text is required"
	case errors.Is(err, chat.ErrInvalidPostKey):
		return "post id is required"
	case errors.Is(err, chat.ErrInvalidSender):
		return "sender is required"
	case errors.Is(err, chat.ErrNotFound):
		return "conversation not found"
	default:
		return "failed to save message"
	}
}

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"sharedish/chat"
	"sharedish/models"
	"sharedish/pkg/config"
)

// memStore is an in-memory chat.Store so gateway tests run without a
// database.
type memStore struct {
	mu           sync.Mutex
	participants map[string][]string
	messages     map[string][]models.Message
	created      map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		participants: make(map[string][]string),
		messages:     make(map[string][]models.Message),
		created:      make(map[string]bool),
	}
}

func (s *memStore) GetOrCreate(postKey, participant string) (*models.Chat, error) {
	postKey = strings.TrimSpace(postKey)
	if postKey == "" {
		return nil, chat.ErrInvalidPostKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[postKey] = true
	if participant != "" {
		found := false
		for _, p := range s.participants[postKey] {
			if p == participant {
				found = true
				break
			}
		}
		if !found {
			s.participants[postKey] = append(s.participants[postKey], participant)
		}
	}
	return &models.Chat{PostKey: postKey}, nil
}

func (s *memStore) Append(postKey, sender, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, chat.ErrEmptyMessage
	}
	if strings.TrimSpace(postKey) == "" {
		return nil, chat.ErrInvalidPostKey
	}
	if strings.TrimSpace(sender) == "" {
		return nil, chat.ErrInvalidSender
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created[postKey] {
		return nil, chat.ErrNotFound
	}
	msg := models.Message{Sender: sender, Text: text, CreatedAt: time.Now()}
	s.messages[postKey] = append(s.messages[postKey], msg)
	return &msg, nil
}

func (s *memStore) Participants(postKey string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created[postKey] {
		return nil, chat.ErrNotFound
	}
	return append([]string(nil), s.participants[postKey]...), nil
}

func (s *memStore) Messages(postKey string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created[postKey] {
		return nil, chat.ErrNotFound
	}
	return append([]models.Message(nil), s.messages[postKey]...), nil
}

func (s *memStore) messageCount(postKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[postKey])
}

func newWSServer(t *testing.T, store chat.Store, rooms *chat.Registry) (*Gateway, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gw := NewGateway(store, rooms)
	r.GET("/ws/chat", gw.ChatWS())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return gw, srv
}

func signTestToken(t *testing.T, username string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  "1",
		"name": username,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
	require.NoError(t, err)
	return tok
}

func dialWS(t *testing.T, srv *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token=" + signTestToken(t, username)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, ev map[string]string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

// newConnPair upgrades one websocket and returns both ends, for tests that
// drive the server-side connection directly.
func newConnPair(t *testing.T) (clientSide, serverSide *websocket.Conn) {
	t.Helper()
	upg := websocket.Upgrader{}
	ch := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upg.Upgrade(w, r, nil)
		if err == nil {
			ch <- c
		}
	}))
	t.Cleanup(srv.Close)
	cl, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })
	return cl, <-ch
}

func TestChatWSRejectsMissingToken(t *testing.T) {
	_, srv := newWSServer(t, newMemStore(), chat.NewRegistry())
	resp, err := http.Get(srv.URL + "/ws/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatWSBroadcastIncludesSender(t *testing.T) {
	store := newMemStore()
	_, srv := newWSServer(t, store, chat.NewRegistry())

	alice := dialWS(t, srv, "alice")
	writeEvent(t, alice, map[string]string{"type": "joinRoom", "post_id": "post-9"})
	writeEvent(t, alice, map[string]string{"type": "sendMessage", "post_id": "post-9", "text": "hello"})

	// the sender's own connection receives the broadcast with the
	// server-assigned record
	ev := readEvent(t, alice)
	require.Equal(t, "receiveMessage", ev["type"])
	require.Equal(t, "alice", ev["sender"])
	require.Equal(t, "hello", ev["text"])
	require.NotEmpty(t, ev["createdAt"])

	// a second subscriber sees subsequent traffic
	bob := dialWS(t, srv, "bob")
	writeEvent(t, bob, map[string]string{"type": "joinRoom", "post_id": "post-9"})
	writeEvent(t, bob, map[string]string{"type": "sendMessage", "post_id": "post-9", "text": "hi there"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		require.Equal(t, "receiveMessage", ev["type"])
		require.Equal(t, "bob", ev["sender"])
		require.Equal(t, "hi there", ev["text"])
	}

	require.Equal(t, 2, store.messageCount("post-9"))
}

func TestChatWSErrorOnlyToSender(t *testing.T) {
	store := newMemStore()
	_, srv := newWSServer(t, store, chat.NewRegistry())

	alice := dialWS(t, srv, "alice")
	bob := dialWS(t, srv, "bob")
	writeEvent(t, alice, map[string]string{"type": "joinRoom", "post_id": "post-1"})
	writeEvent(t, bob, map[string]string{"type": "joinRoom", "post_id": "post-1"})

	// settle both joins with one real message everyone receives; alice
	// sends it so her join is ordered before the send on her connection
	writeEvent(t, alice, map[string]string{"type": "sendMessage", "post_id": "post-1", "text": "ping"})
	require.Equal(t, "ping", readEvent(t, alice)["text"])
	require.Equal(t, "ping", readEvent(t, bob)["text"])

	writeEvent(t, alice, map[string]string{"type": "sendMessage", "post_id": "post-1", "text": "   "})

	ev := readEvent(t, alice)
	require.Equal(t, "error", ev["type"])
	require.Equal(t, "message text is required", ev["error"])
	require.Equal(t, 1, store.messageCount("post-1"))

	// the failure never reaches the other subscriber
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
}

func TestChatWSUnknownEventType(t *testing.T) {
	_, srv := newWSServer(t, newMemStore(), chat.NewRegistry())
	alice := dialWS(t, srv, "alice")
	writeEvent(t, alice, map[string]string{"type": "shout", "post_id": "post-1"})
	ev := readEvent(t, alice)
	require.Equal(t, "error", ev["type"])
	require.Contains(t, ev["error"], "unknown message type")
}

func TestDeliverDropsSlowSubscriber(t *testing.T) {
	g := NewGateway(newMemStore(), chat.NewRegistry())
	_, serverConn := newConnPair(t)

	// no write pump running, so the buffer never drains
	slow := &wsClient{
		id:   "conn-slow",
		user: "alice",
		conn: serverConn,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	g.register(slow)

	msg := &models.Message{Sender: "bob", Text: "one", CreatedAt: time.Now()}
	g.Deliver("conn-slow", msg)
	g.Deliver("conn-slow", msg) // buffer full: the connection is dropped

	select {
	case <-slow.done:
	default:
		t.Fatal("expected full-buffer delivery to drop the connection")
	}

	// a dropped connection accepts nothing further, without panicking
	require.False(t, slow.trySend([]byte("late")))
	g.Deliver("conn-slow", msg)

	// unknown connections are skipped silently
	g.Deliver("conn-ghost", msg)
}

func TestDisconnectExactlyOnce(t *testing.T) {
	rooms := chat.NewRegistry()
	g := NewGateway(newMemStore(), rooms)
	_, serverConn := newConnPair(t)

	c := &wsClient{
		id:   "conn-a",
		user: "alice",
		conn: serverConn,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	g.register(c)
	rooms.Join("conn-a", "post-1")

	g.disconnect(c)
	g.disconnect(c) // transport may report the close more than once

	require.Empty(t, rooms.SubscribersOf("post-1"))
	g.mu.Lock()
	_, stillTracked := g.clients["conn-a"]
	g.mu.Unlock()
	require.False(t, stillTracked)

	select {
	case <-c.done:
	default:
		t.Fatal("expected disconnect to close the connection")
	}
}

func TestDeliverErrorGoesToOneConnection(t *testing.T) {
	g := NewGateway(newMemStore(), chat.NewRegistry())

	clients := make([]*wsClient, 2)
	for i := range clients {
		_, serverConn := newConnPair(t)
		clients[i] = &wsClient{
			id:   fmt.Sprintf("conn-%d", i),
			conn: serverConn,
			send: make(chan []byte, 4),
			done: make(chan struct{}),
		}
		g.register(clients[i])
	}

	g.DeliverError("conn-0", "failed to save message")

	require.Len(t, clients[0].send, 1)
	require.Len(t, clients[1].send, 0)
}

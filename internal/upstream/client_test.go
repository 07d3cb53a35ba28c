package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

type collector struct {
	mu   sync.Mutex
	msgs [][]byte
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) Handle(message []byte) {
	c.mu.Lock()
	c.msgs = append(c.msgs, append([]byte(nil), message...))
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) [][]byte {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.msgs...)
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClient_DeliversBinaryInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{6, 1})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{11})
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{6, 2})
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), ReconnectDelay: time.Hour}, zap.NewNop())
	h := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, h) }()

	msgs := h.wait(t, 3)
	want := [][]byte{{6, 1}, {11}, {6, 2}}
	for i := range want {
		if string(msgs[i]) != string(want[i]) {
			t.Errorf("message %d: got %v, want %v", i, msgs[i], want[i])
		}
	}

	stats := client.Stats()
	if !stats.Connected || stats.Connects != 1 || stats.TextMessages != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if client.Stats().Connected {
		t.Error("expected disconnected after Run returns")
	}
}

func TestClient_Reconnects(t *testing.T) {
	var accepted atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := accepted.Add(1)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{byte(n)})
		// Close right away to force a reconnect.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), ReconnectDelay: 20 * time.Millisecond}, zap.NewNop())
	h := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx, h) }()

	msgs := h.wait(t, 3)
	for i, m := range msgs[:3] {
		if len(m) != 1 || m[0] != byte(i+1) {
			t.Errorf("message %d: got %v", i, m)
		}
	}
	if client.Stats().Connects < 3 {
		t.Errorf("expected at least 3 connects, got %d", client.Stats().Connects)
	}
}

func TestClient_DialFailureWaitsAndStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), ReconnectDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, HandlerFunc(func([]byte) {})) }()

	deadline := time.Now().Add(5 * time.Second)
	for client.Stats().DialFailures == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected a dial failure")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return during reconnect wait")
	}
}

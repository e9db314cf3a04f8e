package portfolio

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *WSHub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func waitForClients(t *testing.T, hub *WSHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", n, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSHubBroadcastReachesClient(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	hub.Broadcast(WSMessage{Type: "positions_updated", PortfolioID: "p1", PositionCount: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Type != "positions_updated" || msg.PortfolioID != "p1" || msg.PositionCount != 2 {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestWSHubRemovesDisconnectedClient(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	conn.Close()

	// Broadcasts to the closed connection eventually fail and remove it;
	// the read pump's unregister may get there first. Either way the
	// client must leave the hub.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.Broadcast(WSMessage{Type: "positions_updated", PortfolioID: "p1"})
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("closed client still registered, %d remaining", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

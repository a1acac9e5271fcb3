package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func startTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(testLogger())
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Wait for the registration to land.
	deadline := time.After(time.Second)
	for hub.GetClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Client never registered with the hub")
		case <-time.After(5 * time.Millisecond):
		}
	}

	return hub, conn
}

func TestBroadcastReachesClient(t *testing.T) {
	hub, conn := startTestHub(t)

	hub.Broadcast("invalidation", map[string]string{"mutation": "product.create"}, "gateway")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	if msg.Type != "invalidation" {
		t.Errorf("Expected invalidation message, got %s", msg.Type)
	}
	if msg.Source != "gateway" {
		t.Errorf("Expected gateway source, got %s", msg.Source)
	}
	if msg.Timestamp == "" {
		t.Error("Broadcast message missing timestamp")
	}
}

func TestFocusMessageFiresHandler(t *testing.T) {
	hub := NewHub(testLogger())
	focused := make(chan struct{}, 1)
	hub.SetFocusHandler(func() {
		select {
		case focused <- struct{}{}:
		default:
		}
	})
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test hub: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "focus"}); err != nil {
		t.Fatalf("Failed to send focus message: %v", err)
	}

	select {
	case <-focused:
	case <-time.After(2 * time.Second):
		t.Fatal("Focus handler never fired")
	}
}

func TestMalformedInboundMessageIgnored(t *testing.T) {
	hub, conn := startTestHub(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to send malformed message: %v", err)
	}

	// The connection must survive and still receive broadcasts.
	hub.Broadcast("refresh", nil, "gateway")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Connection dropped after malformed inbound message: %v", err)
	}
	if msg.Type != "refresh" {
		t.Errorf("Expected refresh message, got %s", msg.Type)
	}
}

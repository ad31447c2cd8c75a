package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"powpow/internal/chat"
	"powpow/internal/notify"

	"github.com/gorilla/websocket"
)

type testFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialHub(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var f testFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Bad frame %q: %v", data, err)
	}
	return f
}

func waitConnected(t *testing.T, hub *WebSocketHub, identity string, want bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected(identity) != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected Connected(%q) = %v", identity, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketCommandReply(t *testing.T) {
	engine, queue := newTestStack(t)
	server := NewServer(engine, queue, ServerConfig{})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.Shutdown(context.Background())

	conn := dialHub(t, ts, "identity=alice&name=Alice")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("/room arena")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	f := readFrame(t, conn)
	if f.Event != "reply" {
		t.Fatalf("Expected reply frame, got %q", f.Event)
	}

	var reply map[string]string
	json.Unmarshal(f.Data, &reply)
	if reply["reply"] != chat.MsgJoined {
		t.Errorf("Expected %q, got %q", chat.MsgJoined, reply["reply"])
	}

	// Replies keep command order
	conn.WriteMessage(websocket.TextMessage, []byte("ammo"))
	conn.WriteMessage(websocket.TextMessage, []byte("health"))

	json.Unmarshal(readFrame(t, conn).Data, &reply)
	if reply["reply"] != "Ammo: 8/24" {
		t.Errorf("Expected ammo reply first, got %q", reply["reply"])
	}
	json.Unmarshal(readFrame(t, conn).Data, &reply)
	if reply["reply"] != "Health: 100%" {
		t.Errorf("Expected health reply second, got %q", reply["reply"])
	}
}

func TestWebSocketNotices(t *testing.T) {
	engine, queue := newTestStack(t)
	server := NewServer(engine, queue, ServerConfig{})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.Shutdown(context.Background())

	hub := server.Hub()
	conn := dialHub(t, ts, "identity=bob")
	waitConnected(t, hub, "bob", true)

	if err := hub.Send(context.Background(), "bob", "uh oh! Alice shot you!"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	f := readFrame(t, conn)
	if f.Event != "notice" {
		t.Fatalf("Expected notice frame, got %q", f.Event)
	}
	var notice map[string]string
	json.Unmarshal(f.Data, &notice)
	if notice["text"] != "uh oh! Alice shot you!" {
		t.Errorf("Expected notice text, got %q", notice["text"])
	}

	if err := hub.Send(context.Background(), "nobody", "hi"); !errors.Is(err, notify.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	conn.Close()
	waitConnected(t, hub, "bob", false)
}

func TestWebSocketReplacesConnection(t *testing.T) {
	engine, queue := newTestStack(t)
	server := NewServer(engine, queue, ServerConfig{})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.Shutdown(context.Background())

	hub := server.Hub()
	first := dialHub(t, ts, "identity=carol")
	waitConnected(t, hub, "carol", true)
	second := dialHub(t, ts, "identity=carol")

	// The first connection is closed by the server
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("Expected the replaced connection to be closed")
	}

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	second.WriteMessage(websocket.TextMessage, []byte("look"))
	var reply map[string]string
	json.Unmarshal(readFrame(t, second).Data, &reply)
	if reply["reply"] != chat.MsgNotInRoom {
		t.Errorf("Expected %q, got %q", chat.MsgNotInRoom, reply["reply"])
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	engine, queue := newTestStack(t)
	server := NewServer(engine, queue, ServerConfig{})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.Shutdown(context.Background())

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketPerIPLimit(t *testing.T) {
	engine, queue := newTestStack(t)
	server := NewServer(engine, queue, ServerConfig{MaxConnectionsPerIP: 1})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.Shutdown(context.Background())

	dialHub(t, ts, "identity=dave")
	waitConnected(t, server.Hub(), "dave", true)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?identity=erin"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected the second connection from the same IP to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %+v", resp)
	}
	resp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer statsResp.Body.Close()

	var result struct {
		Connections ConnectionStats `json:"connections"`
	}
	if err := json.NewDecoder(statsResp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Connections.Open != 1 || result.Connections.Rejected != 1 {
		t.Errorf("Expected 1 open and 1 rejected, got %+v", result.Connections)
	}
}

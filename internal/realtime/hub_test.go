package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pillnow/pkg/models"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := strings.Replace(srv.URL, "http", "ws", 1) + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != want {
		t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
	}
}

func readServerMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("invalid server message: %v", err)
	}
	return msg
}

func TestHandshakeRoomReceivesEvent(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv, "?userId=7")
	waitForClients(t, hub, 1)

	event := models.StatusUpdateEvent{
		ScheduleID:  1,
		UserID:      7,
		ContainerID: "default",
		NewStatus:   models.StatusDone,
		Source:      models.SourceAutomatic,
	}
	hub.BroadcastEvent(event)

	msg := readServerMessage(t, conn)
	if msg.Type != "statusUpdate" {
		t.Fatalf("expected statusUpdate, got %q", msg.Type)
	}

	data, _ := json.Marshal(msg.Data)
	var got models.StatusUpdateEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid event payload: %v", err)
	}
	if got.ScheduleID != 1 || got.NewStatus != models.StatusDone {
		t.Errorf("unexpected event: %+v", got)
	}

	// membro da sala recebe também a cópia endereçada
	msg = readServerMessage(t, conn)
	if msg.Type != "statusUpdate:user:7" {
		t.Fatalf("expected room copy, got %q", msg.Type)
	}
}

func TestSubscribeMessageJoinsRoom(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Rooms: []string{"container:box-1"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if msg := readServerMessage(t, conn); msg.Type != "subscribed" {
		t.Fatalf("expected subscribed ack, got %q", msg.Type)
	}

	hub.BroadcastEvent(models.StatusUpdateEvent{
		ScheduleID:  2,
		UserID:      8,
		ContainerID: "box-1",
		NewStatus:   models.StatusMissed,
	})

	if msg := readServerMessage(t, conn); msg.Type != "statusUpdate" {
		t.Fatalf("expected broadcast copy, got %q", msg.Type)
	}
	if msg := readServerMessage(t, conn); msg.Type != "statusUpdate:container:box-1" {
		t.Fatalf("expected room copy, got %q", msg.Type)
	}
}

func TestEveryConnectionReceivesBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv, "?userId=5")
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(models.StatusUpdateEvent{
		ScheduleID:  3,
		UserID:      7,
		ContainerID: "default",
		NewStatus:   models.StatusDone,
	})

	// todo cliente recebe o broadcast geral, mesmo fora das salas do evento
	if msg := readServerMessage(t, conn); msg.Type != "statusUpdate" {
		t.Fatalf("expected broadcast copy, got %q", msg.Type)
	}

	// mas não a cópia endereçada às salas
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("client outside the event rooms must not receive a room copy")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv, "?userId=7")
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "unsubscribe", Rooms: []string{"user:7"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if msg := readServerMessage(t, conn); msg.Type != "unsubscribed" {
		t.Fatalf("expected unsubscribed ack, got %q", msg.Type)
	}

	hub.BroadcastEvent(models.StatusUpdateEvent{ScheduleID: 4, UserID: 7, ContainerID: "default"})

	if msg := readServerMessage(t, conn); msg.Type != "statusUpdate" {
		t.Fatalf("expected broadcast copy, got %q", msg.Type)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("unsubscribed client must not receive a room copy")
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv, "?userId=7")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// broadcast após desconexão não pode entrar em pânico
	hub.BroadcastEvent(models.StatusUpdateEvent{ScheduleID: 5, UserID: 7, ContainerID: "default"})
}

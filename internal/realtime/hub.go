package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"pillnow/internal/events"
	"pillnow/pkg/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	readDeadline  = 60 * time.Second
	pingPeriod    = 30 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 16
)

// ClientMessage é a mensagem de controle enviada pelo cliente
type ClientMessage struct {
	Type  string   `json:"type"` // "subscribe" | "unsubscribe" | "ping"
	Rooms []string `json:"rooms,omitempty"`
}

// ServerMessage envelopa o que o servidor manda pelo socket
type ServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client é uma conexão WebSocket com seu conjunto de salas
type Client struct {
	ID    string
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
}

// Hub distribui eventos de transição de status para clientes WebSocket
// organizados em salas user:<id>, container:<id> e schedule:<id>.
// Entrega é melhor-esforço: cliente lento perde mensagens, nunca trava o hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

// Run consome o bus e retransmite cada evento para as salas derivadas.
// Retorna quando o contexto é cancelado ou o bus fecha.
func (h *Hub) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			h.BroadcastEvent(event)
		}
	}
}

// HandleWebSocket faz o upgrade e cuida do ciclo de vida da conexão.
// Query params userId, containerId e scheduleId inscrevem o cliente
// nas salas correspondentes já no handshake.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]bool),
	}

	h.register(client)

	if v := r.URL.Query().Get("userId"); v != "" {
		h.join(client, "user:"+v)
	}
	if v := r.URL.Query().Get("containerId"); v != "" {
		h.join(client, "container:"+v)
	}
	if v := r.URL.Query().Get("scheduleId"); v != "" {
		h.join(client, "schedule:"+v)
	}

	log.Printf("🔌 Cliente WebSocket conectado: %s", client.ID)

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer h.unregister(client)

	client.conn.SetReadDeadline(time.Now().Add(readDeadline))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		client.conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			for _, room := range msg.Rooms {
				h.join(client, room)
			}
			h.sendJSON(client, ServerMessage{Type: "subscribed", Data: msg.Rooms})

		case "unsubscribe":
			for _, room := range msg.Rooms {
				h.leave(client, room)
			}
			h.sendJSON(client, ServerMessage{Type: "unsubscribed", Data: msg.Rooms})

		case "ping":
			h.sendJSON(client, ServerMessage{Type: "pong"})
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastEvent entrega o evento a todas as conexões e, nas três salas
// derivadas, uma cópia endereçada à sala. Cada cliente recebe o evento
// geral uma única vez; membros de sala recebem também a versão da sala.
func (h *Hub) BroadcastEvent(event models.StatusUpdateEvent) {
	payload, err := json.Marshal(ServerMessage{Type: "statusUpdate", Data: event})
	if err != nil {
		log.Printf("❌ Erro ao serializar evento de status: %v", err)
		return
	}

	targets := []string{
		fmt.Sprintf("user:%d", event.UserID),
		"container:" + event.ContainerID,
		fmt.Sprintf("schedule:%d", event.ScheduleID),
	}

	h.mu.RLock()
	for client := range h.clients {
		h.deliver(client, payload)
	}
	for _, room := range targets {
		if len(h.rooms[room]) == 0 {
			continue
		}
		roomPayload, err := json.Marshal(ServerMessage{Type: "statusUpdate:" + room, Data: event})
		if err != nil {
			continue
		}
		for client := range h.rooms[room] {
			h.deliver(client, roomPayload)
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// buffer cheio: descarta para este cliente
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		delete(h.rooms[room], client)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.send)
	h.mu.Unlock()

	client.conn.Close()
	log.Printf("🔌 Cliente WebSocket desconectado: %s", client.ID)
}

func (h *Hub) join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
}

func (h *Hub) leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) sendJSON(client *Client, msg ServerMessage) {
	data, _ := json.Marshal(msg)
	select {
	case client.send <- data:
	default:
	}
}

// ClientCount retorna quantos clientes estão conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"pillnow/internal/events"
)

const keepAliveInterval = 25 * time.Second

// SSEHandler expõe o fluxo de eventos de status via Server-Sent Events.
// Aceita filtros opcionais por userId e containerId na query string.
type SSEHandler struct {
	bus *events.Bus
}

func NewSSEHandler(bus *events.Bus) *SSEHandler {
	return &SSEHandler{bus: bus}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var filterUser int64
	if v := r.URL.Query().Get("userId"); v != "" {
		filterUser, _ = strconv.ParseInt(v, 10, 64)
	}
	filterContainer := r.URL.Query().Get("containerId")

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	log.Printf("📡 Cliente SSE conectado (userId=%d containerId=%q)", filterUser, filterContainer)

	// keep-alive evita que proxies derrubem a conexão ociosa
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			log.Println("📡 Cliente SSE desconectado")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()

		case event, ok := <-sub.C:
			if !ok {
				return
			}

			if filterUser != 0 && event.UserID != filterUser {
				continue
			}
			if filterContainer != "" && event.ContainerID != filterContainer {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "event: statusUpdate\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
